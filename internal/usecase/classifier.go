package usecase

import (
	"strings"

	"github.com/incubyte/copilot-stats/internal/domain"
)

// DefaultAssistantLogin is the login fragment identifying the assistant reviewer.
const DefaultAssistantLogin = "copilot"

// ReviewClassifier picks the assistant review out of a pull request's reviews.
type ReviewClassifier struct {
	loginFragment string
}

// NewReviewClassifier creates a classifier matching logins that contain fragment.
// An empty fragment falls back to DefaultAssistantLogin.
func NewReviewClassifier(fragment string) *ReviewClassifier {
	if fragment == "" {
		fragment = DefaultAssistantLogin
	}
	return &ReviewClassifier{loginFragment: fragment}
}

// Classify returns the first review, in the given order, whose author login
// contains the assistant fragment (case-sensitive), or nil if there is none.
func (c *ReviewClassifier) Classify(reviews []domain.Review) *domain.Review {
	for _, review := range reviews {
		if strings.Contains(review.Login, c.loginFragment) {
			match := review
			return &match
		}
	}
	return nil
}
