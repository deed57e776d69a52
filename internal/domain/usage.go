// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// UsageCounts holds the per-category AI usage counters.
// The set of categories is closed; every counter is non-negative.
type UsageCounts struct {
	Code   int `json:"code"`
	Test   int `json:"test"`
	Review int `json:"review"`
	Docs   int `json:"docs"`
	Other  int `json:"other"`
}

// Add returns the component-wise sum of u and other.
func (u UsageCounts) Add(other UsageCounts) UsageCounts {
	return UsageCounts{
		Code:   u.Code + other.Code,
		Test:   u.Test + other.Test,
		Review: u.Review + other.Review,
		Docs:   u.Docs + other.Docs,
		Other:  u.Other + other.Other,
	}
}

// Total is the sum of all counters.
func (u UsageCounts) Total() int {
	return u.Code + u.Test + u.Review + u.Docs + u.Other
}

// IsZero reports whether no category is set.
func (u UsageCounts) IsZero() bool {
	return u == UsageCounts{}
}

// Review is a pull request review left by the assistant.
type Review struct {
	Login string `json:"login"`
	Type  string `json:"type"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// PullRequest is a closed pull request as seen by the aggregation.
// Usage and AssistantReview are filled in during classification.
type PullRequest struct {
	Number          int         `json:"number"`
	Title           string      `json:"title"`
	Author          string      `json:"author"`
	ClosedAt        time.Time   `json:"closed_at"`
	Repo            string      `json:"repo"`
	Body            string      `json:"-"`
	Usage           UsageCounts `json:"ai_usage"`
	AssistantReview *Review     `json:"copilot_review,omitempty"`
}

// Summary holds derived figures attached to a completed report.
type Summary struct {
	ScannedPRs          int                `json:"scannedPRs"`
	ReviewedPRs         int                `json:"reviewedPRs"`
	AssistantReviewRate float64            `json:"assistantReviewRate"`
	CategoryShare       map[string]float64 `json:"categoryShare"`
	MedianPerRepo       float64            `json:"medianReviewedPerRepo"`
}

// Report is the aggregate produced by one run.
type Report struct {
	ReviewedByRepo map[string][]PullRequest `json:"pullRequestsReviewedByCopilot"`
	Totals         UsageCounts              `json:"usageOfAI"`
	Scanned        int                      `json:"-"`
	Unclassified   map[string][]int         `json:"unclassified,omitempty"`
	Summary        *Summary                 `json:"summary,omitempty"`
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{ReviewedByRepo: make(map[string][]PullRequest)}
}

// Clone returns a deep copy of r, so a snapshot handed to a consumer
// is not affected by later folds.
func (r *Report) Clone() *Report {
	c := &Report{
		ReviewedByRepo: make(map[string][]PullRequest, len(r.ReviewedByRepo)),
		Totals:         r.Totals,
		Scanned:        r.Scanned,
	}
	for repo, prs := range r.ReviewedByRepo {
		copied := make([]PullRequest, len(prs))
		for i, pr := range prs {
			copied[i] = pr
			if pr.AssistantReview != nil {
				review := *pr.AssistantReview
				copied[i].AssistantReview = &review
			}
		}
		c.ReviewedByRepo[repo] = copied
	}
	if r.Unclassified != nil {
		c.Unclassified = make(map[string][]int, len(r.Unclassified))
		for repo, numbers := range r.Unclassified {
			c.Unclassified[repo] = append([]int(nil), numbers...)
		}
	}
	if r.Summary != nil {
		s := *r.Summary
		s.CategoryShare = make(map[string]float64, len(r.Summary.CategoryShare))
		for k, v := range r.Summary.CategoryShare {
			s.CategoryShare[k] = v
		}
		c.Summary = &s
	}
	return c
}

// ReviewedCount is the number of qualifying pull requests across all repositories.
func (r *Report) ReviewedCount() int {
	n := 0
	for _, prs := range r.ReviewedByRepo {
		n += len(prs)
	}
	return n
}

// RunConfig selects what one aggregation run covers.
type RunConfig struct {
	Repos      []string
	WindowDays int
}

// EventType distinguishes progress events from the terminal event of a stream.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
)

// Event is one element of a streamed run. Progress events carry a snapshot
// taken after a pull request was classified; the complete event carries the
// finished report.
type Event struct {
	Type   EventType
	Repo   string
	Number int
	Report *Report
}
