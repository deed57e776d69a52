package usecase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/incubyte/copilot-stats/internal/domain"
	"github.com/incubyte/copilot-stats/internal/gateway"
)

const (
	// DefaultWindowDays applies when a run does not set a window.
	DefaultWindowDays = 1
	// DefaultPageSize is the number of pull requests requested per page.
	DefaultPageSize = 100
)

// WindowFetcher walks a repository's closed pull requests page by page,
// newest first, until it reaches the start of the time window.
type WindowFetcher struct {
	fetcher  gateway.Fetcher
	pageSize int
	now      func() time.Time
	logger   *logrus.Logger
}

// NewWindowFetcher creates a new WindowFetcher instance.
func NewWindowFetcher(fetcher gateway.Fetcher, pageSize int, logger *logrus.Logger) *WindowFetcher {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	return &WindowFetcher{
		fetcher:  fetcher,
		pageSize: pageSize,
		now:      time.Now,
		logger:   logger,
	}
}

// Fetch returns the pull requests of repo closed within the last days days.
//
// Pages are requested until one comes back empty or contains a pull request
// closed at or before the cutoff. Every item of the last page is kept, so the
// result may reach up to one page past the cutoff. On failure nothing is
// returned for the repository.
func (w *WindowFetcher) Fetch(ctx context.Context, repo string, days int) ([]domain.PullRequest, error) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	cutoff := w.now().AddDate(0, 0, -days)
	log := w.logger.WithFields(logrus.Fields{"repo": repo, "cutoff": cutoff.Format(time.RFC3339)})
	log.Info("Fetching pull request window...")

	var prs []domain.PullRequest
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, &domain.FetchError{Repo: repo, Operation: domain.OpListPullRequests, Err: err}
		}
		items, err := w.fetcher.ListClosedPullRequests(ctx, repo, page, w.pageSize)
		if err != nil {
			return nil, &domain.FetchError{Repo: repo, Operation: domain.OpListPullRequests, Err: err}
		}
		if len(items) == 0 {
			break
		}
		prs = append(prs, items...)
		if reachesCutoff(items, cutoff) {
			break
		}
		log.WithField("page", page+1).Debug("  Fetching next page of pull requests...")
	}

	log.WithField("count", len(prs)).Info("Completed fetching pull request window.")
	return prs, nil
}

// reachesCutoff reports whether any item closed at or before cutoff. Every
// item is checked because ties in the upstream ordering are not stable.
func reachesCutoff(items []domain.PullRequest, cutoff time.Time) bool {
	for _, pr := range items {
		if !pr.ClosedAt.After(cutoff) {
			return true
		}
	}
	return false
}
