package usecase

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/incubyte/copilot-stats/internal/domain"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) ListClosedPullRequests(ctx context.Context, repo string, page, perPage int) ([]domain.PullRequest, error) {
	args := m.Called(ctx, repo, page, perPage)
	// The returned slice is nil when an error is simulated.
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PullRequest), args.Error(1)
}

func (m *mockFetcher) ListReviews(ctx context.Context, repo string, number int) ([]domain.Review, error) {
	args := m.Called(ctx, repo, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockFetcher) Viewer(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestWindowFetcher returns a WindowFetcher whose clock is pinned to fixedNow.
func newTestWindowFetcher(fetcher *mockFetcher, pageSize int) *WindowFetcher {
	w := NewWindowFetcher(fetcher, pageSize, discardLogger())
	w.now = func() time.Time { return fixedNow }
	return w
}

// closedAgo builds a pull request closed the given duration before fixedNow.
func closedAgo(repo string, number int, ago time.Duration, body string) domain.PullRequest {
	return domain.PullRequest{
		Number:   number,
		Title:    "PR",
		Author:   "dev",
		ClosedAt: fixedNow.Add(-ago),
		Repo:     repo,
		Body:     body,
	}
}
