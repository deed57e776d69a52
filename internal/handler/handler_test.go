package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/incubyte/copilot-stats/internal/domain"
)

// stubUsage replays canned events and records how the run was consumed.
type stubUsage struct {
	report *domain.Report
	events []domain.Event
	err    error

	cfg       domain.RunConfig
	delivered int
	stopped   bool
}

func (s *stubUsage) Aggregate(ctx context.Context, cfg domain.RunConfig) (*domain.Report, error) {
	s.cfg = cfg
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func (s *stubUsage) Stream(ctx context.Context, cfg domain.RunConfig) iter.Seq2[domain.Event, error] {
	s.cfg = cfg
	return func(yield func(domain.Event, error) bool) {
		for _, ev := range s.events {
			if !yield(ev, nil) {
				s.stopped = true
				return
			}
			s.delivered++
		}
		if s.err != nil {
			yield(domain.Event{}, s.err)
		}
	}
}

type mockViewer struct {
	mock.Mock
}

func (m *mockViewer) Viewer(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// failingWriter is a client that has already gone away.
type failingWriter struct {
	header http.Header
	writes int
}

func (f *failingWriter) Header() http.Header {
	if f.header == nil {
		f.header = http.Header{}
	}
	return f.header
}

func (f *failingWriter) WriteHeader(int) {}

func (f *failingWriter) Write([]byte) (int, error) {
	f.writes++
	return 0, errors.New("broken pipe")
}

func (f *failingWriter) Flush() {}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sampleReport() *domain.Report {
	r := domain.NewReport()
	r.ReviewedByRepo["svc-a"] = []domain.PullRequest{{
		Number: 12,
		Title:  "Add cache",
		Author: "dev1",
		Repo:   "svc-a",
		AssistantReview: &domain.Review{
			Login: "copilot-pr-reviewer[bot]",
			Type:  "Bot",
		},
	}}
	r.Totals = domain.UsageCounts{Code: 1, Review: 1}
	r.Scanned = 2
	return r
}

func newTestHandler(usage UsageAggregator, viewer Viewer) *Handler {
	return New(usage, viewer, Options{Repos: []string{"svc-a", "svc-b"}, DefaultDays: 3}, discardLogger())
}

func serve(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, newTestHandler(&stubUsage{}, &mockViewer{}), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAllowOriginIsConfigurable(t *testing.T) {
	h := New(&stubUsage{}, &mockViewer{}, Options{AllowOrigin: "http://localhost:5173"}, discardLogger())
	rec := serve(t, h, "/health")

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetCurrentUser(t *testing.T) {
	t.Run("resolves the authenticated login", func(t *testing.T) {
		viewer := new(mockViewer)
		viewer.On("Viewer", mock.Anything).Return("dev1", nil)

		rec := serve(t, newTestHandler(&stubUsage{}, viewer), "/github/user")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"login":"dev1"}`, rec.Body.String())
		viewer.AssertExpectations(t)
	})

	t.Run("rejected credential maps to 401", func(t *testing.T) {
		viewer := new(mockViewer)
		viewer.On("Viewer", mock.Anything).Return("", domain.ErrUnauthorized)

		rec := serve(t, newTestHandler(&stubUsage{}, viewer), "/github/user")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	})
}

func TestGetCurrentUser_UpstreamOutage(t *testing.T) {
	viewer := new(mockViewer)
	viewer.On("Viewer", mock.Anything).Return("", &domain.FetchError{Operation: domain.OpViewer, Err: errors.New("503 Service Unavailable")})

	rec := serve(t, newTestHandler(&stubUsage{}, viewer), "/github/user")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "UPSTREAM_FAILURE", decodeError(t, rec).Code)
}

func TestGetUsageReport(t *testing.T) {
	t.Run("uses the configured window by default", func(t *testing.T) {
		usage := &stubUsage{report: sampleReport()}

		rec := serve(t, newTestHandler(usage, &mockViewer{}), "/github/copilot/usage/report")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, usage.cfg.WindowDays)
		assert.Equal(t, []string{"svc-a", "svc-b"}, usage.cfg.Repos)

		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Contains(t, body, "pullRequestsReviewedByCopilot")
		assert.JSONEq(t, `{"code":1,"test":0,"review":1,"docs":0,"other":0}`, string(body["usageOfAI"]))
	})

	t.Run("daysRange overrides the window", func(t *testing.T) {
		usage := &stubUsage{report: sampleReport()}

		rec := serve(t, newTestHandler(usage, &mockViewer{}), "/github/copilot/usage/report?daysRange=7")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 7, usage.cfg.WindowDays)
	})

	t.Run("failures map to statuses", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
			code   string
		}{
			{
				name:   "upstream failure",
				err:    &domain.FetchError{Repo: "svc-a", Operation: domain.OpListPullRequests, Err: errors.New("boom")},
				status: http.StatusBadGateway,
				code:   "UPSTREAM_FAILURE",
			},
			{
				name:   "rejected credential",
				err:    &domain.FetchError{Repo: "svc-a", Operation: domain.OpListReviews, Number: 4, Err: domain.ErrUnauthorized},
				status: http.StatusUnauthorized,
				code:   "UNAUTHORIZED",
			},
			{
				name:   "anything else",
				err:    errors.New("unexpected"),
				status: http.StatusInternalServerError,
				code:   "INTERNAL_ERROR",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := serve(t, newTestHandler(&stubUsage{err: tt.err}, &mockViewer{}), "/github/copilot/usage/report")

				assert.Equal(t, tt.status, rec.Code)
				assert.Equal(t, tt.code, decodeError(t, rec).Code)
			})
		}
	})
}

func TestInvalidDaysRange(t *testing.T) {
	for _, raw := range []string{"0", "-2", "abc", "1.5", "366"} {
		for _, path := range []string{"/github/copilot/usage", "/github/copilot/usage/report"} {
			t.Run(path+"?daysRange="+raw, func(t *testing.T) {
				usage := &stubUsage{report: sampleReport()}

				rec := serve(t, newTestHandler(usage, &mockViewer{}), path+"?daysRange="+raw)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, "INVALID_DAYS_RANGE", decodeError(t, rec).Code)
				assert.Zero(t, usage.cfg.WindowDays, "no run should start")
			})
		}
	}
}

// sseBlocks splits an event stream body into its events.
func sseBlocks(body string) []string {
	var blocks []string
	for _, block := range strings.Split(body, "\n\n") {
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func TestStreamUsage(t *testing.T) {
	t.Run("emits snapshots, the final report and the close sentinel", func(t *testing.T) {
		progress := sampleReport()
		final := sampleReport()
		final.Summary = &domain.Summary{ScannedPRs: 2, ReviewedPRs: 1, AssistantReviewRate: 50}
		usage := &stubUsage{events: []domain.Event{
			{Type: domain.EventProgress, Repo: "svc-a", Number: 12, Report: progress},
			{Type: domain.EventComplete, Report: final},
		}}

		rec := serve(t, newTestHandler(usage, &mockViewer{}), "/github/copilot/usage?daysRange=2")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
		assert.Equal(t, 2, usage.cfg.WindowDays)

		blocks := sseBlocks(rec.Body.String())
		require.Len(t, blocks, 3)
		assert.True(t, strings.HasPrefix(blocks[0], "id: 1\ndata: {"))
		assert.NotContains(t, blocks[0], `"summary"`)
		assert.True(t, strings.HasPrefix(blocks[1], "id: 2\ndata: {"))
		assert.Contains(t, blocks[1], `"summary"`)
		assert.Equal(t, "data: close", blocks[2])
		assert.Equal(t, 2, usage.delivered)
	})

	t.Run("a failed run ends with an error event", func(t *testing.T) {
		usage := &stubUsage{
			events: []domain.Event{{Type: domain.EventProgress, Repo: "svc-a", Number: 12, Report: sampleReport()}},
			err:    &domain.FetchError{Repo: "svc-b", Operation: domain.OpListPullRequests, Err: errors.New("boom")},
		}

		rec := serve(t, newTestHandler(usage, &mockViewer{}), "/github/copilot/usage")

		blocks := sseBlocks(rec.Body.String())
		require.Len(t, blocks, 2)
		assert.True(t, strings.HasPrefix(blocks[1], "event: error\ndata: "))
		assert.Contains(t, blocks[1], "UPSTREAM_FAILURE")
		assert.NotContains(t, rec.Body.String(), "data: close")
	})

	t.Run("a gone client stops the run", func(t *testing.T) {
		usage := &stubUsage{events: []domain.Event{
			{Type: domain.EventProgress, Repo: "svc-a", Number: 12, Report: sampleReport()},
			{Type: domain.EventProgress, Repo: "svc-a", Number: 11, Report: sampleReport()},
			{Type: domain.EventComplete, Report: sampleReport()},
		}}
		h := newTestHandler(usage, &mockViewer{})
		w := &failingWriter{}

		h.streamUsage(w, httptest.NewRequest(http.MethodGet, "/github/copilot/usage", nil))

		assert.True(t, usage.stopped)
		assert.Zero(t, usage.delivered)
		assert.Equal(t, 1, w.writes)
	})
}

func TestStatusFor(t *testing.T) {
	status, code := statusFor(errors.Join(errors.New("wrapped"), domain.ErrInvalidDaysRange))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_DAYS_RANGE", code)
}
