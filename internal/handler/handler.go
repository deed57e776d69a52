// Package handler exposes the usage aggregation over HTTP.
package handler

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/incubyte/copilot-stats/internal/domain"
)

// maxDaysRange bounds the window a caller may request.
const maxDaysRange = 365

// UsageAggregator runs usage aggregations.
type UsageAggregator interface {
	Aggregate(ctx context.Context, cfg domain.RunConfig) (*domain.Report, error)
	Stream(ctx context.Context, cfg domain.RunConfig) iter.Seq2[domain.Event, error]
}

// Viewer resolves the login behind the configured credential.
type Viewer interface {
	Viewer(ctx context.Context) (string, error)
}

// Options configures the handler.
type Options struct {
	Repos       []string
	DefaultDays int
	AllowOrigin string
}

type Handler struct {
	usage  UsageAggregator
	viewer Viewer
	opts   Options
	logger *logrus.Logger
}

func New(usage UsageAggregator, viewer Viewer, opts Options, logger *logrus.Logger) *Handler {
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = 1
	}
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	return &Handler{
		usage:  usage,
		viewer: viewer,
		opts:   opts,
		logger: logger,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(h.logger))
	r.Use(middleware.SetHeader("Access-Control-Allow-Origin", h.opts.AllowOrigin))

	r.Get("/health", h.healthCheck)

	r.Route("/github", func(r chi.Router) {
		r.Get("/user", h.getCurrentUser)
		r.Get("/copilot/usage", h.streamUsage)
		r.Get("/copilot/usage/report", h.getUsageReport)
	})
	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	logEntry := h.logRequest(r, "get_current_user")

	login, err := h.viewer.Viewer(r.Context())
	if err != nil {
		logEntry.WithError(err).Error("Failed to resolve authenticated user")
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"login": login})
}

// runConfig builds the run from the configured repositories and the
// optional daysRange query parameter.
func (h *Handler) runConfig(r *http.Request) (domain.RunConfig, error) {
	cfg := domain.RunConfig{
		Repos:      h.opts.Repos,
		WindowDays: h.opts.DefaultDays,
	}
	raw := r.URL.Query().Get("daysRange")
	if raw == "" {
		return cfg, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 || days > maxDaysRange {
		return cfg, fmt.Errorf("%w: %q, want a whole number of days between 1 and %d", domain.ErrInvalidDaysRange, raw, maxDaysRange)
	}
	cfg.WindowDays = days
	return cfg, nil
}

func (h *Handler) logRequest(r *http.Request, operation string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"operation":  operation,
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	})
}
