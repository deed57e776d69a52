package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/incubyte/copilot-stats/internal/domain"
)

// closeSentinel is the payload of the last event of a usage stream.
const closeSentinel = "close"

// getUsageReport runs one aggregation and answers with the finished report.
func (h *Handler) getUsageReport(w http.ResponseWriter, r *http.Request) {
	logEntry := h.logRequest(r, "get_usage_report")

	cfg, err := h.runConfig(r)
	if err != nil {
		logEntry.WithError(err).Warn("Rejected usage request")
		respondError(w, err)
		return
	}

	logEntry.WithField("days", cfg.WindowDays).Info("Aggregating usage")
	report, err := h.usage.Aggregate(r.Context(), cfg)
	if err != nil {
		logEntry.WithError(err).Error("Failed to aggregate usage")
		respondError(w, err)
		return
	}

	logEntry.WithField("reviewed", report.ReviewedCount()).Info("Usage report ready")
	respondJSON(w, http.StatusOK, report)
}

// streamUsage delivers the aggregation as Server-Sent Events: one event per
// classified pull request with the aggregate so far, one with the finished
// report, then the close sentinel. The run stops as soon as the client goes
// away.
func (h *Handler) streamUsage(w http.ResponseWriter, r *http.Request) {
	logEntry := h.logRequest(r, "stream_usage")

	cfg, err := h.runConfig(r)
	if err != nil {
		logEntry.WithError(err).Warn("Rejected usage request")
		respondError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, fmt.Errorf("streaming unsupported by response writer"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logEntry.WithField("days", cfg.WindowDays).Info("Streaming usage")
	id := 0
	for ev, err := range h.usage.Stream(r.Context(), cfg) {
		if err != nil {
			if r.Context().Err() != nil {
				logEntry.Info("Client disconnected, usage stream abandoned")
				return
			}
			logEntry.WithError(err).Error("Failed to aggregate usage")
			_, code := statusFor(err)
			_ = writeEvent(w, "error", 0, errorResponse{Error: errorPayload{Code: code, Message: err.Error()}})
			flusher.Flush()
			return
		}

		id++
		if err := writeEvent(w, "", id, ev.Report); err != nil {
			logEntry.WithError(err).Info("Client disconnected, usage stream abandoned")
			return
		}
		flusher.Flush()

		if ev.Type == domain.EventComplete {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", closeSentinel); err == nil {
				flusher.Flush()
			}
			logEntry.WithField("events", id).Info("Usage stream completed")
		}
	}
}

// writeEvent writes one Server-Sent Event with a JSON payload. Unnamed events
// reach the browser's onmessage handler.
func writeEvent(w io.Writer, event string, id int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if id > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", id); err != nil {
			return err
		}
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
