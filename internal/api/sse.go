package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/logs"
)

// StreamLogs handles GET /api/v1/logs/stream (SSE).
// Every view change is sent. With search, level or tags present only
// inserts whose record passes those ad-hoc criteria are sent.
func (h *Handlers) StreamLogs(w http.ResponseWriter, r *http.Request) {
	// Check if flusher is available
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "streaming not supported",
			Code:  domain.ErrCodeStreamingNotSupported,
		})
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var accept func(domain.ViewChange) bool
	if params, adhoc := parseLogParams(r); adhoc {
		criteria := params.Criteria()
		accept = func(c domain.ViewChange) bool {
			return c.Record != nil && logs.Matches(*c.Record, criteria)
		}
	}

	subID, ch := h.store.SubscribeFunc(accept)
	defer h.store.Unsubscribe(subID)

	// Send initial comment to establish connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	// Slow clients lose events (buffered subscription) rather than block
	// ingestion; write errors and disconnects end the handler.
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-ch:
			if !ok {
				return
			}

			data, err := json.Marshal(ToViewChangeResponse(change))
			if err != nil {
				continue
			}

			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Reason, data); err != nil {
				h.logger.Debug("SSE write error (client likely disconnected)", "err", err)
				return
			}
			flusher.Flush()
		}
	}
}
