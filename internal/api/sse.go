package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/abelmekonnen/portfolio-livechat/internal/events"
	"github.com/abelmekonnen/portfolio-livechat/internal/models"
)

// SessionEvents is the push channel for the widget: an initial "init"
// frame with the current session state, then a frame per store Save.
// Polling on /api/session-status remains the redundant fallback.
func (h *apiHandler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	frames, cancel := h.deps.Broker.Subscribe(sessionID)
	defer cancel()
	if h.deps.Metrics != nil {
		h.deps.Metrics.PushSubscribers.Inc()
		defer h.deps.Metrics.PushSubscribers.Dec()
	}

	// Initial state; a missing session is sent as null rather than an error
	// so the widget can keep waiting for it to appear.
	var initial *models.Session
	if sess, err := h.deps.Store.Get(r.Context(), sessionID); err == nil {
		initial = sess
	}
	writeEvent(w, events.Frame{Type: "init", Session: initial})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			writeEvent(w, frame)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, frame events.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
