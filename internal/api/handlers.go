package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/chis/pathdesigner/internal/events"
	"github.com/chis/pathdesigner/internal/output"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondSuccess(w, map[string]string{
		"status":  "healthy",
		"version": output.Version,
	})
}

// handlePresets serves the configured machining presets.
func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	RespondSuccess(w, s.presets)
}

// handleEvents provides Server-Sent Events with graph change
// notifications for the frontend.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // prevent proxy buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	flusher.Flush()

	rc := http.NewResponseController(w)
	rc.SetWriteDeadline(time.Time{})

	eventChan, unsubscribe := s.eventBus.Subscribe(events.Wildcard)
	defer unsubscribe()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	// Heartbeat keeps the connection alive through proxies.
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			eventData, err := events.MarshalEvent(event)
			if err != nil {
				s.log.Warn("failed to marshal event: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, eventData)
			flusher.Flush()
			heartbeat.Reset(15 * time.Second)
		}
	}
}
