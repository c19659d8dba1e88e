package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/visualix/visualix/internal/events"
)

const sseKeepAlive = 15 * time.Second

// handleJobEvents streams the events of one job as Server-Sent Events. The
// stream ends after the job reaches a terminal state.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if s.deps.Bus == nil {
		respondError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before reading the status so no transition is missed.
	eventCh := s.deps.Bus.SubscribeJob(jobID)
	defer s.deps.Bus.Unsubscribe(eventCh)

	report, err := s.deps.Jobs.Status(r.Context(), jobID)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.sendSSEEvent(w, flusher, "status", report)
	if report.Status.IsTerminal() {
		return
	}

	ctx := r.Context()
	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			s.sendSSEEvent(w, flusher, event.EventType(), event)
			if isTerminalEvent(event) {
				return
			}
		}
	}
}

func isTerminalEvent(e events.Event) bool {
	switch e.EventType() {
	case events.TypeJobCompleted, events.TypeJobFailed, events.TypeJobCancelled:
		return true
	}
	return false
}

// sendSSEEvent writes an event to the SSE stream.
func (s *Server) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
