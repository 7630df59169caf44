package handlers

import (
	"context"
	"net/http"

	"github.com/openatelier/server/internal/api/problem"
	"github.com/openatelier/server/internal/realtime"
)

// StreamHandler serves the long-lived push stream: newline-delimited JSON
// events, one connection per browser tab. The change-feed listener and the
// broadcast subscriber are started lazily by the first connection; their
// Start methods are idempotent, so racing first connections are safe.
type StreamHandler struct {
	lifecycle   context.Context
	registry    *realtime.Registry
	listener    *realtime.Listener
	broadcaster *realtime.Broadcaster
	env         string
}

// NewStreamHandler wires the stream endpoint. lifecycle bounds the listener
// and broadcaster subscriptions; cancelling it on shutdown closes both.
func NewStreamHandler(lifecycle context.Context, registry *realtime.Registry, listener *realtime.Listener, broadcaster *realtime.Broadcaster, env string) *StreamHandler {
	return &StreamHandler{
		lifecycle:   lifecycle,
		registry:    registry,
		listener:    listener,
		broadcaster: broadcaster,
		env:         env,
	}
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		problem.Write(w, r, http.StatusBadRequest, "about:blank", "Missing userId", nil, h.env,
			problem.WithDetail("userId query parameter is required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		problem.Write(w, r, http.StatusInternalServerError, "about:blank", "Streaming unsupported", nil, h.env)
		return
	}

	h.listener.Start(h.lifecycle)
	h.broadcaster.Start(h.lifecycle)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	session := h.registry.Register(userID)
	defer h.registry.Unregister(session)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-session.Done():
			return
		case event := <-session.Events():
			line, err := event.Encode()
			if err != nil {
				continue
			}
			if _, err := w.Write(line); err != nil {
				// dead client; defer prunes the session
				return
			}
			flusher.Flush()
		}
	}
}
