package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"keerthanaapi/internal/httpx"
	"keerthanaapi/internal/logging"
)

// SSEHandler streams the signed-in user's notifications as server-sent
// events.
type SSEHandler struct {
	broker    *Broker
	keepAlive time.Duration
}

func NewSSEHandler(broker *Broker) *SSEHandler {
	return &SSEHandler{broker: broker, keepAlive: 25 * time.Second}
}

// ServeHTTP handles GET /api/events
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.JSONError(w, r, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	notifications, unsubscribe := h.broker.Subscribe(userID)
	defer unsubscribe()

	logger := logging.FromContext(r.Context())
	_, _ = fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				logger.Error().Err(err).Msg("marshal notification")
				continue
			}
			_, _ = fmt.Fprintf(w, "event: notification\nid: %s\ndata: %s\n\n", n.ID, data)
			flusher.Flush()

		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
