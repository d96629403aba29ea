package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/stemdeck/internal/engine"
)

// Hub fans engine status updates out to server-sent-event clients. It is an
// engine.Sink; Publish never blocks, slow clients miss intermediate updates.
type Hub struct {
	log  zerolog.Logger
	mu   sync.Mutex
	subs map[chan engine.Status]struct{}
	last *engine.Status
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		log:  logger.With().Str("component", "events").Logger(),
		subs: make(map[chan engine.Status]struct{}),
	}
}

// Publish implements engine.Sink.
func (h *Hub) Publish(s engine.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &s
	for ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe returns a channel primed with the latest status, and a func
// that unsubscribes.
func (h *Hub) Subscribe() (<-chan engine.Status, func()) {
	ch := make(chan engine.Status, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.last != nil {
		ch <- *h.last
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// Clients returns the number of subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP streams status updates as text/event-stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, cancel := h.Subscribe()
	defer cancel()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("events client connected")

	for {
		select {
		case <-r.Context().Done():
			return
		case s := <-updates:
			data, err := json.Marshal(s)
			if err != nil {
				h.log.Error().Err(err).Msg("encode status")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
