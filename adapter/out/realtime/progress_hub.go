// Package realtime fans pipeline progress out to connected SSE clients.
package realtime

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
)

// ProgressHub implements out.ProgressSink over buffered subscriber channels.
// A slow subscriber drops events rather than stalling the pipeline run.
type ProgressHub struct {
	subscribers map[chan domain.ProgressEvent]struct{}
	mu          sync.RWMutex
	log         zerolog.Logger

	messagesSent    int64
	messagesDropped int64
}

// NewProgressHub creates a hub.
func NewProgressHub(log zerolog.Logger) *ProgressHub {
	return &ProgressHub{
		subscribers: make(map[chan domain.ProgressEvent]struct{}),
		log:         log.With().Str("component", "progress_hub").Logger(),
	}
}

var _ out.ProgressSink = (*ProgressHub)(nil)

// Subscribe registers a new client channel.
func (h *ProgressHub) Subscribe() chan domain.ProgressEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.ProgressEvent, 256)
	h.subscribers[ch] = struct{}{}

	h.log.Debug().Int("total_connections", len(h.subscribers)).Msg("client subscribed")
	return ch
}

// Unsubscribe removes and closes a client channel.
func (h *ProgressHub) Unsubscribe(ch chan domain.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.log.Debug().Int("total_connections", len(h.subscribers)).Msg("client unsubscribed")
}

// Publish delivers an event to every subscriber without blocking.
func (h *ProgressHub) Publish(_ context.Context, event domain.ProgressEvent) {
	h.mu.RLock()
	chList := make([]chan domain.ProgressEvent, 0, len(h.subscribers))
	for ch := range h.subscribers {
		chList = append(chList, ch)
	}
	h.mu.RUnlock()

	for _, ch := range chList {
		select {
		case ch <- event:
			h.messagesSent++
		default:
			h.messagesDropped++
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Int64("seq", event.Seq).
				Msg("dropped event due to full buffer")
		}
	}
}

// SubscriberCount returns the number of connected clients.
func (h *ProgressHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// SerializeEvent converts a progress event to its SSE payload.
func SerializeEvent(event domain.ProgressEvent) ([]byte, error) {
	return json.Marshal(event)
}
