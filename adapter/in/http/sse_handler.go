package http

import (
	"bufio"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"onlyjobs_server/adapter/out/realtime"
)

const heartbeatInterval = 30 * time.Second

// SSEHandler streams pipeline progress events to connected clients.
type SSEHandler struct {
	hub *realtime.ProgressHub
	log zerolog.Logger
}

// NewSSEHandler creates a new SSE handler.
func NewSSEHandler(hub *realtime.ProgressHub, log zerolog.Logger) *SSEHandler {
	return &SSEHandler{
		hub: hub,
		log: log.With().Str("handler", "sse").Logger(),
	}
}

// Register registers SSE routes.
func (h *SSEHandler) Register(router fiber.Router) {
	router.Get("/events", h.Stream)
	router.Get("/events/status", h.Status)
}

// Stream handles SSE connections.
func (h *SSEHandler) Stream(c *fiber.Ctx) error {
	ch := h.hub.Subscribe()

	h.log.Info().Msg("SSE client connected")

	// Set SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		defer func() {
			h.hub.Unsubscribe(ch)
			h.log.Info().Msg("SSE client disconnected")
		}()

		// Send initial connection event
		w.WriteString("event: connected\n")
		w.WriteString("data: {\"status\":\"connected\"}\n\n")
		w.Flush()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}

				data, err := realtime.SerializeEvent(event)
				if err != nil {
					h.log.Error().Err(err).Msg("failed to serialize event")
					continue
				}

				// Write SSE format
				w.WriteString("event: ")
				w.WriteString(string(event.Type))
				w.WriteString("\n")
				w.WriteString("data: ")
				w.Write(data)
				w.WriteString("\n\n")

				if err := w.Flush(); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during write")
					return
				}

			case <-ticker.C:
				// Heartbeat
				w.WriteString(": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during heartbeat")
					return
				}
			}
		}
	})

	return nil
}

// Status returns SSE connection status.
func (h *SSEHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"connections": h.hub.SubscriberCount(),
	})
}
