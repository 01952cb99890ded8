// Package messaging publishes pipeline progress to Redis Streams so detached
// consumers (desktop shell, ops tooling) can replay a run.
package messaging

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
)

// Stream names
const (
	StreamPipelineProgress = "pipeline:progress"
)

// maxStreamLen caps the stream so an unattended instance cannot grow Redis
// unbounded.
const maxStreamLen = 10000

// ProgressProducer implements out.ProgressSink on a Redis Stream.
type ProgressProducer struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewProgressProducer creates a producer.
func NewProgressProducer(client *redis.Client, log zerolog.Logger) *ProgressProducer {
	return &ProgressProducer{
		client: client,
		log:    log.With().Str("component", "progress_producer").Logger(),
	}
}

var _ out.ProgressSink = (*ProgressProducer)(nil)

// Publish appends the event to the progress stream. Failures are logged and
// swallowed; progress delivery is best effort and must not fail a run.
func (p *ProgressProducer) Publish(ctx context.Context, event domain.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to marshal progress event")
		return
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamPipelineProgress,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    string(event.Type),
			"run_id":  event.RunID,
			"payload": string(data),
		},
	}).Err()
	if err != nil {
		p.log.Error().Err(err).Str("run_id", event.RunID).Msg("failed to publish progress event")
	}
}
