package bootstrap

import (
	"context"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
)

// multiSink fans progress events out to every configured sink.
type multiSink []out.ProgressSink

var _ out.ProgressSink = (multiSink)(nil)

func (s multiSink) Publish(ctx context.Context, event domain.ProgressEvent) {
	for _, sink := range s {
		sink.Publish(ctx, event)
	}
}
