package out

import (
	"context"

	"onlyjobs_server/core/domain"
)

// ProgressSink receives pipeline progress events. Publishing must not block
// the run; slow consumers are the sink's problem.
type ProgressSink interface {
	Publish(ctx context.Context, event domain.ProgressEvent)
}
