package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
	"onlyjobs_server/core/service/match"
)

// emitter sequences and publishes progress events for one run. Publishing is
// detached from run cancellation so terminal events still flush after a
// cancel.
type emitter struct {
	sink  out.ProgressSink
	runID string
	seq   atomic.Int64
}

func newEmitter(sink out.ProgressSink, runID string) *emitter {
	return &emitter{sink: sink, runID: runID}
}

func (e *emitter) publish(event domain.ProgressEvent) {
	if e.sink == nil {
		return
	}
	event.Seq = e.seq.Add(1)
	event.RunID = e.runID
	event.Timestamp = time.Now()
	e.sink.Publish(context.Background(), event)
}

func (e *emitter) batch(eventType domain.ProgressEventType, batchIndex, batchTotal, processed, total int) {
	e.publish(domain.ProgressEvent{
		Type:           eventType,
		BatchIndex:     batchIndex,
		BatchTotal:     batchTotal,
		UnitsProcessed: processed,
		UnitsTotal:     total,
	})
}

func (e *emitter) classified(u *unit, outcome *match.Outcome, summary *domain.RunSummary) {
	event := domain.ProgressEvent{
		Type:           domain.EventUnitClassified,
		UnitsProcessed: summary.Succeeded + summary.Skipped,
		UnitsTotal:     summary.UnitsTotal,
		Reason:         u.label(),
	}
	if outcome != nil {
		event.Company = outcome.Job.Company
		event.Position = outcome.Job.Position
	}
	e.publish(event)
}

func (e *emitter) jobFound(outcome *match.Outcome, summary *domain.RunSummary) {
	e.publish(domain.ProgressEvent{
		Type:           domain.EventJobFound,
		UnitsProcessed: summary.Succeeded + summary.Skipped,
		UnitsTotal:     summary.UnitsTotal,
		Company:        outcome.Job.Company,
		Position:       outcome.Job.Position,
		Status:         string(outcome.Job.Status),
	})
}

func (e *emitter) skipped(label string, err error, summary *domain.RunSummary) {
	e.publish(domain.ProgressEvent{
		Type:           domain.EventUnitSkipped,
		UnitsProcessed: summary.Succeeded + summary.Skipped,
		UnitsTotal:     summary.UnitsTotal,
		Reason:         label + ": " + err.Error(),
	})
}

func (e *emitter) runCompleted(summary *domain.RunSummary) {
	e.publish(domain.ProgressEvent{
		Type:           domain.EventRunCompleted,
		UnitsProcessed: summary.Succeeded + summary.Skipped,
		UnitsTotal:     summary.UnitsTotal,
	})
}
