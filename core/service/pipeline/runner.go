package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
	"onlyjobs_server/core/service/match"
	"onlyjobs_server/pkg/logger"
)

// unit is one matching work item: a whole thread or a single orphan.
type unit struct {
	threadID string
	emails   []*domain.Email
	orphan   *domain.Email
}

func (u *unit) members() []*domain.Email {
	if u.orphan != nil {
		return []*domain.Email{u.orphan}
	}
	return u.emails
}

func (u *unit) label() string {
	if u.orphan != nil {
		return "email " + u.orphan.ID
	}
	return "thread " + u.threadID
}

// RunnerOptions throttle the batch loop. The external classifier runs behind
// a shared model context, so units go through in small windows with a pause
// between them.
type RunnerOptions struct {
	BatchSize  int
	BatchPause time.Duration
}

// Runner executes one email batch end to end: pipeline registration, digest
// screening, thread grouping, matching, and promotion. Runs are strictly
// sequential; a run owns its accumulator.
type Runner struct {
	tracker *Tracker
	matcher *match.Matcher
	digest  out.DigestFilter
	sink    out.ProgressSink
	opts    RunnerOptions
	log     *logger.Logger
}

// NewRunner creates a Runner.
func NewRunner(tracker *Tracker, matcher *match.Matcher, digest out.DigestFilter, sink out.ProgressSink, opts RunnerOptions) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 3
	}
	return &Runner{
		tracker: tracker,
		matcher: matcher,
		digest:  digest,
		sink:    sink,
		opts:    opts,
		log:     logger.Default().WithField("component", "pipeline_runner"),
	}
}

// Run processes a batch of fetched emails and returns the run summary.
// Malformed input fails the run before any unit is processed; per-unit
// classifier failures are logged and skipped. Cancellation is honored between
// units and returns the partial summary without rolling anything back.
func (r *Runner) Run(ctx context.Context, emails []*domain.Email) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	emit := newEmitter(r.sink, summary.RunID)

	for _, email := range emails {
		if err := email.Validate(); err != nil {
			return nil, err
		}
	}

	var matchable []*domain.Email
	for _, email := range emails {
		if _, err := r.tracker.RecordFetched(ctx, email); err != nil {
			return nil, err
		}
		if r.digest != nil && r.digest.IsDigest(email) {
			if err := r.tracker.MarkDigested(ctx, email.ID); err != nil {
				return nil, err
			}
			continue
		}
		matchable = append(matchable, email)
	}

	threads, orphans := match.GroupByThread(matchable)
	match.SortChronological(orphans)

	units := make([]*unit, 0, len(threads)+len(orphans))
	for threadID, members := range threads {
		units = append(units, &unit{threadID: threadID, emails: members})
	}
	for _, orphan := range orphans {
		units = append(units, &unit{orphan: orphan})
	}

	summary.UnitsTotal = len(units)
	acc := match.NewAccumulator()
	batchTotal := (len(units) + r.opts.BatchSize - 1) / r.opts.BatchSize
	processed := 0

runLoop:
	for batchIndex := 0; batchIndex*r.opts.BatchSize < len(units); batchIndex++ {
		start := batchIndex * r.opts.BatchSize
		end := start + r.opts.BatchSize
		if end > len(units) {
			end = len(units)
		}
		emit.batch(domain.EventBatchStarted, batchIndex, batchTotal, processed, len(units))

		for _, u := range units[start:end] {
			select {
			case <-ctx.Done():
				summary.Cancelled = true
				break runLoop
			default:
			}
			r.processUnit(ctx, acc, u, summary, emit)
			processed++
		}

		emit.batch(domain.EventBatchCompleted, batchIndex, batchTotal, processed, len(units))

		if end < len(units) && r.opts.BatchPause > 0 {
			select {
			case <-ctx.Done():
				summary.Cancelled = true
				break runLoop
			case <-time.After(r.opts.BatchPause):
			}
		}
	}

	summary.FinishedAt = time.Now()
	emit.runCompleted(summary)
	r.log.WithFields(map[string]any{
		"run_id":       summary.RunID,
		"units_total":  summary.UnitsTotal,
		"succeeded":    summary.Succeeded,
		"skipped":      summary.Skipped,
		"jobs_created": summary.JobsCreated,
		"jobs_updated": summary.JobsUpdated,
		"cancelled":    summary.Cancelled,
	}).Info("pipeline run finished")
	return summary, nil
}

func (r *Runner) processUnit(ctx context.Context, acc *match.Accumulator, u *unit, summary *domain.RunSummary, emit *emitter) {
	var (
		outcome *match.Outcome
		err     error
	)
	if u.orphan != nil {
		outcome, err = r.matcher.MatchOrphan(ctx, acc, u.orphan)
	} else {
		outcome, err = r.matcher.MatchThread(ctx, acc, u.threadID, u.emails)
	}
	if err != nil {
		summary.Skipped++
		r.log.WithError(err).Warn("unit skipped: %s", u.label())
		emit.skipped(u.label(), err, summary)
		return
	}

	if outcome == nil {
		notRelated := &domain.ClassificationResult{IsJobRelated: false, Confidence: 1}
		for _, email := range u.members() {
			if _, recErr := r.tracker.RecordClassification(ctx, email.ID, domain.MethodLLM, notRelated); recErr != nil {
				r.log.WithError(recErr).Warn("failed to record classification for %s", email.ID)
			}
		}
		summary.Succeeded++
		emit.classified(u, nil, summary)
		return
	}

	promotable := make([]string, 0, len(outcome.Emails))
	for _, email := range outcome.Emails {
		record, recErr := r.tracker.RecordClassification(ctx, email.ID, domain.MethodLLM, outcome.Result)
		if recErr != nil {
			r.log.WithError(recErr).Warn("failed to record classification for %s", email.ID)
			continue
		}
		if record.Stage != domain.StageReadyForExtraction {
			continue
		}
		record, recErr = r.tracker.RecordExtraction(ctx, email.ID, nil)
		if recErr != nil {
			r.log.WithError(recErr).Warn("failed to record extraction for %s", email.ID)
			continue
		}
		if record.Stage == domain.StageExtracted {
			promotable = append(promotable, email.ID)
		}
	}

	if err := r.tracker.Promote(ctx, outcome.Job, promotable); err != nil {
		summary.Skipped++
		r.log.WithError(err).Error("promotion failed for %s", u.label())
		emit.skipped(u.label(), err, summary)
		return
	}

	summary.Succeeded++
	if outcome.Created {
		summary.JobsCreated++
	} else {
		summary.JobsUpdated++
	}
	emit.classified(u, outcome, summary)
	emit.jobFound(outcome, summary)
}
