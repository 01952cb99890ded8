package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
	"onlyjobs_server/core/service/match"
	"onlyjobs_server/core/service/normalize"
	"onlyjobs_server/pkg/apperr"
	"onlyjobs_server/pkg/snowflake"
)

type stubClassifier struct {
	results map[string]*domain.ClassificationResult
	failOn  map[string]bool
}

func (s *stubClassifier) Classify(_ context.Context, subject, _ string) (*domain.ClassificationResult, error) {
	if s.failOn[subject] {
		return nil, errors.New("model unavailable")
	}
	if result, ok := s.results[subject]; ok {
		return result, nil
	}
	return &domain.ClassificationResult{IsJobRelated: false, Confidence: 1}, nil
}

type stubArbiter struct{}

func (stubArbiter) MatchJobs(_ context.Context, _, _ out.JobSignature) (bool, error) {
	return false, nil
}

type stubDigestFilter struct {
	digests map[string]bool
}

func (s *stubDigestFilter) IsDigest(email *domain.Email) bool {
	return s.digests[email.ID]
}

type recordingSink struct {
	events []domain.ProgressEvent
}

func (r *recordingSink) Publish(_ context.Context, event domain.ProgressEvent) {
	r.events = append(r.events, event)
}

func (r *recordingSink) countByType(t domain.ProgressEventType) int {
	n := 0
	for _, event := range r.events {
		if event.Type == t {
			n++
		}
	}
	return n
}

type runnerFixture struct {
	runner   *Runner
	pipeRepo *fakePipeRepo
	jobStore *fakeJobStore
	sink     *recordingSink
}

func newRunnerFixture(classifier *stubClassifier, digests map[string]bool) *runnerFixture {
	pipeRepo := newFakePipeRepo()
	jobStore := newFakeJobStore(pipeRepo)
	tracker := NewTracker(pipeRepo, jobStore, 0.85)
	gen, _ := snowflake.NewGenerator(1)
	matcher := match.NewMatcher(
		normalize.NewNormalizer(nil, nil, nil),
		classifier,
		stubArbiter{},
		jobStore,
		gen,
		match.DefaultOptions(),
	)
	sink := &recordingSink{}
	runner := NewRunner(tracker, matcher, &stubDigestFilter{digests: digests}, sink, RunnerOptions{
		BatchSize: 2,
	})
	return &runnerFixture{runner: runner, pipeRepo: pipeRepo, jobStore: jobStore, sink: sink}
}

func batchEmail(id, threadID, subject string, daysAgo int) *domain.Email {
	return &domain.Email{
		ID:          id,
		ThreadID:    threadID,
		FromAddress: "hr@acme.com",
		Subject:     subject,
		Body:        "body",
		ReceivedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC).Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	classifier := &stubClassifier{results: map[string]*domain.ClassificationResult{
		"Interview invitation": {IsJobRelated: true, Company: "Acme", Position: "Engineer", Status: "Interview", Confidence: 0.95},
		"Offer from Initech":   {IsJobRelated: true, Company: "Initech", Position: "Analyst", Status: "Offer", Confidence: 0.9},
	}}
	f := newRunnerFixture(classifier, map[string]bool{"d1": true})

	emails := []*domain.Email{
		batchEmail("t1a", "T1", "Application received", 10),
		batchEmail("t1b", "T1", "Interview invitation", 2),
		batchEmail("o1", "", "Offer from Initech", 1),
		batchEmail("o2", "", "50% off everything", 1),
		batchEmail("d1", "", "Daily job digest", 1),
	}

	summary, err := f.runner.Run(context.Background(), emails)
	if err != nil {
		t.Fatal(err)
	}

	// d1 is digested, leaving 3 units: thread T1 plus two orphans.
	if summary.UnitsTotal != 3 {
		t.Errorf("units_total = %d, want 3", summary.UnitsTotal)
	}
	if summary.Succeeded != 3 || summary.Skipped != 0 {
		t.Errorf("succeeded/skipped = %d/%d, want 3/0", summary.Succeeded, summary.Skipped)
	}
	if summary.JobsCreated != 2 {
		t.Errorf("jobs_created = %d, want 2", summary.JobsCreated)
	}
	if len(f.jobStore.jobs) != 2 {
		t.Errorf("persisted jobs = %d, want 2", len(f.jobStore.jobs))
	}

	digested, _ := f.pipeRepo.Get(context.Background(), "d1")
	if digested.Stage != domain.StageDigested {
		t.Errorf("digest record stage = %s, want digested", digested.Stage)
	}

	// Job-linked records must be exactly the in_jobs ones.
	for _, id := range []string{"t1a", "t1b", "o1"} {
		record, _ := f.pipeRepo.Get(context.Background(), id)
		if record.Stage != domain.StageInJobs {
			t.Errorf("record %s stage = %s, want in_jobs", id, record.Stage)
		}
		if record.JobID == nil {
			t.Errorf("record %s at in_jobs must carry a job link", id)
		}
	}
	nonJob, _ := f.pipeRepo.Get(context.Background(), "o2")
	if nonJob.Stage != domain.StageClassified || nonJob.JobID != nil {
		t.Errorf("non-job record = %+v, want classified without a job link", nonJob)
	}

	if f.sink.countByType(domain.EventJobFound) != 2 {
		t.Errorf("job_found events = %d, want 2", f.sink.countByType(domain.EventJobFound))
	}
	if f.sink.countByType(domain.EventRunCompleted) != 1 {
		t.Error("expected exactly one run_completed event")
	}
	if f.sink.countByType(domain.EventBatchStarted) != 2 {
		t.Errorf("batch_started events = %d, want 2 with batch size 2 over 3 units", f.sink.countByType(domain.EventBatchStarted))
	}
}

func TestRun_PartialFailureSkipsUnit(t *testing.T) {
	classifier := &stubClassifier{
		results: map[string]*domain.ClassificationResult{
			"good": {IsJobRelated: true, Company: "Acme", Position: "Engineer", Status: "Applied", Confidence: 0.9},
		},
		failOn: map[string]bool{"bad": true},
	}
	f := newRunnerFixture(classifier, nil)

	emails := []*domain.Email{
		batchEmail("o1", "", "bad", 2),
		batchEmail("o2", "", "good", 1),
	}
	summary, err := f.runner.Run(context.Background(), emails)
	if err != nil {
		t.Fatalf("per-unit failure must not abort the run: %v", err)
	}
	if summary.Skipped != 1 || summary.Succeeded != 1 {
		t.Errorf("succeeded/skipped = %d/%d, want 1/1", summary.Succeeded, summary.Skipped)
	}
	if f.sink.countByType(domain.EventUnitSkipped) != 1 {
		t.Error("expected a unit_skipped event for the failed unit")
	}
	if len(f.jobStore.jobs) != 1 {
		t.Errorf("persisted jobs = %d, the healthy unit should still land", len(f.jobStore.jobs))
	}
}

func TestRun_CancellationReturnsPartialSummary(t *testing.T) {
	classifier := &stubClassifier{results: map[string]*domain.ClassificationResult{}}
	f := newRunnerFixture(classifier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emails := []*domain.Email{
		batchEmail("o1", "", "a", 2),
		batchEmail("o2", "", "b", 1),
	}
	summary, err := f.runner.Run(ctx, emails)
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Cancelled {
		t.Error("summary should flag cancellation")
	}
	if summary.Succeeded != 0 && summary.Succeeded != 1 {
		t.Errorf("succeeded = %d, cancellation is checked between units", summary.Succeeded)
	}
	if f.sink.countByType(domain.EventRunCompleted) != 1 {
		t.Error("cancelled run should still emit run_completed")
	}
}

func TestRun_MalformedInputFailsFast(t *testing.T) {
	classifier := &stubClassifier{}
	f := newRunnerFixture(classifier, nil)

	emails := []*domain.Email{
		{ID: "o1", ReceivedAt: time.Now()},
	}
	_, err := f.runner.Run(context.Background(), emails)
	if !apperr.IsCode(err, apperr.CodeMalformedInput) {
		t.Errorf("error = %v, want MALFORMED_INPUT", err)
	}
	if len(f.pipeRepo.records) != 0 {
		t.Error("malformed input must fail before any record is written")
	}
}

func TestRun_LowConfidenceJobAwaitsReview(t *testing.T) {
	classifier := &stubClassifier{results: map[string]*domain.ClassificationResult{
		"maybe": {IsJobRelated: true, Company: "Acme", Position: "Engineer", Status: "Applied", Confidence: 0.5},
	}}
	f := newRunnerFixture(classifier, nil)

	summary, err := f.runner.Run(context.Background(), []*domain.Email{batchEmail("o1", "", "maybe", 1)})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", summary.Succeeded)
	}

	record, _ := f.pipeRepo.Get(context.Background(), "o1")
	if record.Stage != domain.StageClassified || !record.NeedsReview {
		t.Errorf("record = %+v, want classified and flagged for review", record)
	}
	if record.JobID != nil {
		t.Error("record awaiting review must not be promoted")
	}
	// The job aggregate still exists so approval can promote later.
	if len(f.jobStore.jobs) != 1 {
		t.Errorf("persisted jobs = %d, want the aggregate saved without promotion", len(f.jobStore.jobs))
	}
}
