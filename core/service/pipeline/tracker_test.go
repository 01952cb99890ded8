package pipeline

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
	"onlyjobs_server/pkg/apperr"
)

// =====================================================
// Fakes
// =====================================================

type fakePipeRepo struct {
	records map[string]*domain.PipelineRecord
}

func newFakePipeRepo() *fakePipeRepo {
	return &fakePipeRepo{records: make(map[string]*domain.PipelineRecord)}
}

func (f *fakePipeRepo) Create(_ context.Context, record *domain.PipelineRecord) error {
	if _, exists := f.records[record.GmailMessageID]; exists {
		return apperr.UniquenessConflict("email_pipeline.gmail_message_id", nil)
	}
	clone := *record
	f.records[record.GmailMessageID] = &clone
	return nil
}

func (f *fakePipeRepo) Get(_ context.Context, gmailMessageID string) (*domain.PipelineRecord, error) {
	record, ok := f.records[gmailMessageID]
	if !ok {
		return nil, apperr.NotFound("pipeline record")
	}
	clone := *record
	return &clone, nil
}

func (f *fakePipeRepo) Update(_ context.Context, record *domain.PipelineRecord) error {
	if _, ok := f.records[record.GmailMessageID]; !ok {
		return apperr.NotFound("pipeline record")
	}
	clone := *record
	f.records[record.GmailMessageID] = &clone
	return nil
}

func (f *fakePipeRepo) CountByStage(_ context.Context) (map[domain.Stage]int, error) {
	counts := make(map[domain.Stage]int)
	for _, record := range f.records {
		counts[record.Stage]++
	}
	return counts, nil
}

func (f *fakePipeRepo) ListNeedsReview(_ context.Context, limit int) ([]*domain.PipelineRecord, error) {
	var result []*domain.PipelineRecord
	for _, record := range f.records {
		if record.NeedsReview && !record.Rejected {
			clone := *record
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].GmailMessageID < result[b].GmailMessageID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// fakeJobStore also flips pipeline records on promotion, mirroring the real
// transactional adapter.
type fakeJobStore struct {
	jobs     map[uuid.UUID]*domain.Job
	pipeRepo *fakePipeRepo
}

func newFakeJobStore(pipeRepo *fakePipeRepo) *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*domain.Job), pipeRepo: pipeRepo}
}

func (f *fakeJobStore) Create(_ context.Context, job *domain.Job) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobStore) Update(_ context.Context, job *domain.Job) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	return nil, apperr.NotFound("job")
}

func (f *fakeJobStore) GetByThreadID(_ context.Context, threadID string) (*domain.Job, error) {
	for _, job := range f.jobs {
		if job.ThreadID == threadID {
			return job, nil
		}
	}
	return nil, apperr.NotFound("job")
}

func (f *fakeJobStore) ListByNormalizedCompany(_ context.Context, normalizedCompany string) ([]*domain.Job, error) {
	var result []*domain.Job
	for _, job := range f.jobs {
		if job.NormalizedCompany == normalizedCompany {
			result = append(result, job)
		}
	}
	return result, nil
}

func (f *fakeJobStore) List(_ context.Context, _ out.JobListFilter) ([]*domain.Job, error) {
	var result []*domain.Job
	for _, job := range f.jobs {
		result = append(result, job)
	}
	return result, nil
}

func (f *fakeJobStore) Count(_ context.Context, _ out.JobListFilter) (int, error) {
	return len(f.jobs), nil
}

func (f *fakeJobStore) SaveAndPromote(_ context.Context, job *domain.Job, messageIDs []string) error {
	f.jobs[job.ID] = job
	for _, id := range messageIDs {
		record, ok := f.pipeRepo.records[id]
		if !ok {
			return apperr.NotFound("pipeline record")
		}
		record.JobID = &job.ID
		if err := record.Advance(domain.StageInJobs); err != nil {
			return err
		}
	}
	return nil
}

func newTestTracker() (*Tracker, *fakePipeRepo, *fakeJobStore) {
	pipeRepo := newFakePipeRepo()
	jobStore := newFakeJobStore(pipeRepo)
	return NewTracker(pipeRepo, jobStore, 0.85), pipeRepo, jobStore
}

func fetchedEmail(id string) *domain.Email {
	return &domain.Email{
		ID:          id,
		FromAddress: "hr@acme.com",
		Subject:     "subject",
		ReceivedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// =====================================================
// Tests
// =====================================================

func TestRecordFetched_DuplicateResolvesToExisting(t *testing.T) {
	tracker, _, _ := newTestTracker()
	ctx := context.Background()

	first, err := tracker.RecordFetched(ctx, fetchedEmail("m1"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := tracker.RecordFetched(ctx, fetchedEmail("m1"))
	if err != nil {
		t.Fatalf("duplicate fetch should resolve, got %v", err)
	}
	if first.GmailMessageID != second.GmailMessageID {
		t.Error("duplicate fetch should return the existing record")
	}
}

func TestRecordFetched_MalformedInput(t *testing.T) {
	tracker, _, _ := newTestTracker()

	_, err := tracker.RecordFetched(context.Background(), &domain.Email{ID: "m1", ReceivedAt: time.Now()})
	if !apperr.IsCode(err, apperr.CodeMalformedInput) {
		t.Errorf("error = %v, want MALFORMED_INPUT", err)
	}
}

func TestRecordClassification_AutoApprove(t *testing.T) {
	tracker, repo, _ := newTestTracker()
	ctx := context.Background()
	tracker.RecordFetched(ctx, fetchedEmail("m1"))

	record, err := tracker.RecordClassification(ctx, "m1", domain.MethodLLM, &domain.ClassificationResult{
		IsJobRelated: true, Confidence: 0.92,
	})
	if err != nil {
		t.Fatal(err)
	}
	if record.Stage != domain.StageReadyForExtraction {
		t.Errorf("stage = %s, want ready_for_extraction above the threshold", record.Stage)
	}
	if record.NeedsReview {
		t.Error("auto-approved record should not need review")
	}

	stored, _ := repo.Get(ctx, "m1")
	if stored.Stage != domain.StageReadyForExtraction {
		t.Errorf("persisted stage = %s, want ready_for_extraction", stored.Stage)
	}
}

func TestRecordClassification_LowConfidenceNeedsReview(t *testing.T) {
	tracker, _, _ := newTestTracker()
	ctx := context.Background()
	tracker.RecordFetched(ctx, fetchedEmail("m1"))

	record, err := tracker.RecordClassification(ctx, "m1", domain.MethodML, &domain.ClassificationResult{
		IsJobRelated: true, Confidence: 0.6,
	})
	if err != nil {
		t.Fatal(err)
	}
	if record.Stage != domain.StageClassified {
		t.Errorf("stage = %s, want classified while awaiting review", record.Stage)
	}
	if !record.NeedsReview {
		t.Error("low-confidence job email should need review")
	}

	queue, err := tracker.ReviewQueue(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 1 || queue[0].GmailMessageID != "m1" {
		t.Errorf("review queue = %v, want the low-confidence record", queue)
	}
}

func TestApproveForExtraction(t *testing.T) {
	tracker, _, _ := newTestTracker()
	ctx := context.Background()
	tracker.RecordFetched(ctx, fetchedEmail("m1"))
	tracker.RecordClassification(ctx, "m1", domain.MethodML, &domain.ClassificationResult{IsJobRelated: true, Confidence: 0.6})

	record, err := tracker.ApproveForExtraction(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if record.Stage != domain.StageReadyForExtraction || record.NeedsReview {
		t.Errorf("record = %+v, want approved into ready_for_extraction", record)
	}
}

func TestReject_FreezesRecord(t *testing.T) {
	tracker, _, _ := newTestTracker()
	ctx := context.Background()
	tracker.RecordFetched(ctx, fetchedEmail("m1"))
	tracker.RecordClassification(ctx, "m1", domain.MethodML, &domain.ClassificationResult{IsJobRelated: true, Confidence: 0.6})

	record, err := tracker.Reject(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !record.Rejected || record.IsJobRelated {
		t.Errorf("record = %+v, want rejected and not job related", record)
	}

	_, err = tracker.ApproveForExtraction(ctx, "m1")
	if !apperr.IsCode(err, apperr.CodeRecordFrozen) {
		t.Errorf("advance after reject error = %v, want RECORD_FROZEN", err)
	}
}

func TestReject_OnlyReviewableStages(t *testing.T) {
	tracker, _, _ := newTestTracker()
	ctx := context.Background()
	tracker.RecordFetched(ctx, fetchedEmail("m1"))

	_, err := tracker.Reject(ctx, "m1")
	if !apperr.IsCode(err, apperr.CodeIllegalStageTransition) {
		t.Errorf("reject at fetched error = %v, want ILLEGAL_STAGE_TRANSITION", err)
	}
}

func TestRecordExtraction_FailureIsRetryable(t *testing.T) {
	tracker, _, _ := newTestTracker()
	ctx := context.Background()
	tracker.RecordFetched(ctx, fetchedEmail("m1"))
	tracker.RecordClassification(ctx, "m1", domain.MethodLLM, &domain.ClassificationResult{IsJobRelated: true, Confidence: 0.95})

	record, err := tracker.RecordExtraction(ctx, "m1", apperr.ExternalError("extractor", nil))
	if err != nil {
		t.Fatal(err)
	}
	if record.Stage != domain.StageReadyForExtraction {
		t.Errorf("stage = %s, failed extraction must not advance", record.Stage)
	}
	if record.LastError == "" {
		t.Error("failed extraction should annotate the record")
	}

	record, err = tracker.RecordExtraction(ctx, "m1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Stage != domain.StageExtracted || record.LastError != "" {
		t.Errorf("record = %+v, want extracted with the error cleared", record)
	}
}

func TestPromote_SetsJobLinkAtomically(t *testing.T) {
	tracker, repo, store := newTestTracker()
	ctx := context.Background()

	for _, id := range []string{"m1", "m2"} {
		tracker.RecordFetched(ctx, fetchedEmail(id))
		tracker.RecordClassification(ctx, id, domain.MethodLLM, &domain.ClassificationResult{IsJobRelated: true, Confidence: 0.95})
		tracker.RecordExtraction(ctx, id, nil)
	}

	job := domain.NewJob("Acme", "acme.com", "acme", "Engineer", "engineer", domain.StatusApplied, fetchedEmail("m1"))
	if err := tracker.Promote(ctx, job, []string{"m1", "m2"}); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.jobs[job.ID]; !ok {
		t.Error("promotion should persist the job")
	}
	for _, id := range []string{"m1", "m2"} {
		record, _ := repo.Get(ctx, id)
		if record.Stage != domain.StageInJobs {
			t.Errorf("record %s stage = %s, want in_jobs", id, record.Stage)
		}
		if record.JobID == nil || *record.JobID != job.ID {
			t.Errorf("record %s should carry the job link", id)
		}
	}
}

func TestPromote_RefusesUnextractedRecords(t *testing.T) {
	tracker, repo, _ := newTestTracker()
	ctx := context.Background()
	tracker.RecordFetched(ctx, fetchedEmail("m1"))

	job := domain.NewJob("Acme", "acme.com", "acme", "Engineer", "engineer", domain.StatusApplied, fetchedEmail("m1"))
	err := tracker.Promote(ctx, job, []string{"m1"})
	if !apperr.IsCode(err, apperr.CodeIllegalStageTransition) {
		t.Errorf("promote from fetched error = %v, want ILLEGAL_STAGE_TRANSITION", err)
	}

	record, _ := repo.Get(ctx, "m1")
	if record.JobID != nil || record.Stage != domain.StageFetched {
		t.Error("failed promotion must leave the record untouched")
	}
}

func TestStageCounts(t *testing.T) {
	tracker, _, _ := newTestTracker()
	ctx := context.Background()
	tracker.RecordFetched(ctx, fetchedEmail("m1"))
	tracker.RecordFetched(ctx, fetchedEmail("m2"))
	tracker.MarkDigested(ctx, "m2")

	counts, err := tracker.StageCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[domain.StageFetched] != 1 || counts[domain.StageDigested] != 1 {
		t.Errorf("counts = %v, want one fetched and one digested", counts)
	}
}
