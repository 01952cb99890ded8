// Package pipeline drives per-email workflow state and orchestrates matching
// runs over email batches.
package pipeline

import (
	"context"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
	"onlyjobs_server/pkg/apperr"
	"onlyjobs_server/pkg/logger"
)

// Tracker moves pipeline records through their stages. All transitions go
// through domain.PipelineRecord.Advance, so illegal moves fail loudly.
type Tracker struct {
	pipeRepo             out.PipelineRepository
	jobRepo              out.JobRepository
	autoApproveThreshold float64
	log                  *logger.Logger
}

// NewTracker creates a Tracker. Records classified at or above the threshold
// advance to extraction without human review.
func NewTracker(pipeRepo out.PipelineRepository, jobRepo out.JobRepository, autoApproveThreshold float64) *Tracker {
	return &Tracker{
		pipeRepo:             pipeRepo,
		jobRepo:              jobRepo,
		autoApproveThreshold: autoApproveThreshold,
		log:                  logger.Default().WithField("component", "pipeline_tracker"),
	}
}

// RecordFetched registers an email at the fetched stage. A duplicate message
// id resolves to the existing record instead of erroring.
func (t *Tracker) RecordFetched(ctx context.Context, email *domain.Email) (*domain.PipelineRecord, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}
	record := domain.NewPipelineRecord(email.ID)
	if err := t.pipeRepo.Create(ctx, record); err != nil {
		if apperr.IsCode(err, apperr.CodeUniquenessConflict) {
			return t.pipeRepo.Get(ctx, email.ID)
		}
		return nil, err
	}
	return record, nil
}

// MarkDigested moves a fetched record into the terminal digested stage. The
// email is excluded from matching from here on.
func (t *Tracker) MarkDigested(ctx context.Context, gmailMessageID string) error {
	record, err := t.pipeRepo.Get(ctx, gmailMessageID)
	if err != nil {
		return err
	}
	record.ClassificationMethod = domain.MethodDigestFilter
	if err := record.Advance(domain.StageDigested); err != nil {
		return err
	}
	return t.pipeRepo.Update(ctx, record)
}

// RecordClassification stores a classification result and advances the record.
// Job-related results at or above the auto-approve threshold move straight to
// ready_for_extraction; below it they wait for human review.
func (t *Tracker) RecordClassification(ctx context.Context, gmailMessageID string, method domain.ClassificationMethod, result *domain.ClassificationResult) (*domain.PipelineRecord, error) {
	record, err := t.pipeRepo.Get(ctx, gmailMessageID)
	if err != nil {
		return nil, err
	}
	if err := record.Advance(domain.StageClassified); err != nil {
		return nil, err
	}
	record.ClassificationMethod = method
	record.IsClassified = true
	record.IsJobRelated = result.IsJobRelated
	record.JobProbability = result.Confidence

	if result.IsJobRelated {
		if result.Confidence >= t.autoApproveThreshold {
			if err := record.Advance(domain.StageReadyForExtraction); err != nil {
				return nil, err
			}
			record.NeedsReview = false
		} else {
			record.NeedsReview = true
		}
	}
	if err := t.pipeRepo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ApproveForExtraction is the human-review path from classified to
// ready_for_extraction.
func (t *Tracker) ApproveForExtraction(ctx context.Context, gmailMessageID string) (*domain.PipelineRecord, error) {
	record, err := t.pipeRepo.Get(ctx, gmailMessageID)
	if err != nil {
		return nil, err
	}
	if err := record.Advance(domain.StageReadyForExtraction); err != nil {
		return nil, err
	}
	record.IsJobRelated = true
	record.NeedsReview = false
	if err := t.pipeRepo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Reject marks a classified or ready_for_extraction record as not a job.
// The record freezes where it is and never advances again.
func (t *Tracker) Reject(ctx context.Context, gmailMessageID string) (*domain.PipelineRecord, error) {
	record, err := t.pipeRepo.Get(ctx, gmailMessageID)
	if err != nil {
		return nil, err
	}
	if record.Stage != domain.StageClassified && record.Stage != domain.StageReadyForExtraction {
		return nil, apperr.IllegalStageTransition(string(record.Stage), "rejected").
			WithDetail("reason", "only classified and ready_for_extraction records can be rejected")
	}
	record.Rejected = true
	record.IsJobRelated = false
	record.NeedsReview = false
	record.ClassificationMethod = domain.MethodHuman
	if err := t.pipeRepo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// RecordExtraction advances a record to extracted, or annotates the failure
// and leaves it at ready_for_extraction for a retry.
func (t *Tracker) RecordExtraction(ctx context.Context, gmailMessageID string, extractionErr error) (*domain.PipelineRecord, error) {
	record, err := t.pipeRepo.Get(ctx, gmailMessageID)
	if err != nil {
		return nil, err
	}
	if extractionErr != nil {
		record.LastError = extractionErr.Error()
		if err := t.pipeRepo.Update(ctx, record); err != nil {
			return nil, err
		}
		return record, nil
	}
	if err := record.Advance(domain.StageExtracted); err != nil {
		return nil, err
	}
	record.LastError = ""
	if err := t.pipeRepo.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Promote links extracted records to their job and persists both in one
// transaction. Records not yet at extracted fail the whole promotion before
// anything is written.
func (t *Tracker) Promote(ctx context.Context, job *domain.Job, gmailMessageIDs []string) error {
	for _, id := range gmailMessageIDs {
		record, err := t.pipeRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if record.Rejected {
			return apperr.RecordFrozen(id)
		}
		if record.Stage != domain.StageExtracted {
			return apperr.IllegalStageTransition(string(record.Stage), string(domain.StageInJobs))
		}
	}
	return t.jobRepo.SaveAndPromote(ctx, job, gmailMessageIDs)
}

// StageCounts reports how many records sit at each stage.
func (t *Tracker) StageCounts(ctx context.Context) (map[domain.Stage]int, error) {
	return t.pipeRepo.CountByStage(ctx)
}

// ReviewQueue lists records waiting for human review.
func (t *Tracker) ReviewQueue(ctx context.Context, limit int) ([]*domain.PipelineRecord, error) {
	return t.pipeRepo.ListNeedsReview(ctx, limit)
}
