package domain

import (
	"time"

	"github.com/google/uuid"

	"onlyjobs_server/pkg/apperr"
)

// Stage is the processing stage of one email in the pipeline.
type Stage string

const (
	StageFetched            Stage = "fetched"
	StageDigested           Stage = "digested"
	StageClassified         Stage = "classified"
	StageReadyForExtraction Stage = "ready_for_extraction"
	StageExtracted          Stage = "extracted"
	StageInJobs             Stage = "in_jobs"
)

// validTransitions is the stage adjacency map. Anything not listed is illegal,
// including every backward move. Digested is terminal.
var validTransitions = map[Stage][]Stage{
	StageFetched:            {StageDigested, StageClassified},
	StageDigested:           {},
	StageClassified:         {StageReadyForExtraction},
	StageReadyForExtraction: {StageExtracted},
	StageExtracted:          {StageInJobs},
	StageInJobs:             {},
}

// ParseStage converts a string into a Stage, validating it.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if _, ok := validTransitions[stage]; !ok {
		return "", apperr.MalformedInput("unknown pipeline stage: " + s)
	}
	return stage, nil
}

// IsTransitionAllowed reports whether moving from one stage to another is legal.
func IsTransitionAllowed(from, to Stage) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PipelineRecord tracks one email's position in the pipeline. There is exactly
// one record per Gmail message id.
type PipelineRecord struct {
	GmailMessageID       string               `json:"gmail_message_id"`
	Stage                Stage                `json:"stage"`
	ClassificationMethod ClassificationMethod `json:"classification_method,omitempty"`
	IsClassified         bool                 `json:"is_classified"`
	IsJobRelated         bool                 `json:"is_job_related"`
	NeedsReview          bool                 `json:"needs_review"`
	Rejected             bool                 `json:"rejected"`
	JobProbability       float64              `json:"job_probability"`
	JobID                *uuid.UUID           `json:"job_id,omitempty"`
	LastError            string               `json:"last_error,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// NewPipelineRecord creates a record at the fetched stage.
func NewPipelineRecord(gmailMessageID string) *PipelineRecord {
	now := time.Now()
	return &PipelineRecord{
		GmailMessageID: gmailMessageID,
		Stage:          StageFetched,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Advance moves the record to the given stage, enforcing the transition map.
// Rejected records are frozen and cannot advance. Reaching in_jobs requires
// the job link to already be set.
func (r *PipelineRecord) Advance(to Stage) error {
	if r.Rejected {
		return apperr.RecordFrozen(r.GmailMessageID)
	}
	if !IsTransitionAllowed(r.Stage, to) {
		return apperr.IllegalStageTransition(string(r.Stage), string(to))
	}
	if to == StageInJobs && r.JobID == nil {
		return apperr.IllegalStageTransition(string(r.Stage), string(to)).
			WithDetail("reason", "job link not set")
	}
	r.Stage = to
	r.UpdatedAt = time.Now()
	return nil
}
