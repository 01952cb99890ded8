package out

import (
	"context"

	"github.com/google/uuid"

	"onlyjobs_server/core/domain"
)

// JobListFilter narrows job listings.
type JobListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// JobRepository persists job aggregates.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	Update(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	GetByThreadID(ctx context.Context, threadID string) (*domain.Job, error)
	ListByNormalizedCompany(ctx context.Context, normalizedCompany string) ([]*domain.Job, error)
	List(ctx context.Context, filter JobListFilter) ([]*domain.Job, error)
	Count(ctx context.Context, filter JobListFilter) (int, error)

	// SaveAndPromote writes the job and flips the pipeline records for the
	// given message ids to in_jobs in one transaction. Either everything
	// lands or nothing does.
	SaveAndPromote(ctx context.Context, job *domain.Job, messageIDs []string) error
}

// PipelineRepository persists per-email pipeline records.
type PipelineRepository interface {
	Create(ctx context.Context, record *domain.PipelineRecord) error
	Get(ctx context.Context, gmailMessageID string) (*domain.PipelineRecord, error)
	Update(ctx context.Context, record *domain.PipelineRecord) error
	CountByStage(ctx context.Context) (map[domain.Stage]int, error)
	ListNeedsReview(ctx context.Context, limit int) ([]*domain.PipelineRecord, error)
}
