package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
)

// =============================================================================
// Row Mapping
// =============================================================================

type pipelineRow struct {
	GmailMessageID       string         `db:"gmail_message_id"`
	PipelineStage        string         `db:"pipeline_stage"`
	ClassificationMethod sql.NullString `db:"classification_method"`
	IsClassified         bool           `db:"is_classified"`
	IsJobRelated         bool           `db:"is_job_related"`
	NeedsReview          bool           `db:"needs_review"`
	Rejected             bool           `db:"rejected"`
	JobProbability       float64        `db:"job_probability"`
	JobsTableID          uuid.NullUUID  `db:"jobs_table_id"`
	LastError            sql.NullString `db:"last_error"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (r *pipelineRow) toEntity() *domain.PipelineRecord {
	record := &domain.PipelineRecord{
		GmailMessageID: r.GmailMessageID,
		Stage:          domain.Stage(r.PipelineStage),
		IsClassified:   r.IsClassified,
		IsJobRelated:   r.IsJobRelated,
		NeedsReview:    r.NeedsReview,
		Rejected:       r.Rejected,
		JobProbability: r.JobProbability,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ClassificationMethod.Valid {
		record.ClassificationMethod = domain.ClassificationMethod(r.ClassificationMethod.String)
	}
	if r.JobsTableID.Valid {
		id := r.JobsTableID.UUID
		record.JobID = &id
	}
	if r.LastError.Valid {
		record.LastError = r.LastError.String
	}
	return record
}

func toPipelineRow(record *domain.PipelineRecord) *pipelineRow {
	row := &pipelineRow{
		GmailMessageID: record.GmailMessageID,
		PipelineStage:  string(record.Stage),
		IsClassified:   record.IsClassified,
		IsJobRelated:   record.IsJobRelated,
		NeedsReview:    record.NeedsReview,
		Rejected:       record.Rejected,
		JobProbability: record.JobProbability,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	if record.ClassificationMethod != "" {
		row.ClassificationMethod = sql.NullString{String: string(record.ClassificationMethod), Valid: true}
	}
	if record.JobID != nil {
		row.JobsTableID = uuid.NullUUID{UUID: *record.JobID, Valid: true}
	}
	if record.LastError != "" {
		row.LastError = sql.NullString{String: record.LastError, Valid: true}
	}
	return row
}

// =============================================================================
// Pipeline Adapter
// =============================================================================

// PipelineAdapter persists per-email pipeline records in email_pipeline.
type PipelineAdapter struct {
	db *sqlx.DB
}

func NewPipelineAdapter(db *sqlx.DB) *PipelineAdapter {
	return &PipelineAdapter{db: db}
}

var _ out.PipelineRepository = (*PipelineAdapter)(nil)

func (a *PipelineAdapter) Create(ctx context.Context, record *domain.PipelineRecord) error {
	_, err := a.db.NamedExecContext(ctx, `
		INSERT INTO email_pipeline (
			gmail_message_id, pipeline_stage, classification_method,
			is_classified, is_job_related, needs_review, rejected,
			job_probability, jobs_table_id, last_error, created_at, updated_at
		) VALUES (
			:gmail_message_id, :pipeline_stage, :classification_method,
			:is_classified, :is_job_related, :needs_review, :rejected,
			:job_probability, :jobs_table_id, :last_error, :created_at, :updated_at
		)`, toPipelineRow(record))
	return mapError(err, "pipeline record", "create pipeline record")
}

func (a *PipelineAdapter) Get(ctx context.Context, gmailMessageID string) (*domain.PipelineRecord, error) {
	var row pipelineRow
	err := a.db.QueryRowxContext(ctx,
		"SELECT * FROM email_pipeline WHERE gmail_message_id = $1", gmailMessageID,
	).StructScan(&row)
	if err != nil {
		return nil, mapError(err, "pipeline record", "get pipeline record")
	}
	return row.toEntity(), nil
}

func (a *PipelineAdapter) Update(ctx context.Context, record *domain.PipelineRecord) error {
	record.UpdatedAt = time.Now()
	result, err := a.db.NamedExecContext(ctx, `
		UPDATE email_pipeline SET
			pipeline_stage = :pipeline_stage,
			classification_method = :classification_method,
			is_classified = :is_classified,
			is_job_related = :is_job_related,
			needs_review = :needs_review,
			rejected = :rejected,
			job_probability = :job_probability,
			jobs_table_id = :jobs_table_id,
			last_error = :last_error,
			updated_at = :updated_at
		WHERE gmail_message_id = :gmail_message_id`, toPipelineRow(record))
	if err != nil {
		return mapError(err, "pipeline record", "update pipeline record")
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return mapError(sql.ErrNoRows, "pipeline record", "update pipeline record")
	}
	return nil
}

func (a *PipelineAdapter) CountByStage(ctx context.Context) (map[domain.Stage]int, error) {
	rows, err := a.db.QueryxContext(ctx, `
		SELECT pipeline_stage, COUNT(*) AS count
		FROM email_pipeline
		GROUP BY pipeline_stage`)
	if err != nil {
		return nil, mapError(err, "pipeline record", "count by stage")
	}
	defer rows.Close()

	counts := make(map[domain.Stage]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, mapError(err, "pipeline record", "scan stage count")
		}
		counts[domain.Stage(stage)] = count
	}
	return counts, nil
}

func (a *PipelineAdapter) ListNeedsReview(ctx context.Context, limit int) ([]*domain.PipelineRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryxContext(ctx, `
		SELECT * FROM email_pipeline
		WHERE needs_review = TRUE AND rejected = FALSE
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, mapError(err, "pipeline record", "list needs review")
	}
	defer rows.Close()

	var records []*domain.PipelineRecord
	for rows.Next() {
		var row pipelineRow
		if err := rows.StructScan(&row); err != nil {
			return nil, mapError(err, "pipeline record", "scan pipeline record")
		}
		records = append(records, row.toEntity())
	}
	return records, nil
}
