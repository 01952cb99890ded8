// Package persistence implements the repository ports on Postgres via sqlx.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
)

// =============================================================================
// Row Mapping
// =============================================================================

type jobRow struct {
	ID                 uuid.UUID      `db:"id"`
	Company            string         `db:"company"`
	CompanyDomain      sql.NullString `db:"company_domain"`
	NormalizedCompany  string         `db:"normalized_company"`
	Position           string         `db:"position"`
	NormalizedPosition string         `db:"normalized_position"`
	Status             string         `db:"status"`
	ThreadID           sql.NullString `db:"thread_id"`
	FirstContactAt     time.Time      `db:"first_contact_at"`
	LastContactAt      time.Time      `db:"last_contact_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r *jobRow) toEntity() *domain.Job {
	job := &domain.Job{
		ID:                 r.ID,
		Company:            r.Company,
		NormalizedCompany:  r.NormalizedCompany,
		Position:           r.Position,
		NormalizedPosition: r.NormalizedPosition,
		Status:             domain.JobStatus(r.Status),
		FirstContactAt:     r.FirstContactAt,
		LastContactAt:      r.LastContactAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.CompanyDomain.Valid {
		job.CompanyDomain = r.CompanyDomain.String
	}
	if r.ThreadID.Valid {
		job.ThreadID = r.ThreadID.String
	}
	return job
}

type jobEmailRow struct {
	JobID      uuid.UUID `db:"job_id"`
	EmailID    string    `db:"email_id"`
	ReceivedAt time.Time `db:"received_at"`
	IsPrimary  bool      `db:"is_primary"`
}

type statusHistoryRow struct {
	ID        int64          `db:"id"`
	JobID     uuid.UUID      `db:"job_id"`
	Status    string         `db:"status"`
	EmailID   string         `db:"email_id"`
	Signals   pq.StringArray `db:"signals"`
	ChangedAt time.Time      `db:"changed_at"`
}

// =============================================================================
// Job Adapter
// =============================================================================

// JobAdapter persists job aggregates across job_applications, job_emails and
// job_status_history.
type JobAdapter struct {
	db *sqlx.DB
}

func NewJobAdapter(db *sqlx.DB) *JobAdapter {
	return &JobAdapter{db: db}
}

var _ out.JobRepository = (*JobAdapter)(nil)

const jobUpsertQuery = `
	INSERT INTO job_applications (
		id, company, company_domain, normalized_company,
		position, normalized_position, status, thread_id,
		first_contact_at, last_contact_at, created_at, updated_at
	) VALUES (
		:id, :company, :company_domain, :normalized_company,
		:position, :normalized_position, :status, :thread_id,
		:first_contact_at, :last_contact_at, :created_at, :updated_at
	)
	ON CONFLICT (id) DO UPDATE SET
		company = EXCLUDED.company,
		company_domain = EXCLUDED.company_domain,
		normalized_company = EXCLUDED.normalized_company,
		position = EXCLUDED.position,
		normalized_position = EXCLUDED.normalized_position,
		status = EXCLUDED.status,
		thread_id = EXCLUDED.thread_id,
		first_contact_at = EXCLUDED.first_contact_at,
		last_contact_at = EXCLUDED.last_contact_at,
		updated_at = EXCLUDED.updated_at`

func toJobRow(job *domain.Job) *jobRow {
	row := &jobRow{
		ID:                 job.ID,
		Company:            job.Company,
		NormalizedCompany:  job.NormalizedCompany,
		Position:           job.Position,
		NormalizedPosition: job.NormalizedPosition,
		Status:             string(job.Status),
		FirstContactAt:     job.FirstContactAt,
		LastContactAt:      job.LastContactAt,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
	}
	if job.CompanyDomain != "" {
		row.CompanyDomain = sql.NullString{String: job.CompanyDomain, Valid: true}
	}
	if job.ThreadID != "" {
		row.ThreadID = sql.NullString{String: job.ThreadID, Valid: true}
	}
	return row
}

// saveTx writes the aggregate inside an open transaction: the job row, its
// email membership and any new status history entries.
func (a *JobAdapter) saveTx(ctx context.Context, tx *sqlx.Tx, job *domain.Job) error {
	if _, err := tx.NamedExecContext(ctx, jobUpsertQuery, toJobRow(job)); err != nil {
		return mapError(err, "job", "save job")
	}

	for _, ref := range job.Emails {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_emails (job_id, email_id, received_at, is_primary)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email_id) DO NOTHING`,
			job.ID, ref.EmailID, ref.ReceivedAt, ref.IsPrimary,
		)
		if err != nil {
			return mapError(err, "job email", "save job emails")
		}
	}

	for _, change := range job.StatusHistory {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_status_history (id, job_id, status, email_id, signals, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			change.ID, job.ID, string(change.Status), change.EmailID,
			pq.Array(change.Signals), change.ChangedAt,
		)
		if err != nil {
			return mapError(err, "status change", "save status history")
		}
	}
	return nil
}

func (a *JobAdapter) save(ctx context.Context, job *domain.Job) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(err, "job", "begin tx")
	}
	defer tx.Rollback()

	if err := a.saveTx(ctx, tx, job); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "job", "commit")
	}
	return nil
}

func (a *JobAdapter) Create(ctx context.Context, job *domain.Job) error {
	return a.save(ctx, job)
}

func (a *JobAdapter) Update(ctx context.Context, job *domain.Job) error {
	return a.save(ctx, job)
}

// SaveAndPromote writes the job and flips the given pipeline records to
// in_jobs in the same transaction.
func (a *JobAdapter) SaveAndPromote(ctx context.Context, job *domain.Job, messageIDs []string) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(err, "job", "begin tx")
	}
	defer tx.Rollback()

	if err := a.saveTx(ctx, tx, job); err != nil {
		return err
	}
	if len(messageIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE email_pipeline
			SET pipeline_stage = 'in_jobs', jobs_table_id = $1, updated_at = NOW()
			WHERE gmail_message_id = ANY($2)`,
			job.ID, pq.Array(messageIDs),
		)
		if err != nil {
			return mapError(err, "pipeline record", "promote records")
		}
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "job", "commit")
	}
	return nil
}

func (a *JobAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var row jobRow
	err := a.db.QueryRowxContext(ctx, "SELECT * FROM job_applications WHERE id = $1", id).StructScan(&row)
	if err != nil {
		return nil, mapError(err, "job", "get job")
	}
	return a.loadMembers(ctx, row.toEntity())
}

func (a *JobAdapter) GetByThreadID(ctx context.Context, threadID string) (*domain.Job, error) {
	var row jobRow
	err := a.db.QueryRowxContext(ctx, "SELECT * FROM job_applications WHERE thread_id = $1", threadID).StructScan(&row)
	if err != nil {
		return nil, mapError(err, "job", "get job by thread")
	}
	return a.loadMembers(ctx, row.toEntity())
}

func (a *JobAdapter) ListByNormalizedCompany(ctx context.Context, normalizedCompany string) ([]*domain.Job, error) {
	rows, err := a.db.QueryxContext(ctx, `
		SELECT * FROM job_applications
		WHERE normalized_company = $1
		ORDER BY last_contact_at DESC`, normalizedCompany)
	if err != nil {
		return nil, mapError(err, "job", "list jobs by company")
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var row jobRow
		if err := rows.StructScan(&row); err != nil {
			return nil, mapError(err, "job", "scan job")
		}
		job, err := a.loadMembers(ctx, row.toEntity())
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (a *JobAdapter) List(ctx context.Context, filter out.JobListFilter) ([]*domain.Job, error) {
	query := "SELECT * FROM job_applications WHERE 1=1"
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (company ILIKE $%d OR position ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY last_contact_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := a.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "job", "list jobs")
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var row jobRow
		if err := rows.StructScan(&row); err != nil {
			return nil, mapError(err, "job", "scan job")
		}
		job, err := a.loadMembers(ctx, row.toEntity())
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (a *JobAdapter) Count(ctx context.Context, filter out.JobListFilter) (int, error) {
	query := "SELECT COUNT(*) FROM job_applications WHERE 1=1"
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (company ILIKE $%d OR position ILIKE $%d)", len(args), len(args))
	}

	var count int
	if err := a.db.QueryRowxContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, mapError(err, "job", "count jobs")
	}
	return count, nil
}

// loadMembers hydrates the email membership and status history for one job.
func (a *JobAdapter) loadMembers(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	emailRows, err := a.db.QueryxContext(ctx, `
		SELECT job_id, email_id, received_at, is_primary
		FROM job_emails
		WHERE job_id = $1
		ORDER BY received_at ASC`, job.ID)
	if err != nil {
		return nil, mapError(err, "job email", "load job emails")
	}
	defer emailRows.Close()

	for emailRows.Next() {
		var row jobEmailRow
		if err := emailRows.StructScan(&row); err != nil {
			return nil, mapError(err, "job email", "scan job email")
		}
		job.Emails = append(job.Emails, domain.EmailRef{
			EmailID:    row.EmailID,
			ReceivedAt: row.ReceivedAt,
			IsPrimary:  row.IsPrimary,
		})
	}

	historyRows, err := a.db.QueryxContext(ctx, `
		SELECT id, job_id, status, email_id, signals, changed_at
		FROM job_status_history
		WHERE job_id = $1
		ORDER BY changed_at ASC`, job.ID)
	if err != nil {
		return nil, mapError(err, "status change", "load status history")
	}
	defer historyRows.Close()

	for historyRows.Next() {
		var row statusHistoryRow
		if err := historyRows.StructScan(&row); err != nil {
			return nil, mapError(err, "status change", "scan status change")
		}
		job.StatusHistory = append(job.StatusHistory, domain.StatusChange{
			ID:        row.ID,
			Status:    domain.JobStatus(row.Status),
			EmailID:   row.EmailID,
			Signals:   row.Signals,
			ChangedAt: row.ChangedAt,
		})
	}
	return job, nil
}
