package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// StatusChange is one entry in a job's status history. Signals carries the
// keywords that drove the status decision.
type StatusChange struct {
	ID        int64     `json:"id"`
	Status    JobStatus `json:"status"`
	EmailID   string    `json:"email_id"`
	Signals   []string  `json:"signals,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Job is the aggregate for one application to one position at one company.
// ThreadID, when set, is unique across jobs.
type Job struct {
	ID                 uuid.UUID      `json:"id"`
	Company            string         `json:"company"`
	CompanyDomain      string         `json:"company_domain,omitempty"`
	NormalizedCompany  string         `json:"normalized_company"`
	Position           string         `json:"position"`
	NormalizedPosition string         `json:"normalized_position"`
	Status             JobStatus      `json:"status"`
	ThreadID           string         `json:"thread_id,omitempty"`
	Emails             []EmailRef     `json:"emails"`
	StatusHistory      []StatusChange `json:"status_history"`
	FirstContactAt     time.Time      `json:"first_contact_at"`
	LastContactAt      time.Time      `json:"last_contact_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewJob creates a job seeded with its first email.
func NewJob(company, companyDomain, normalizedCompany, position, normalizedPosition string, status JobStatus, email *Email) *Job {
	job := &Job{
		ID:                 uuid.New(),
		Company:            company,
		CompanyDomain:      companyDomain,
		NormalizedCompany:  normalizedCompany,
		Position:           position,
		NormalizedPosition: normalizedPosition,
		Status:             status,
		ThreadID:           email.ThreadID,
		FirstContactAt:     email.ReceivedAt,
		LastContactAt:      email.ReceivedAt,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	job.Emails = []EmailRef{{
		EmailID:    email.ID,
		ReceivedAt: email.ReceivedAt,
		IsPrimary:  true,
	}}
	return job
}

// HasEmail reports whether the email is already a member of this job.
func (j *Job) HasEmail(emailID string) bool {
	for _, ref := range j.Emails {
		if ref.EmailID == emailID {
			return true
		}
	}
	return false
}

// AddEmail attaches an email to the job, keeping membership chronological and
// widening the contact window. Attaching an email already present is a no-op.
func (j *Job) AddEmail(email *Email) {
	if j.HasEmail(email.ID) {
		return
	}
	j.Emails = append(j.Emails, EmailRef{
		EmailID:    email.ID,
		ReceivedAt: email.ReceivedAt,
	})
	sort.SliceStable(j.Emails, func(a, b int) bool {
		return j.Emails[a].ReceivedAt.Before(j.Emails[b].ReceivedAt)
	})
	if email.ReceivedAt.Before(j.FirstContactAt) {
		j.FirstContactAt = email.ReceivedAt
	}
	if email.ReceivedAt.After(j.LastContactAt) {
		j.LastContactAt = email.ReceivedAt
	}
	j.UpdatedAt = time.Now()
}

// SetStatus moves the job to a new status and records the change. A repeated
// status is not recorded twice in a row.
func (j *Job) SetStatus(changeID int64, status JobStatus, emailID string, signals []string, at time.Time) {
	if j.Status == status && len(j.StatusHistory) > 0 {
		return
	}
	j.Status = status
	j.StatusHistory = append(j.StatusHistory, StatusChange{
		ID:        changeID,
		Status:    status,
		EmailID:   emailID,
		Signals:   signals,
		ChangedAt: at,
	})
	j.UpdatedAt = time.Now()
}

// PrimaryEmailID returns the id of the email the job was created from.
func (j *Job) PrimaryEmailID() string {
	for _, ref := range j.Emails {
		if ref.IsPrimary {
			return ref.EmailID
		}
	}
	if len(j.Emails) > 0 {
		return j.Emails[0].EmailID
	}
	return ""
}
