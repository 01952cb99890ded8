package domain

import (
	"time"

	"onlyjobs_server/pkg/apperr"
)

// Email is a single Gmail message as fetched upstream. It is immutable input:
// the pipeline never mutates it, and once matched it is referenced by exactly
// one job.
type Email struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"thread_id,omitempty"`
	AccountEmail string    `json:"account_email"`
	FromAddress  string    `json:"from_address"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Validate checks the fields the pipeline cannot default.
func (e *Email) Validate() error {
	if e == nil {
		return apperr.MalformedInput("email is nil")
	}
	if e.ID == "" {
		return apperr.MissingField("id")
	}
	if e.ThreadID == "" && e.FromAddress == "" {
		return apperr.MalformedInput("email has neither thread id nor from address")
	}
	if e.ReceivedAt.IsZero() {
		return apperr.MissingField("received_at")
	}
	return nil
}

// EmailRef is a job's membership entry for one email. The first-seen email of
// a job is tagged primary.
type EmailRef struct {
	EmailID    string    `json:"email_id"`
	ReceivedAt time.Time `json:"received_at"`
	IsPrimary  bool      `json:"is_primary"`
}
