package domain

import (
	"testing"
	"time"
)

func testEmail(id string, receivedAt time.Time) *Email {
	return &Email{
		ID:          id,
		FromAddress: "hr@acme.com",
		Subject:     "subject",
		ReceivedAt:  receivedAt,
	}
}

func TestNewJob(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	email := testEmail("e1", at)
	email.ThreadID = "T1"

	job := NewJob("Acme, Inc.", "acme.com", "acme", "Senior Engineer", "engineer", StatusApplied, email)

	if job.ThreadID != "T1" {
		t.Errorf("thread_id = %q, want T1", job.ThreadID)
	}
	if job.FirstContactAt != at || job.LastContactAt != at {
		t.Error("contact window should start at the first email")
	}
	if len(job.Emails) != 1 || !job.Emails[0].IsPrimary {
		t.Error("first email should be the primary member")
	}
}

func TestAddEmail_ChronologicalAndIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	job := NewJob("Acme", "acme.com", "acme", "Engineer", "engineer", StatusApplied, testEmail("e2", base))

	job.AddEmail(testEmail("e1", base.Add(-48*time.Hour)))
	job.AddEmail(testEmail("e3", base.Add(24*time.Hour)))
	job.AddEmail(testEmail("e3", base.Add(24*time.Hour)))

	if len(job.Emails) != 3 {
		t.Fatalf("email count = %d, want 3 after duplicate add", len(job.Emails))
	}
	for i, want := range []string{"e1", "e2", "e3"} {
		if job.Emails[i].EmailID != want {
			t.Errorf("emails[%d] = %s, want %s", i, job.Emails[i].EmailID, want)
		}
	}
	if !job.FirstContactAt.Equal(base.Add(-48 * time.Hour)) {
		t.Errorf("first_contact_at = %v, want widened backward", job.FirstContactAt)
	}
	if !job.LastContactAt.Equal(base.Add(24 * time.Hour)) {
		t.Errorf("last_contact_at = %v, want widened forward", job.LastContactAt)
	}
	if job.PrimaryEmailID() != "e2" {
		t.Errorf("primary = %s, primary flag should survive reordering", job.PrimaryEmailID())
	}
}

func TestSetStatus(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	job := NewJob("Acme", "acme.com", "acme", "Engineer", "engineer", StatusApplied, testEmail("e1", base))

	job.SetStatus(1, StatusApplied, "e1", []string{"classifier:applied"}, base)
	job.SetStatus(2, StatusInterview, "e2", []string{"interview"}, base.Add(time.Hour))
	job.SetStatus(3, StatusInterview, "e3", nil, base.Add(2*time.Hour))

	if job.Status != StatusInterview {
		t.Errorf("status = %v, want Interview", job.Status)
	}
	if len(job.StatusHistory) != 2 {
		t.Fatalf("history length = %d, repeated status should not append", len(job.StatusHistory))
	}
	if job.StatusHistory[1].Signals[0] != "interview" {
		t.Errorf("signals = %v, want the driving keyword recorded", job.StatusHistory[1].Signals)
	}
}

func TestEmailValidate(t *testing.T) {
	at := time.Now()
	tests := []struct {
		name    string
		email   *Email
		wantErr bool
	}{
		{"valid threaded", &Email{ID: "e1", ThreadID: "T1", ReceivedAt: at}, false},
		{"valid orphan with sender", &Email{ID: "e1", FromAddress: "a@b.com", ReceivedAt: at}, false},
		{"missing id", &Email{ThreadID: "T1", ReceivedAt: at}, true},
		{"no thread and no sender", &Email{ID: "e1", ReceivedAt: at}, true},
		{"missing received_at", &Email{ID: "e1", ThreadID: "T1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.email.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
