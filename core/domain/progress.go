package domain

import "time"

// ProgressEventType identifies one kind of pipeline progress event.
type ProgressEventType string

const (
	EventBatchStarted   ProgressEventType = "batch_started"
	EventBatchCompleted ProgressEventType = "batch_completed"
	EventUnitClassified ProgressEventType = "unit_classified"
	EventJobFound       ProgressEventType = "job_found"
	EventUnitSkipped    ProgressEventType = "unit_skipped"
	EventRunCompleted   ProgressEventType = "run_completed"
)

// ProgressEvent is one step of pipeline progress, published to subscribers as
// the run advances. Seq orders events within a run.
type ProgressEvent struct {
	Type           ProgressEventType `json:"type"`
	Seq            int64             `json:"seq"`
	RunID          string            `json:"run_id"`
	BatchIndex     int               `json:"batch_index,omitempty"`
	BatchTotal     int               `json:"batch_total,omitempty"`
	UnitsProcessed int               `json:"units_processed"`
	UnitsTotal     int               `json:"units_total"`
	Company        string            `json:"company,omitempty"`
	Position       string            `json:"position,omitempty"`
	Status         string            `json:"status,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// RunSummary is the terminal accounting for one pipeline run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	UnitsTotal  int       `json:"units_total"`
	Succeeded   int       `json:"succeeded"`
	Skipped     int       `json:"skipped"`
	JobsCreated int       `json:"jobs_created"`
	JobsUpdated int       `json:"jobs_updated"`
	Cancelled   bool      `json:"cancelled"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
