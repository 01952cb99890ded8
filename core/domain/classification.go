package domain

// JobStatus is the closed set of application statuses tracked per job.
// Classifier free text is parsed into this enum at the boundary; raw strings
// never travel through the core.
type JobStatus string

const (
	StatusApplied   JobStatus = "Applied"
	StatusInterview JobStatus = "Interview"
	StatusOffer     JobStatus = "Offer"
	StatusDeclined  JobStatus = "Declined"
)

// ValidStatus reports whether s is one of the four tracked statuses.
func ValidStatus(s JobStatus) bool {
	switch s {
	case StatusApplied, StatusInterview, StatusOffer, StatusDeclined:
		return true
	}
	return false
}

// ClassificationMethod records how an email was classified.
type ClassificationMethod string

const (
	MethodDigestFilter ClassificationMethod = "digest_filter"
	MethodML           ClassificationMethod = "ml"
	MethodLLM          ClassificationMethod = "llm"
	MethodHuman        ClassificationMethod = "human"
	MethodRuleBased    ClassificationMethod = "rule_based"
)

// ClassificationResult is the opaque classifier's output for one email.
// When IsJobRelated is false the remaining fields are ignored by the core.
type ClassificationResult struct {
	IsJobRelated bool    `json:"is_job_related"`
	Company      string  `json:"company,omitempty"`
	Position     string  `json:"position,omitempty"`
	Status       string  `json:"status,omitempty"`
	Confidence   float64 `json:"confidence"`
}
