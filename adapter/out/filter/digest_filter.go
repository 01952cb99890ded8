// Package filter implements the rule-based digest screen that runs before any
// model call is spent on an email.
package filter

import (
	"strings"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
)

// RuleBasedDigestFilter flags bulk mail by sender and subject patterns.
// Digest senders push many unrelated postings in one message, so anything
// flagged here is routed out of job matching entirely.
type RuleBasedDigestFilter struct {
	senderKeywords  []string
	subjectKeywords []string
}

var defaultDigestSenders = []string{
	"newsletter@", "digest@", "alerts@", "jobalerts", "no-reply@linkedin",
	"noreply@glassdoor", "alert@indeed", "noreply@indeed",
}

var defaultDigestSubjects = []string{
	"job digest", "daily digest", "weekly digest", "jobs for you",
	"new jobs matching", "job alert", "recommended jobs", "newsletter",
	"top job picks", "jobs you may be interested in",
}

// NewRuleBasedDigestFilter builds a filter. Nil slices fall back to the
// built-in patterns.
func NewRuleBasedDigestFilter(senderKeywords, subjectKeywords []string) *RuleBasedDigestFilter {
	if senderKeywords == nil {
		senderKeywords = defaultDigestSenders
	}
	if subjectKeywords == nil {
		subjectKeywords = defaultDigestSubjects
	}
	return &RuleBasedDigestFilter{
		senderKeywords:  senderKeywords,
		subjectKeywords: subjectKeywords,
	}
}

var _ out.DigestFilter = (*RuleBasedDigestFilter)(nil)

// IsDigest reports whether the email looks like bulk job-board mail.
func (f *RuleBasedDigestFilter) IsDigest(email *domain.Email) bool {
	from := strings.ToLower(email.FromAddress)
	for _, kw := range f.senderKeywords {
		if strings.Contains(from, kw) {
			return true
		}
	}
	subject := strings.ToLower(email.Subject)
	for _, kw := range f.subjectKeywords {
		if strings.Contains(subject, kw) {
			return true
		}
	}
	return false
}
