package match

import (
	"strings"

	"onlyjobs_server/core/domain"
)

// statusScanTail is how many of the most recent emails the keyword scan reads.
const statusScanTail = 3

// ResolveStatus maps the classifier's free-text status onto the tracked enum.
// Keyword priority: offer beats declined beats interview beats applied, and
// anything unrecognized defaults to applied.
func ResolveStatus(rawStatus string) domain.JobStatus {
	s := strings.ToLower(rawStatus)
	switch {
	case strings.Contains(s, "offer"):
		return domain.StatusOffer
	case strings.Contains(s, "declin"), strings.Contains(s, "reject"):
		return domain.StatusDeclined
	case strings.Contains(s, "interview"):
		return domain.StatusInterview
	case strings.Contains(s, "appli"):
		return domain.StatusApplied
	default:
		return domain.StatusApplied
	}
}

// ResolveLatestStatus starts from the classifier's status and overrides it
// with keyword evidence from the tail of the conversation. Single-email
// classification is less reliable than recent keywords across the last few
// messages, so a clear "offer" or "reject" in recent text wins. An offer is
// never downgraded by the scan. Returns the status and the keywords that
// drove it.
func ResolveLatestStatus(orderedEmails []*domain.Email, classification *domain.ClassificationResult) (domain.JobStatus, []string) {
	status := ResolveStatus(classification.Status)
	var signals []string
	if s := strings.ToLower(classification.Status); s != "" {
		signals = append(signals, "classifier:"+s)
	}

	tail := orderedEmails
	if len(tail) > statusScanTail {
		tail = tail[len(tail)-statusScanTail:]
	}

	for _, email := range tail {
		text := strings.ToLower(email.Subject + " " + email.Body)
		switch {
		case strings.Contains(text, "offer") && strings.Contains(text, "congratulations"):
			status = domain.StatusOffer
			signals = append(signals, "offer", "congratulations")
		case (strings.Contains(text, "interview") || strings.Contains(text, "schedule")) && status != domain.StatusOffer:
			status = domain.StatusInterview
			if strings.Contains(text, "interview") {
				signals = append(signals, "interview")
			} else {
				signals = append(signals, "schedule")
			}
		case (strings.Contains(text, "reject") || strings.Contains(text, "unfortunately")) && status != domain.StatusOffer:
			status = domain.StatusDeclined
			if strings.Contains(text, "reject") {
				signals = append(signals, "reject")
			} else {
				signals = append(signals, "unfortunately")
			}
		}
	}
	return status, signals
}
