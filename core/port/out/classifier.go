package out

import (
	"context"

	"onlyjobs_server/core/domain"
)

// EmailClassifier classifies a single email. Implementations are opaque to the
// core; the pipeline only consumes the structured result.
type EmailClassifier interface {
	Classify(ctx context.Context, subject, body string) (*domain.ClassificationResult, error)
}

// JobSignature is the minimal identity of a job shown to the arbiter. Status
// is included because it disambiguates pipelines that diverged: an offer and a
// fresh application at the same company are rarely the same record.
type JobSignature struct {
	Company  string
	Position string
	Status   string
}

// JobArbiter decides whether a candidate email and an existing job describe
// the same application. Used as the last matching tier when fuzzy scoring is
// inconclusive.
type JobArbiter interface {
	MatchJobs(ctx context.Context, candidate, existing JobSignature) (bool, error)
}

// DigestFilter screens out bulk mail before classification spends a model call.
type DigestFilter interface {
	IsDigest(email *domain.Email) bool
}
