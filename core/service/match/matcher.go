// Package match implements job correlation: grouping classified emails into
// threads, resolving application status, and attaching emails to job
// aggregates through a tiered matching cascade.
package match

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"onlyjobs_server/core/domain"
	"onlyjobs_server/core/port/out"
	"onlyjobs_server/core/service/normalize"
	"onlyjobs_server/pkg/apperr"
	"onlyjobs_server/pkg/logger"
	"onlyjobs_server/pkg/snowflake"
)

// Options are the matching knobs. Scores and thresholds are empirical and
// tuned per deployment, so they are injected rather than hard constants.
type Options struct {
	TitleSimilarityThreshold float64
	FuzzyExactScore          float64
	FuzzySubstringScore      float64
	FuzzyDomainScore         float64
	FuzzyCandidateLimit      int
	RecencyWindow            time.Duration
}

// DefaultOptions mirror the tuned production values.
func DefaultOptions() Options {
	return Options{
		TitleSimilarityThreshold: 0.7,
		FuzzyExactScore:          1.0,
		FuzzySubstringScore:      0.8,
		FuzzyDomainScore:         0.5,
		FuzzyCandidateLimit:      5,
		RecencyWindow:            90 * 24 * time.Hour,
	}
}

// Outcome describes what one matching unit produced. A nil Outcome with a nil
// error means the unit was not job related.
type Outcome struct {
	Job     *domain.Job
	Created bool
	Emails  []*domain.Email
	Result  *domain.ClassificationResult
}

// Accumulator is the set of jobs visible to the current run: jobs built during
// the run plus jobs lazily loaded from storage per company group. It also
// retains the full emails attached during the run, keyed by job, so a later
// attach can scan the conversation tail for status keywords. It is mutated by
// a single goroutine.
type Accumulator struct {
	jobs        []*domain.Job
	byThread    map[string]*domain.Job
	byCompany   map[string][]*domain.Job
	emailsByJob map[uuid.UUID][]*domain.Email
	seeded      map[string]struct{}
}

// NewAccumulator returns an empty accumulator for one run.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		byThread:    make(map[string]*domain.Job),
		byCompany:   make(map[string][]*domain.Job),
		emailsByJob: make(map[uuid.UUID][]*domain.Email),
		seeded:      make(map[string]struct{}),
	}
}

func (a *Accumulator) add(job *domain.Job) {
	a.jobs = append(a.jobs, job)
	if job.ThreadID != "" {
		a.byThread[job.ThreadID] = job
	}
	a.byCompany[job.NormalizedCompany] = append(a.byCompany[job.NormalizedCompany], job)
}

// remember records emails attached to a job during this run, deduplicated by
// id and kept chronological. Emails from prior runs are not retained in the
// aggregate, so the tail scan sees only what this run has touched.
func (a *Accumulator) remember(job *domain.Job, emails ...*domain.Email) {
	known := a.emailsByJob[job.ID]
	seen := make(map[string]struct{}, len(known))
	for _, e := range known {
		seen[e.ID] = struct{}{}
	}
	for _, e := range emails {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		known = append(known, e)
		seen[e.ID] = struct{}{}
	}
	SortChronological(known)
	a.emailsByJob[job.ID] = known
}

// knownEmails returns the emails this run has attached to a job, oldest first.
func (a *Accumulator) knownEmails(job *domain.Job) []*domain.Email {
	return a.emailsByJob[job.ID]
}

// Jobs returns every job the run has touched, in insertion order.
func (a *Accumulator) Jobs() []*domain.Job {
	return a.jobs
}

// Matcher attaches classified emails to job aggregates. One instance serves
// many runs; per-run state lives in the Accumulator.
type Matcher struct {
	normalizer *normalize.Normalizer
	classifier out.EmailClassifier
	arbiter    out.JobArbiter
	jobRepo    out.JobRepository
	idGen      *snowflake.Generator
	opts       Options
	log        *logger.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(
	normalizer *normalize.Normalizer,
	classifier out.EmailClassifier,
	arbiter out.JobArbiter,
	jobRepo out.JobRepository,
	idGen *snowflake.Generator,
	opts Options,
) *Matcher {
	return &Matcher{
		normalizer: normalizer,
		classifier: classifier,
		arbiter:    arbiter,
		jobRepo:    jobRepo,
		idGen:      idGen,
		opts:       opts,
		log:        logger.Default().WithField("component", "matcher"),
	}
}

// =====================================================
// Pass A: threaded emails
// =====================================================

// MatchThread processes one Gmail thread as a single unit. The last email
// decides job-relatedness and carries the classification; the first email's
// subject rides along as disambiguation context. A thread maps to at most one
// job.
func (m *Matcher) MatchThread(ctx context.Context, acc *Accumulator, threadID string, emails []*domain.Email) (*Outcome, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	SortChronological(emails)
	first, last := emails[0], emails[len(emails)-1]

	body := last.Body
	if first.ID != last.ID {
		body = fmt.Sprintf("%s\n\n[thread context] first message subject: %s", last.Body, first.Subject)
	}
	result, err := m.classifier.Classify(ctx, last.Subject, body)
	if err != nil {
		return nil, apperr.TransientClassification("thread "+threadID, err)
	}
	if !result.IsJobRelated {
		if len(emails) > 1 {
			m.log.WithField("thread_id", threadID).
				Warn("thread dismissed by last email, %d earlier emails not surfaced", len(emails)-1)
		}
		return nil, nil
	}

	job, err := m.jobForThread(ctx, acc, threadID)
	if err != nil {
		return nil, err
	}
	if job != nil {
		for _, email := range emails {
			job.AddEmail(email)
		}
		acc.remember(job, emails...)
		m.refreshStatus(job, acc.knownEmails(job), result)
		return &Outcome{Job: job, Emails: emails, Result: result}, nil
	}

	job = m.newJob(result, first)
	for _, email := range emails[1:] {
		job.AddEmail(email)
	}
	acc.add(job)
	acc.remember(job, emails...)
	status, signals := ResolveLatestStatus(emails, result)
	job.SetStatus(m.idGen.MustGenerate(), status, last.ID, signals, last.ReceivedAt)
	return &Outcome{Job: job, Created: true, Emails: emails, Result: result}, nil
}

func (m *Matcher) jobForThread(ctx context.Context, acc *Accumulator, threadID string) (*domain.Job, error) {
	if job, ok := acc.byThread[threadID]; ok {
		return job, nil
	}
	job, err := m.jobRepo.GetByThreadID(ctx, threadID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	acc.add(job)
	return job, nil
}

// =====================================================
// Pass B: orphan emails
// =====================================================

// MatchOrphan classifies one unthreaded email and attaches it to a job through
// the tier cascade: thread id, company+title+recency, fuzzy company scoring,
// then pairwise arbitration. No tier matching means a new job.
func (m *Matcher) MatchOrphan(ctx context.Context, acc *Accumulator, email *domain.Email) (*Outcome, error) {
	result, err := m.classifier.Classify(ctx, email.Subject, email.Body)
	if err != nil {
		return nil, apperr.TransientClassification("email "+email.ID, err)
	}
	if !result.IsJobRelated {
		return nil, nil
	}

	normCompany := m.normalizer.Company(result.Company)
	if err := m.seedCompany(ctx, acc, normCompany); err != nil {
		return nil, err
	}

	// Tier a: a thread id populated after fetch still binds to its job.
	if email.ThreadID != "" {
		if job, ok := acc.byThread[email.ThreadID]; ok {
			return m.attach(acc, job, email, result), nil
		}
	}

	senderDomain := m.normalizer.CompanyDomain(email.FromAddress)
	group := acc.byCompany[normCompany]
	normPosition := normalize.NormalizeTitle(result.Position)

	if job := m.matchByTitleRecency(group, senderDomain, normPosition, email.ReceivedAt); job != nil {
		return m.attach(acc, job, email, result), nil
	}
	if job := m.matchFuzzy(group, result.Company, senderDomain, result.Position, email.ReceivedAt); job != nil {
		return m.attach(acc, job, email, result), nil
	}
	job, err := m.matchByArbitration(ctx, group, result)
	if err != nil {
		return nil, err
	}
	if job != nil {
		return m.attach(acc, job, email, result), nil
	}

	job = m.newJob(result, email)
	acc.add(job)
	acc.remember(job, email)
	status, signals := ResolveLatestStatus([]*domain.Email{email}, result)
	job.SetStatus(m.idGen.MustGenerate(), status, email.ID, signals, email.ReceivedAt)
	return &Outcome{Job: job, Created: true, Emails: []*domain.Email{email}, Result: result}, nil
}

// seedCompany loads persisted jobs for a company group once per run, so new
// batches can match against jobs built in prior runs.
func (m *Matcher) seedCompany(ctx context.Context, acc *Accumulator, normCompany string) error {
	if _, done := acc.seeded[normCompany]; done {
		return nil
	}
	acc.seeded[normCompany] = struct{}{}
	jobs, err := m.jobRepo.ListByNormalizedCompany(ctx, normCompany)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.ThreadID != "" {
			if _, exists := acc.byThread[job.ThreadID]; exists {
				continue
			}
		}
		acc.add(job)
	}
	return nil
}

// matchByTitleRecency finds a job with the same sender domain and identical
// normalized position whose last contact falls inside the recency window.
// Most recent contact wins.
func (m *Matcher) matchByTitleRecency(group []*domain.Job, senderDomain, normPosition string, receivedAt time.Time) *domain.Job {
	if senderDomain == "" || normPosition == "" {
		return nil
	}
	var best *domain.Job
	for _, job := range group {
		if job.CompanyDomain != senderDomain || job.NormalizedPosition != normPosition {
			continue
		}
		if !m.withinRecency(job.LastContactAt, receivedAt) {
			continue
		}
		if best == nil || job.LastContactAt.After(best.LastContactAt) {
			best = job
		}
	}
	return best
}

type scoredJob struct {
	job   *domain.Job
	score float64
}

// matchFuzzy scores candidates on company affinity, keeps the top few by
// score then recency, and accepts the first whose title clears the similarity
// threshold.
func (m *Matcher) matchFuzzy(group []*domain.Job, rawCompany, senderDomain, position string, receivedAt time.Time) *domain.Job {
	var scored []scoredJob
	for _, job := range group {
		if !m.withinRecency(job.LastContactAt, receivedAt) {
			continue
		}
		score := m.companyScore(job, rawCompany, senderDomain)
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredJob{job: job, score: score})
	}
	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].job.LastContactAt.After(scored[b].job.LastContactAt)
	})
	if len(scored) > m.opts.FuzzyCandidateLimit {
		scored = scored[:m.opts.FuzzyCandidateLimit]
	}
	for _, candidate := range scored {
		if normalize.TitleSimilarity(candidate.job.Position, position) > m.opts.TitleSimilarityThreshold {
			return candidate.job
		}
	}
	return nil
}

// companyScore ladders raw company names. Candidates share a normalized
// company already, so the comparison must be on raw text or every candidate
// would score the exact tier.
func (m *Matcher) companyScore(job *domain.Job, rawCompany, senderDomain string) float64 {
	jobCompany := strings.ToLower(strings.TrimSpace(job.Company))
	newCompany := strings.ToLower(strings.TrimSpace(rawCompany))
	switch {
	case jobCompany != "" && jobCompany == newCompany:
		return m.opts.FuzzyExactScore
	case containsEither(jobCompany, newCompany):
		return m.opts.FuzzySubstringScore
	case senderDomain != "" && job.CompanyDomain == senderDomain:
		return m.opts.FuzzyDomainScore
	}
	return 0
}

// matchByArbitration asks the external arbiter pairwise, in group insertion
// order. An arbiter failure counts as no match for that pair, not an abort.
func (m *Matcher) matchByArbitration(ctx context.Context, group []*domain.Job, result *domain.ClassificationResult) (*domain.Job, error) {
	candidate := out.JobSignature{Company: result.Company, Position: result.Position, Status: result.Status}
	for _, job := range group {
		same, err := m.arbiter.MatchJobs(ctx, candidate, out.JobSignature{
			Company:  job.Company,
			Position: job.Position,
			Status:   string(job.Status),
		})
		if err != nil {
			m.log.WithError(err).WithField("job_id", job.ID.String()).
				Warn("job arbitration failed, treating as no match")
			continue
		}
		if same {
			return job, nil
		}
	}
	return nil, nil
}

// attach adds one orphan to an existing job. When the email extends the
// conversation forward in time, status is re-resolved over the tail of every
// email this run has seen for the job, not the new email alone, so keyword
// evidence from recent siblings keeps its layered override.
func (m *Matcher) attach(acc *Accumulator, job *domain.Job, email *domain.Email, result *domain.ClassificationResult) *Outcome {
	isLatest := !email.ReceivedAt.Before(job.LastContactAt)
	job.AddEmail(email)
	acc.remember(job, email)
	if isLatest {
		status, signals := ResolveLatestStatus(acc.knownEmails(job), result)
		job.SetStatus(m.idGen.MustGenerate(), status, email.ID, signals, email.ReceivedAt)
	}
	return &Outcome{Job: job, Emails: []*domain.Email{email}, Result: result}
}

// refreshStatus re-resolves status after new thread emails land, only when
// they extend the conversation forward in time.
func (m *Matcher) refreshStatus(job *domain.Job, emails []*domain.Email, result *domain.ClassificationResult) {
	last := emails[len(emails)-1]
	if last.ReceivedAt.Before(job.LastContactAt) {
		return
	}
	status, signals := ResolveLatestStatus(emails, result)
	job.SetStatus(m.idGen.MustGenerate(), status, last.ID, signals, last.ReceivedAt)
}

func (m *Matcher) newJob(result *domain.ClassificationResult, email *domain.Email) *domain.Job {
	return domain.NewJob(
		result.Company,
		m.normalizer.CompanyDomain(email.FromAddress),
		m.normalizer.Company(result.Company),
		result.Position,
		normalize.NormalizeTitle(result.Position),
		domain.StatusApplied,
		email,
	)
}

func (m *Matcher) withinRecency(lastContact, receivedAt time.Time) bool {
	if lastContact.After(receivedAt) {
		return true
	}
	return receivedAt.Sub(lastContact) <= m.opts.RecencyWindow
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
