// Package normalize provides the pure string canonicalization used by job
// matching: company names, position titles, and sender domains.
package normalize

import (
	"net/mail"
	"regexp"
	"strings"
)

// UnknownCompany is the sentinel for a missing or empty company name. It is
// stable across runs so unattributed emails group together.
const UnknownCompany = "unknown company"

// legalSuffixRe matches one trailing legal-entity suffix, optionally preceded
// by a comma, with an optional trailing period.
var legalSuffixRe = regexp.MustCompile(`(?:\s+|\s*,\s*)(?:inc|incorporated|llc|ltd|limited|corp|corporation|co|company)\.?$`)

var defaultConsumerDomains = []string{
	"gmail.com", "yahoo.com", "outlook.com", "hotmail.com",
}

var defaultHiringPlatformDomains = []string{
	"greenhouse.io", "lever.co", "workday.com", "taleo.net", "breezy.hr",
	"ashbyhq.com", "jobvite.com", "icims.com", "smartrecruiters.com",
	"myworkday.com", "ultipro.com", "successfactors.com", "bamboohr.com",
	"applytojob.com", "recruiterbox.com",
}

var defaultSubdomainMarkers = []string{
	"mail", "email", "careers", "jobs", "recruiting", "hire",
}

// Normalizer canonicalizes company and title strings. The domain sets are
// injected so deployments can extend them without a rebuild.
type Normalizer struct {
	consumerDomains map[string]struct{}
	platformDomains map[string]struct{}
	markers         map[string]struct{}
}

// NewNormalizer builds a Normalizer. Nil slices fall back to the built-in sets.
func NewNormalizer(consumerDomains, platformDomains, subdomainMarkers []string) *Normalizer {
	if consumerDomains == nil {
		consumerDomains = defaultConsumerDomains
	}
	if platformDomains == nil {
		platformDomains = defaultHiringPlatformDomains
	}
	if subdomainMarkers == nil {
		subdomainMarkers = defaultSubdomainMarkers
	}
	return &Normalizer{
		consumerDomains: toSet(consumerDomains),
		platformDomains: toSet(platformDomains),
		markers:         toSet(subdomainMarkers),
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

// Company canonicalizes a raw company name: lowercase, collapse whitespace,
// strip trailing legal suffixes to a fixpoint. Stripping must reach a fixpoint
// so re-normalizing an already-normalized name is a no-op; names like
// "Acme Corp Co" carry stacked suffixes. Empty input yields UnknownCompany.
func (n *Normalizer) Company(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return UnknownCompany
	}
	for {
		stripped := legalSuffixRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return UnknownCompany
	}
	return s
}

// CompanyDomain extracts the employer domain from an RFC 5322 from-address.
// Consumer mail providers yield "", and a leading ATS mail-routing label on a
// deeper subdomain is stripped.
func (n *Normalizer) CompanyDomain(fromAddress string) string {
	addr := fromAddress
	if parsed, err := mail.ParseAddress(fromAddress); err == nil {
		addr = parsed.Address
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	domain := strings.ToLower(strings.TrimRight(addr[at+1:], ">. "))
	if domain == "" {
		return ""
	}
	if _, consumer := n.consumerDomains[domain]; consumer {
		return ""
	}
	labels := strings.Split(domain, ".")
	if len(labels) > 2 {
		if _, marker := n.markers[labels[0]]; marker {
			return strings.Join(labels[1:], ".")
		}
	}
	return domain
}

// IsHiringPlatform reports whether the domain belongs to a known ATS. Mail
// from these domains carries many employers, so the extracted company name is
// trusted over the sender.
func (n *Normalizer) IsHiringPlatform(domain string) bool {
	_, ok := n.platformDomains[strings.ToLower(domain)]
	return ok
}
