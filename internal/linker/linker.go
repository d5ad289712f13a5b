// Package linker resolves a source record's contact information to a
// company or deal in the owner's directory. Matching is a pure function of
// the record and the directory so it can be tested in isolation.
package linker

import (
	"strings"
)

// Link provenance reasons, most trusted first.
const (
	ReasonDirectLink  = "direct_link"
	ReasonInboxLink   = "inbox_link"
	ReasonDomainMatch = "domain_match"
)

// Target identifies a linkable entity.
type Target struct {
	Type string `json:"type"` // "company" or "deal"
	ID   string `json:"id"`
}

// Entity is one directory entry the linker can match against.
type Entity struct {
	ID     string
	Name   string
	Domain string // normalized, e.g. "acme.com"
}

// Directory holds the owner's linkable registries.
type Directory struct {
	Companies []Entity
	Deals     []Entity
}

// Record carries the fields of a source record the linker inspects.
type Record struct {
	ContactEmails []string
	// DirectLink is an explicit link stored on the record itself
	// (e.g. the user attached a company in the source app).
	DirectLink *Target
	// InboxLink is a link inherited from the containing inbox/thread,
	// weaker provenance than a direct link.
	InboxLink *Target
}

// Link is a confidence-scored association produced by Match.
type Link struct {
	Target     Target
	Reason     string
	Confidence float64
}

// genericDomains are consumer mail providers that never identify a company.
var genericDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"live.com":       {},
	"icloud.com":     {},
	"me.com":         {},
	"aol.com":        {},
	"proton.me":      {},
	"protonmail.com": {},
}

// Match finds the best link for a record. Explicit links on the record win
// outright; otherwise the first exact domain match against the directory is
// returned (companies before deals). Returns false when nothing matches.
func Match(rec Record, dir Directory) (Link, bool) {
	if rec.DirectLink != nil {
		return Link{Target: *rec.DirectLink, Reason: ReasonDirectLink, Confidence: 1.0}, true
	}
	if rec.InboxLink != nil {
		return Link{Target: *rec.InboxLink, Reason: ReasonInboxLink, Confidence: 0.95}, true
	}

	for _, email := range rec.ContactEmails {
		domain, ok := EmailDomain(email)
		if !ok {
			continue
		}
		if _, generic := genericDomains[domain]; generic {
			continue
		}
		for _, c := range dir.Companies {
			if c.Domain == domain {
				return Link{
					Target:     Target{Type: "company", ID: c.ID},
					Reason:     ReasonDomainMatch,
					Confidence: 0.9,
				}, true
			}
		}
		for _, d := range dir.Deals {
			if d.Domain == domain {
				return Link{
					Target:     Target{Type: "deal", ID: d.ID},
					Reason:     ReasonDomainMatch,
					Confidence: 0.85,
				}, true
			}
		}
	}

	return Link{}, false
}

// EmailDomain extracts and normalizes the domain from an email address.
func EmailDomain(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", false
	}
	return NormalizeDomain(email[at+1:]), true
}

// NormalizeDomain strips scheme and www prefix and lowercases the rest, so
// "https://www.Acme.com/about" and "acme.com" compare equal.
func NormalizeDomain(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, ".")
}

// IsGenericDomain reports whether the domain belongs to a consumer mail
// provider and therefore cannot identify a company.
func IsGenericDomain(domain string) bool {
	_, ok := genericDomains[NormalizeDomain(domain)]
	return ok
}
