package news

import (
	"regexp"
	"strings"
)

// Verdict is a rule's opinion about an entry.
type Verdict int

const (
	Abstain Verdict = iota
	Accept
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	}
	return "abstain"
}

// Rule is one step of the relevance decision.
type Rule interface {
	Name() string
	Evaluate(c Candidate) Verdict
}

// Candidate is the part of an Entry the classifier looks at.
type Candidate struct {
	Text    string // lowercased title + " " + summary
	Host    string
	Trusted bool
}

// CandidateOf extracts the classifier inputs from e.
func CandidateOf(e Entry) Candidate {
	return Candidate{
		Text:    strings.ToLower(collapseSpace(e.Title + " " + e.Summary)),
		Host:    Host(e.CanonicalURL),
		Trusted: e.Origin.Trusted,
	}
}

// Policy is the data that parameterizes the classifier.
type Policy struct {
	CanonicalNames   []string
	GenericKeywords  []string
	NamedEntityHints []string
	NegativeKeywords []string
	TrustedDomains   []string
}

// Classifier runs rules in order; the first non-abstaining verdict wins and
// an entry no rule accepts is rejected.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier from explicit rules.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// NewPolicyClassifier builds the standard rule chain:
// negative veto, trust bypass, canonical name, generic keyword, named-entity hints.
func NewPolicyClassifier(p Policy) *Classifier {
	return NewClassifier(
		NewPhraseRule("negative-veto", Reject, p.NegativeKeywords),
		NewTrustRule(p.TrustedDomains),
		NewPhraseRule("canonical-name", Accept, p.CanonicalNames),
		NewPhraseRule("generic-keyword", Accept, p.GenericKeywords),
		NewPhraseRule("named-entity", Accept, p.NamedEntityHints),
	)
}

// Decide returns the final verdict and the name of the rule that produced it.
func (c *Classifier) Decide(e Entry) (Verdict, string) {
	cand := CandidateOf(e)
	for _, r := range c.rules {
		if v := r.Evaluate(cand); v != Abstain {
			return v, r.Name()
		}
	}
	return Reject, "default"
}

// Allow reports whether e is about the target team.
func (c *Classifier) Allow(e Entry) bool {
	v, _ := c.Decide(e)
	return v == Accept
}

// PhraseRule returns its verdict when the text contains any of its phrases.
type PhraseRule struct {
	name    string
	verdict Verdict
	m       matcher
}

func NewPhraseRule(name string, verdict Verdict, phrases []string) *PhraseRule {
	return &PhraseRule{name: name, verdict: verdict, m: newMatcher(phrases)}
}

func (r *PhraseRule) Name() string { return r.name }

func (r *PhraseRule) Evaluate(c Candidate) Verdict {
	if r.m.match(c.Text) {
		return r.verdict
	}
	return Abstain
}

// TrustRule accepts entries from trusted sources or trusted hosts.
// It never rejects.
type TrustRule struct {
	domains []string
}

func NewTrustRule(domains []string) *TrustRule {
	ds := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			ds = append(ds, d)
		}
	}
	return &TrustRule{domains: ds}
}

func (r *TrustRule) Name() string { return "trust" }

func (r *TrustRule) Evaluate(c Candidate) Verdict {
	if c.Trusted {
		return Accept
	}
	if c.Host == "" {
		return Abstain
	}
	for _, d := range r.domains {
		if c.Host == d || strings.HasSuffix(c.Host, "."+d) {
			return Accept
		}
	}
	return Abstain
}

// matcher checks lowercased text against a phrase set. Phrases with a space or
// longer than three characters match as substrings; short single tokens need
// word boundaries so "mlb" does not fire inside another word.
type matcher struct {
	substrings []string
	words      []*regexp.Regexp
}

func newMatcher(phrases []string) matcher {
	var m matcher
	for _, p := range phrases {
		p = strings.ToLower(collapseSpace(p))
		if p == "" {
			continue
		}
		if strings.Contains(p, " ") || len([]rune(p)) > 3 {
			m.substrings = append(m.substrings, p)
			continue
		}
		m.words = append(m.words, regexp.MustCompile(`\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return m
}

func (m matcher) match(text string) bool {
	for _, s := range m.substrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	for _, re := range m.words {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
