package rss

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/teamnews/internal/news"
)

// FeedsConfig is the YAML feeds file: the team, its sources and the
// relevance policy.
//
//	team: Arizona Cardinals
//	sources:
//	  - name: azcardinals.com
//	    url: https://www.azcardinals.com/rss
//	    trusted: true
type FeedsConfig struct {
	Team    string        `yaml:"team"`
	Sources []news.Source `yaml:"sources"`
	Policy  Policy        `yaml:"policy"`
	Links   []Link        `yaml:"links"`
}

// Policy is the relevance and cleanup policy for one team.
type Policy struct {
	MaxItems               int      `yaml:"max_items"`
	CanonicalNames         []string `yaml:"canonical_names"`
	GenericKeywords        []string `yaml:"generic_keywords"`
	NamedEntityHints       []string `yaml:"named_entity_hints"`
	NegativeKeywords       []string `yaml:"negative_keywords"`
	TrustedDomains         []string `yaml:"trusted_domains"`
	TrackingParamPrefixes  []string `yaml:"tracking_param_prefixes"`
	TrackingParamBlocklist []string `yaml:"tracking_param_blocklist"`
	DedupePolicy           string   `yaml:"dedupe_policy"`
}

// Link is a static quick link carried into the snapshot file.
type Link struct {
	Label string `yaml:"label" json:"label"`
	URL   string `yaml:"url" json:"url"`
}

// ErrInvalidFeeds wraps every validation failure of a feeds file.
var ErrInvalidFeeds = errors.New("invalid feeds config")

// LoadFeeds reads and validates the feeds file at path. Environment
// variables in the file are expanded first.
func LoadFeeds(path string) (*FeedsConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}
	return ParseFeeds(raw)
}

// ParseFeeds decodes and validates a feeds file.
func ParseFeeds(raw []byte) (*FeedsConfig, error) {
	expanded := expandEnv(string(raw))

	var cfg FeedsConfig
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse feeds yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *FeedsConfig) applyDefaults() {
	for i := range c.Sources {
		s := &c.Sources[i]
		s.Name = strings.TrimSpace(s.Name)
		s.URL = strings.TrimSpace(s.URL)
		if s.Kind == "" {
			s.Kind = news.KindRSS
		}
		s.Kind = news.Kind(strings.ToLower(string(s.Kind)))
		if s.ID == "" {
			s.ID = slug(s.Name)
		}
	}
	if c.Policy.TrackingParamPrefixes == nil && c.Policy.TrackingParamBlocklist == nil {
		c.Policy.TrackingParamPrefixes = news.DefaultTrackingParams.Prefixes
		c.Policy.TrackingParamBlocklist = news.DefaultTrackingParams.Blocklist
	}
}

// Validate reports configuration mistakes; these are the only errors that
// stop a run.
func (c *FeedsConfig) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources", ErrInvalidFeeds)
	}
	ids := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("%w: source %d has no name", ErrInvalidFeeds, i)
		}
		if s.URL == "" {
			return fmt.Errorf("%w: source %q has no url", ErrInvalidFeeds, s.Name)
		}
		if !s.Kind.Valid() {
			return fmt.Errorf("%w: source %q has unknown kind %q", ErrInvalidFeeds, s.Name, s.Kind)
		}
		if s.Kind == news.KindHTMLList && (s.HTML == nil || s.HTML.Item == "") {
			return fmt.Errorf("%w: html_list source %q needs html.item selector", ErrInvalidFeeds, s.Name)
		}
		if _, dup := ids[s.ID]; dup {
			return fmt.Errorf("%w: duplicate source id %q", ErrInvalidFeeds, s.ID)
		}
		ids[s.ID] = struct{}{}
	}
	if c.Policy.MaxItems < 0 {
		return fmt.Errorf("%w: max_items must not be negative", ErrInvalidFeeds)
	}
	if len(c.Policy.CanonicalNames) == 0 && len(c.Policy.GenericKeywords) == 0 {
		return fmt.Errorf("%w: policy needs canonical_names or generic_keywords", ErrInvalidFeeds)
	}
	if _, err := news.ParseDedupePolicy(c.Policy.DedupePolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeeds, err)
	}
	return nil
}

// Classifier builds the relevance classifier for this policy.
func (p Policy) Classifier() *news.Classifier {
	return news.NewPolicyClassifier(news.Policy{
		CanonicalNames:   p.CanonicalNames,
		GenericKeywords:  p.GenericKeywords,
		NamedEntityHints: p.NamedEntityHints,
		NegativeKeywords: p.NegativeKeywords,
		TrustedDomains:   p.TrustedDomains,
	})
}

// Tracking returns the tracking-parameter rule for link cleanup.
func (p Policy) Tracking() news.TrackingParams {
	return news.TrackingParams{
		Prefixes:  p.TrackingParamPrefixes,
		Blocklist: p.TrackingParamBlocklist,
	}
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} references only, so a bare "$" in a URL or
// keyword (for example "?$format=rss") is kept as written.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
