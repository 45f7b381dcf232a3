package news

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var timeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// Normalizer turns raw feed items into Entries.
// CollectedAt stands in for items without a usable date, so the same input
// always yields the same Entry within one run.
type Normalizer struct {
	CollectedAt time.Time
	Tracking    TrackingParams
}

// NewNormalizer creates a Normalizer pinned to collectedAt.
func NewNormalizer(collectedAt time.Time, tp TrackingParams) *Normalizer {
	return &Normalizer{CollectedAt: collectedAt, Tracking: tp}
}

// Normalize builds an Entry from raw. Items without a title or a usable link
// return an error wrapping ErrRejected.
func (n *Normalizer) Normalize(raw RawEntry, src Source) (Entry, error) {
	title := collapseSpace(raw.Title)
	if title == "" {
		return Entry{}, fmt.Errorf("%w: empty title", ErrRejected)
	}

	link := strings.TrimSpace(raw.Link)
	if !resolvable(link) {
		link = ""
		if isAbsoluteURL(raw.GUID) {
			link = strings.TrimSpace(raw.GUID)
		}
	}
	if link == "" {
		return Entry{}, fmt.Errorf("%w: no link for %q", ErrRejected, title)
	}
	canonical := CanonicalURL(link, n.Tracking)

	e := Entry{
		Title:         title,
		CanonicalURL:  canonical,
		Summary:       firstNonEmpty(raw.Summary, raw.Description, raw.Content),
		PublishedAt:   n.timestamp(raw),
		Origin:        src,
		DisplaySource: displaySource(src, canonical),
	}
	if raw.Author != nil {
		e.Author = collapseSpace(raw.Author.Name)
	}
	return e, nil
}

func (n *Normalizer) timestamp(raw RawEntry) time.Time {
	if raw.PublishedParsed != nil && !raw.PublishedParsed.IsZero() {
		return raw.PublishedParsed.UTC()
	}
	if t, ok := parseTime(raw.Published); ok {
		return t
	}
	if raw.UpdatedParsed != nil && !raw.UpdatedParsed.IsZero() {
		return raw.UpdatedParsed.UTC()
	}
	if t, ok := parseTime(raw.Updated); ok {
		return t
	}
	return n.CollectedAt.UTC()
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	t, err := dateparse.ParseStrict(s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func displaySource(src Source, canonical string) string {
	if src.Trusted {
		return src.Name
	}
	if h := Host(canonical); h != "" {
		return h
	}
	return src.Name
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
