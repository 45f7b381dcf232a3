package news

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// DedupePolicy decides which copy of a repeated story survives.
type DedupePolicy string

const (
	// FirstSeen keeps the copy from the earliest source in configured order.
	FirstSeen DedupePolicy = "first_seen"
	// MostRecent keeps the copy with the newest PublishedAt, in the first copy's slot.
	MostRecent DedupePolicy = "most_recent"
)

// ParseDedupePolicy maps a config value to a policy; empty means FirstSeen.
func ParseDedupePolicy(s string) (DedupePolicy, error) {
	switch p := DedupePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FirstSeen, nil
	case FirstSeen, MostRecent:
		return p, nil
	default:
		return "", fmt.Errorf("unknown dedupe policy %q", s)
	}
}

// Fingerprint identifies a story by its normalized title and canonical URL.
func Fingerprint(e Entry) string {
	h := sha1.New()
	h.Write([]byte(strings.ToLower(collapseSpace(e.Title)) + "|" + e.CanonicalURL))
	return hex.EncodeToString(h.Sum(nil))
}

// Deduper holds the seen set for a single run. Not safe for concurrent use.
type Deduper struct {
	policy DedupePolicy
	seen   map[string]int
	kept   []Entry
}

func NewDeduper(policy DedupePolicy) *Deduper {
	if policy == "" {
		policy = FirstSeen
	}
	return &Deduper{policy: policy, seen: make(map[string]int)}
}

// Add records e and reports whether it was a new story.
func (d *Deduper) Add(e Entry) bool {
	fp := Fingerprint(e)
	if i, dup := d.seen[fp]; dup {
		if d.policy == MostRecent && e.PublishedAt.After(d.kept[i].PublishedAt) {
			d.kept[i] = e
		}
		return false
	}
	d.seen[fp] = len(d.kept)
	d.kept = append(d.kept, e)
	return true
}

// Entries returns the retained entries in first-seen order.
func (d *Deduper) Entries() []Entry {
	out := make([]Entry, len(d.kept))
	copy(out, d.kept)
	return out
}

// Len is the number of distinct stories seen so far.
func (d *Deduper) Len() int {
	return len(d.kept)
}
