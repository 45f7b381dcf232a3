package news

import (
	"errors"
	"time"
)

// Kind is the wire format a source publishes in.
type Kind string

const (
	KindRSS      Kind = "rss"
	KindAtom     Kind = "atom"
	KindHTMLList Kind = "html_list"
)

// Valid reports whether k is one of the known source kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRSS, KindAtom, KindHTMLList:
		return true
	}
	return false
}

// HTMLList holds the CSS selectors used to scrape a list page that has no feed.
type HTMLList struct {
	Item     string `yaml:"item"`
	Title    string `yaml:"title"`
	Link     string `yaml:"link"`
	Summary  string `yaml:"summary"`
	Time     string `yaml:"time"`
	Next     string `yaml:"next"`
	MaxPages int    `yaml:"max_pages"`
}

// Source is one configured feed. Immutable for the duration of a run.
type Source struct {
	ID      string    `yaml:"id"`
	Name    string    `yaml:"name"`
	URL     string    `yaml:"url"`
	Kind    Kind      `yaml:"kind"`
	Trusted bool      `yaml:"trusted"`
	HTML    *HTMLList `yaml:"html,omitempty"`
}

// RawAuthor is the optional nested author/source object of a feed item.
type RawAuthor struct {
	Name  string
	Email string
}

// RawEntry is whatever a fetcher could pull out of one feed item.
// Nothing in it is guaranteed to be present.
type RawEntry struct {
	Title       string
	Link        string
	GUID        string
	Summary     string
	Description string
	Content     string

	Published       string
	PublishedParsed *time.Time
	Updated         string
	UpdatedParsed   *time.Time

	Author *RawAuthor
}

// Entry is a normalized feed item.
type Entry struct {
	Title         string
	CanonicalURL  string
	Summary       string
	PublishedAt   time.Time
	Origin        Source
	DisplaySource string
	Author        string
}

// Snapshot is the bounded, newest-first result of one collection run.
type Snapshot struct {
	GeneratedAt time.Time
	Items       []Entry
	Sources     []string
}

// ErrRejected marks a raw entry that could not become an Entry.
var ErrRejected = errors.New("entry rejected")
