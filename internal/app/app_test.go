package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deusflow/teamnews/internal/config"
	"github.com/deusflow/teamnews/internal/fetch"
	"github.com/deusflow/teamnews/internal/metrics"
	"github.com/deusflow/teamnews/internal/news"
	"github.com/deusflow/teamnews/internal/storage"
)

var (
	collectedAt = time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	quiet       = slog.New(slog.NewTextHandler(io.Discard, nil))
	policy      = news.Policy{
		CanonicalNames:   []string{"arizona cardinals"},
		GenericKeywords:  []string{"cardinals"},
		NamedEntityHints: []string{"kyler murray"},
		NegativeKeywords: []string{"st. louis cardinals", "mlb"},
		TrustedDomains:   []string{"azcardinals.com"},
	}
	siteA    = news.Source{ID: "a", Name: "Site A", URL: "https://site-a.com/feed", Kind: news.KindRSS}
	siteB    = news.Source{ID: "b", Name: "Site B", URL: "https://site-b.com/feed", Kind: news.KindRSS}
	official = news.Source{ID: "team", Name: "azcardinals.com", URL: "https://www.azcardinals.com/rss", Kind: news.KindRSS, Trusted: true}
)

type staticCollector []fetch.Result

func (c staticCollector) Collect(context.Context, []news.Source) []fetch.Result {
	return c
}

func at(hour int) *time.Time {
	t := time.Date(2025, 9, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func newTestPipeline(t *testing.T, c Collector, maxItems int) (*Pipeline, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	p, err := NewPipeline(c, Settings{
		Classifier: news.NewPolicyClassifier(policy),
		Tracking:   news.DefaultTrackingParams,
		MaxItems:   maxItems,
		Now:        func() time.Time { return collectedAt },
		Logger:     quiet,
		Metrics:    m,
	})
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	return p, m
}

func TestPipelineRun(t *testing.T) {
	results := staticCollector{
		{Source: siteA, Entries: []news.RawEntry{
			{Title: "Cardinals sign new kicker", Link: "https://site-a.com/story?utm_source=x", PublishedParsed: at(10)},
			{Title: "Weather report", Link: "https://site-a.com/weather", PublishedParsed: at(11)},
			{Title: "", Link: "https://site-a.com/empty"},
		}},
		{Source: siteB, Entries: []news.RawEntry{
			{Title: "Cardinals  sign new kicker", Link: "https://site-a.com/story", PublishedParsed: at(12)},
			{Title: "Kyler Murray limited at practice", Link: "https://site-b.com/murray", PublishedParsed: at(9)},
		}},
		{Source: official, Err: errors.New("timeout")},
		{Source: official, Entries: []news.RawEntry{
			{Title: "St. Louis Cardinals clinch", Link: "https://www.azcardinals.com/mlb", PublishedParsed: at(13)},
			{Title: "Practice notes", Link: "https://www.azcardinals.com/notes#top", PublishedParsed: at(8)},
		}},
	}
	p, m := newTestPipeline(t, results, 50)

	snap := p.Run(context.Background(), nil)

	want := []string{
		"https://site-a.com/story",
		"https://site-b.com/murray",
		"https://azcardinals.com/notes",
	}
	if len(snap.Items) != len(want) {
		t.Fatalf("expected %d items, got %d: %+v", len(want), len(snap.Items), snap.Items)
	}
	for i, link := range want {
		if snap.Items[i].CanonicalURL != link {
			t.Errorf("item %d = %s, want %s", i, snap.Items[i].CanonicalURL, link)
		}
	}
	if snap.Items[0].Origin.ID != "a" {
		t.Errorf("first-seen copy should win, got origin %q", snap.Items[0].Origin.ID)
	}
	if !snap.GeneratedAt.Equal(collectedAt) {
		t.Errorf("GeneratedAt = %v", snap.GeneratedAt)
	}
	wantSources := []string{"azcardinals.com", "site-a.com", "site-b.com"}
	if fmt.Sprint(snap.Sources) != fmt.Sprint(wantSources) {
		t.Errorf("Sources = %v, want %v", snap.Sources, wantSources)
	}

	stats := m.GetStats()
	if stats["entries_malformed"] != int64(1) || stats["entries_rejected"] != int64(2) || stats["duplicates_filtered"] != int64(1) {
		t.Errorf("unexpected counters: %v", stats)
	}
}

func TestPipelineRunIsRepeatable(t *testing.T) {
	results := staticCollector{
		{Source: siteA, Entries: []news.RawEntry{
			{Title: "Cardinals win", Link: "https://site-a.com/win", PublishedParsed: at(10)},
		}},
	}
	p, _ := newTestPipeline(t, results, 50)

	first := p.Run(context.Background(), nil)
	second := p.Run(context.Background(), nil)
	if len(first.Items) != 1 || len(second.Items) != 1 {
		t.Fatalf("seen set leaked between runs: %d then %d items", len(first.Items), len(second.Items))
	}
}

func TestPipelineTruncates(t *testing.T) {
	var entries []news.RawEntry
	for i := 0; i < 12; i++ {
		entries = append(entries, news.RawEntry{
			Title:           fmt.Sprintf("Cardinals note %d", i),
			Link:            fmt.Sprintf("https://site-a.com/%d", i),
			PublishedParsed: at(i),
		})
	}
	p, _ := newTestPipeline(t, staticCollector{{Source: siteA, Entries: entries}}, 5)

	snap := p.Run(context.Background(), nil)
	if len(snap.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(snap.Items))
	}
	if snap.Items[0].Title != "Cardinals note 11" || snap.Items[4].Title != "Cardinals note 7" {
		t.Errorf("expected the newest five, got %q..%q", snap.Items[0].Title, snap.Items[4].Title)
	}
}

func TestPipelineSurvivesFailingSource(t *testing.T) {
	ok := fetch.FetcherFunc(func(ctx context.Context, src news.Source) ([]news.RawEntry, error) {
		if src.ID == "b" {
			return nil, errors.New("connection refused")
		}
		return []news.RawEntry{{Title: "Cardinals win", Link: src.URL + "/win", PublishedParsed: at(1)}}, nil
	})
	m := metrics.New()
	collector := fetch.NewCollector(
		map[news.Kind]fetch.Fetcher{news.KindRSS: ok},
		fetch.WithLogger(quiet),
		fetch.WithMetrics(m),
	)
	p, _ := newTestPipeline(t, collector, 50)

	snap := p.Run(context.Background(), []news.Source{siteA, siteB, official})
	if len(snap.Items) != 2 {
		t.Fatalf("expected 2 items from healthy sources, got %d", len(snap.Items))
	}
	if m.GetStats()["sources_failed"] != int64(1) {
		t.Errorf("sources_failed = %v", m.GetStats()["sources_failed"])
	}
}

func TestNewPipelineValidation(t *testing.T) {
	c := news.NewPolicyClassifier(policy)
	if _, err := NewPipeline(nil, Settings{Classifier: c, MaxItems: 1}); err == nil {
		t.Errorf("expected error without collector")
	}
	if _, err := NewPipeline(staticCollector{}, Settings{MaxItems: 1}); err == nil {
		t.Errorf("expected error without classifier")
	}
	if _, err := NewPipeline(staticCollector{}, Settings{Classifier: c}); err == nil {
		t.Errorf("expected error for zero max items")
	}
}

const rssDoc = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Feed</title>
<item><title>Arizona Cardinals beat Rams</title><link>%[1]s/recap?utm_medium=rss&amp;id=7</link><pubDate>Mon, 01 Sep 2025 20:00:00 +0000</pubDate></item>
<item><title>MLB standings</title><link>%[1]s/mlb</link><pubDate>Mon, 01 Sep 2025 21:00:00 +0000</pubDate></item>
<item><title>Cardinals injury report</title><link>%[1]s/injuries</link><pubDate>Sun, 31 Aug 2025 18:00:00 +0000</pubDate></item>
</channel></rss>`

func TestRunWritesSnapshot(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed":
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprintf(w, rssDoc, srv.URL)
		default:
			http.Error(w, "down", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	feedsPath := filepath.Join(dir, "feeds.yaml")
	feeds := fmt.Sprintf(`
team: Arizona Cardinals
sources:
  - name: Good feed
    url: %[1]s/feed
  - name: Broken feed
    url: %[1]s/broken
policy:
  max_items: 10
  generic_keywords: [cardinals]
  negative_keywords: [mlb]
links:
  - label: Schedule
    url: https://www.azcardinals.com/schedule/
`, srv.URL)
	if err := os.WriteFile(feedsPath, []byte(feeds), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg := &config.Config{
		FeedsConfigPath:  feedsPath,
		OutputPath:       filepath.Join(dir, "out", "items.json"),
		FetchConcurrency: 2,
		RequestTimeout:   5 * time.Second,
	}
	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	doc, err := storage.NewSnapshotFile(cfg.OutputPath).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if doc.Team != "Arizona Cardinals" || len(doc.Links) != 1 {
		t.Errorf("unexpected header: %+v", doc)
	}
	if len(doc.Items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(doc.Items), doc.Items)
	}
	if want := srv.URL + "/recap?id=7"; doc.Items[0].Link != want {
		t.Errorf("Link = %s, want %s", doc.Items[0].Link, want)
	}
	if doc.Items[1].Title != "Cardinals injury report" {
		t.Errorf("unexpected second item: %+v", doc.Items[1])
	}
}

func TestRunFailsOnBadFeedsFile(t *testing.T) {
	cfg := &config.Config{
		FeedsConfigPath:  filepath.Join(t.TempDir(), "missing.yaml"),
		OutputPath:       filepath.Join(t.TempDir(), "items.json"),
		FetchConcurrency: 1,
	}
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for missing feeds file")
	}
}

func TestRunKeepsSnapshotWhenCancelled(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, rssDoc, srv.URL)
	}))
	defer srv.Close()

	dir := t.TempDir()
	feedsPath := filepath.Join(dir, "feeds.yaml")
	feeds := fmt.Sprintf("sources:\n  - name: Feed\n    url: %s/feed\npolicy:\n  generic_keywords: [cardinals]\n", srv.URL)
	if err := os.WriteFile(feedsPath, []byte(feeds), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	cfg := &config.Config{
		FeedsConfigPath:  feedsPath,
		OutputPath:       filepath.Join(dir, "items.json"),
		FetchConcurrency: 1,
		RequestTimeout:   5 * time.Second,
	}

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	before, err := storage.NewSnapshotFile(cfg.OutputPath).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(before.Items) == 0 {
		t.Fatalf("expected items after the first run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, cfg); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	after, err := storage.NewSnapshotFile(cfg.OutputPath).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(after.Items) != len(before.Items) {
		t.Errorf("cancelled run replaced the snapshot: %d items, want %d", len(after.Items), len(before.Items))
	}
}
