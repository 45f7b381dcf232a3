package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/teamnews/internal/config"
	"github.com/deusflow/teamnews/internal/fetch"
	"github.com/deusflow/teamnews/internal/logger"
	"github.com/deusflow/teamnews/internal/metrics"
	"github.com/deusflow/teamnews/internal/news"
	"github.com/deusflow/teamnews/internal/rss"
	"github.com/deusflow/teamnews/internal/scraper"
	"github.com/deusflow/teamnews/internal/storage"
)

// Collector is the fetch stage as seen by the pipeline.
type Collector interface {
	Collect(ctx context.Context, sources []news.Source) []fetch.Result
}

// Pipeline turns a source set into a snapshot. A Pipeline holds no run
// state; every Run starts from an empty seen set.
type Pipeline struct {
	collector  Collector
	classifier *news.Classifier
	tracking   news.TrackingParams
	dedupe     news.DedupePolicy
	maxItems   int
	now        func() time.Time
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// Settings groups the policy inputs of a Pipeline.
type Settings struct {
	Classifier *news.Classifier
	Tracking   news.TrackingParams
	Dedupe     news.DedupePolicy
	MaxItems   int
	Now        func() time.Time
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

func NewPipeline(c Collector, s Settings) (*Pipeline, error) {
	if c == nil {
		return nil, errors.New("pipeline needs a collector")
	}
	if s.Classifier == nil {
		return nil, errors.New("pipeline needs a classifier")
	}
	if s.MaxItems <= 0 {
		return nil, fmt.Errorf("max items must be positive, got %d", s.MaxItems)
	}
	p := &Pipeline{
		collector:  c,
		classifier: s.Classifier,
		tracking:   s.Tracking,
		dedupe:     s.Dedupe,
		maxItems:   s.MaxItems,
		now:        s.Now,
		log:        s.Logger,
		metrics:    s.Metrics,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.metrics == nil {
		p.metrics = metrics.Global
	}
	return p, nil
}

// Run fetches every source and reduces the results. It always returns a
// snapshot; failed sources only make it smaller.
func (p *Pipeline) Run(ctx context.Context, sources []news.Source) news.Snapshot {
	collectedAt := p.now()
	results := p.collector.Collect(ctx, sources)
	return p.Reduce(results, collectedAt)
}

// Reduce normalizes, classifies and deduplicates the buffered per-source
// results in source order, then ranks and truncates them.
func (p *Pipeline) Reduce(results []fetch.Result, collectedAt time.Time) news.Snapshot {
	normalizer := news.NewNormalizer(collectedAt, p.tracking)
	deduper := news.NewDeduper(p.dedupe)

	for _, res := range results {
		kept := 0
		for _, raw := range res.Entries {
			e, err := normalizer.Normalize(raw, res.Source)
			if err != nil {
				p.metrics.IncrementMalformed()
				p.log.Debug("Dropped malformed entry", slog.String("source", res.Source.Name), slog.Any("reason", err))
				continue
			}
			if v, rule := p.classifier.Decide(e); v != news.Accept {
				p.metrics.IncrementRejected()
				p.log.Debug("Rejected entry", slog.String("source", res.Source.Name), slog.String("rule", rule), slog.String("title", e.Title))
				continue
			}
			if !deduper.Add(e) {
				p.metrics.IncrementDuplicatesFiltered()
				p.log.Debug("Duplicate entry", slog.String("source", res.Source.Name), slog.String("title", e.Title))
				continue
			}
			kept++
		}
		if len(res.Entries) > 0 {
			p.log.Debug("Merged source", slog.String("source", res.Source.Name), slog.Int("fetched", len(res.Entries)), slog.Int("kept", kept))
		}
	}

	return news.Rank(deduper.Entries(), p.maxItems, collectedAt)
}

// Run is the batch entry point: load feeds, collect, write the snapshot.
func Run(ctx context.Context, cfg *config.Config) error {
	startTime := time.Now()
	defer func() {
		metrics.Global.RecordProcessingTime(time.Since(startTime))
	}()

	feeds, err := rss.LoadFeeds(cfg.FeedsConfigPath)
	if err != nil {
		return fmt.Errorf("load feeds: %w", err)
	}
	dedupe, err := news.ParseDedupePolicy(feeds.Policy.DedupePolicy)
	if err != nil {
		return err
	}

	log := logger.With("pipeline")
	client := fetch.NewHTTPClient(&http.Client{}, cfg.UserAgent, logger.With("http"))
	collector := fetch.NewCollector(
		map[news.Kind]fetch.Fetcher{
			news.KindRSS:      rss.NewFetcher(client),
			news.KindAtom:     rss.NewFetcher(client),
			news.KindHTMLList: scraper.NewFetcher(client, logger.With("scraper")),
		},
		fetch.WithConcurrency(cfg.FetchConcurrency),
		fetch.WithTimeout(cfg.RequestTimeout),
		fetch.WithLogger(logger.With("fetch")),
	)

	pipeline, err := NewPipeline(collector, Settings{
		Classifier: feeds.Policy.Classifier(),
		Tracking:   feeds.Policy.Tracking(),
		Dedupe:     dedupe,
		MaxItems:   cfg.ResolveMaxItems(feeds.Policy.MaxItems),
		Logger:     log,
	})
	if err != nil {
		return err
	}

	log.Info("Collecting", slog.String("team", feeds.Team), slog.Int("sources", len(feeds.Sources)))
	snap := pipeline.Run(ctx, feeds.Sources)
	// An aborted run has no complete picture; keep the last published snapshot.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	out := storage.NewSnapshotFile(cfg.OutputPath)
	if err := out.Save(storage.NewSnapshotDocument(feeds.Team, snap, feeds.Links)); err != nil {
		metrics.Global.SetError(err.Error())
		return fmt.Errorf("write snapshot: %w", err)
	}
	metrics.Global.AddItemsWritten(len(snap.Items))
	metrics.Global.SetLastRun()

	fmt.Printf("items: %d  sources: %d  updated: %s\n", len(snap.Items), len(snap.Sources), snap.GeneratedAt.Format(time.RFC3339))
	return nil
}
