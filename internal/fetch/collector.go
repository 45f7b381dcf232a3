package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/teamnews/internal/metrics"
	"github.com/deusflow/teamnews/internal/news"
)

const (
	DefaultConcurrency = 8
	DefaultTimeout     = 20 * time.Second
)

// Fetcher retrieves the raw items of one source.
type Fetcher interface {
	Fetch(ctx context.Context, src news.Source) ([]news.RawEntry, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, src news.Source) ([]news.RawEntry, error)

func (f FetcherFunc) Fetch(ctx context.Context, src news.Source) ([]news.RawEntry, error) {
	return f(ctx, src)
}

// Result is what one source contributed to a run. Err is informational:
// a failed source simply has no Entries.
type Result struct {
	Source   news.Source
	Entries  []news.RawEntry
	Err      error
	Duration time.Duration
}

// Collector fetches all sources on a bounded pool, each under its own timeout.
type Collector struct {
	fetchers    map[news.Kind]Fetcher
	concurrency int
	timeout     time.Duration
	log         *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Collector)

func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Collector) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Collector) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewCollector creates a Collector dispatching on source kind.
func NewCollector(fetchers map[news.Kind]Fetcher, opts ...Option) *Collector {
	c := &Collector{
		fetchers:    fetchers,
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
		log:         slog.Default(),
		metrics:     metrics.Global,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect returns one Result per source, in source order. It never fails:
// errors, timeouts and panics inside a fetcher leave that source empty and
// do not touch any other source.
func (c *Collector) Collect(ctx context.Context, sources []news.Source) []Result {
	results := make([]Result, len(sources))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = c.fetchOne(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, r := range results {
		if r.Err == nil {
			ok++
		}
	}
	c.log.Info("Processed feeds", slog.Int("ok", ok), slog.Int("total", len(sources)))
	return results
}

func (c *Collector) fetchOne(ctx context.Context, src news.Source) Result {
	start := time.Now()
	res := Result{Source: src}
	log := c.log.With(slog.String("source", src.Name), slog.String("url", src.URL))

	res.Entries, res.Err = c.run(ctx, src)
	res.Duration = time.Since(start)
	if res.Err != nil {
		res.Entries = nil
		c.metrics.IncrementSourceFailed()
		log.Warn("Source failed", slog.String("stage", "fetch"), slog.Any("error", res.Err), slog.Duration("duration", res.Duration))
		return res
	}
	c.metrics.IncrementSourceOK()
	c.metrics.AddEntriesFetched(len(res.Entries))
	log.Info("Loaded entries", slog.Int("count", len(res.Entries)), slog.Duration("duration", res.Duration))
	return res
}

type fetched struct {
	entries []news.RawEntry
	err     error
}

// run calls the fetcher in its own goroutine so a fetcher that ignores its
// context still cannot hold the run past the timeout.
func (c *Collector) run(ctx context.Context, src news.Source) ([]news.RawEntry, error) {
	f, ok := c.fetchers[src.Kind]
	if !ok {
		return nil, fmt.Errorf("no fetcher for kind %q", src.Kind)
	}

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan fetched, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetched{err: fmt.Errorf("fetcher panic: %v", r)}
			}
		}()
		entries, err := f.Fetch(fctx, src)
		done <- fetched{entries: entries, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("fetch %s: %w", src.Name, out.err)
		}
		return out.entries, nil
	case <-fctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", src.Name, fctx.Err())
	}
}
