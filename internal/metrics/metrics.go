package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	SourcesOK          int64
	SourcesFailed      int64
	EntriesFetched     int64
	EntriesMalformed   int64
	EntriesRejected    int64
	DuplicatesFiltered int64
	ItemsWritten       int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	registry *prometheus.Registry
	counters *prometheus.CounterVec
	duration prometheus.Histogram
}

var Global = New()

// New creates a Metrics with its own prometheus registry.
func New() *Metrics {
	m := &Metrics{
		IsHealthy: true,
		registry:  prometheus.NewRegistry(),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamnews",
			Name:      "events_total",
			Help:      "Pipeline events by kind.",
		}, []string{"event"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "teamnews",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full collection run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}
	m.registry.MustRegister(m.counters, m.duration)
	return m
}

// Registry exposes the prometheus registry for a /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) add(field *int64, event string, n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	*field += int64(n)
	m.mu.Unlock()
	m.counters.WithLabelValues(event).Add(float64(n))
}

func (m *Metrics) IncrementSourceOK() {
	m.add(&m.SourcesOK, "source_ok", 1)
}

func (m *Metrics) IncrementSourceFailed() {
	m.add(&m.SourcesFailed, "source_failed", 1)
}

func (m *Metrics) AddEntriesFetched(n int) {
	m.add(&m.EntriesFetched, "entry_fetched", n)
}

func (m *Metrics) IncrementMalformed() {
	m.add(&m.EntriesMalformed, "entry_malformed", 1)
}

func (m *Metrics) IncrementRejected() {
	m.add(&m.EntriesRejected, "entry_rejected", 1)
}

func (m *Metrics) IncrementDuplicatesFiltered() {
	m.add(&m.DuplicatesFiltered, "duplicate_filtered", 1)
}

func (m *Metrics) AddItemsWritten(n int) {
	m.add(&m.ItemsWritten, "item_written", n)
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.duration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"sources_ok":                 m.SourcesOK,
		"sources_failed":             m.SourcesFailed,
		"entries_fetched":            m.EntriesFetched,
		"entries_malformed":          m.EntriesMalformed,
		"entries_rejected":           m.EntriesRejected,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"items_written":              m.ItemsWritten,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
