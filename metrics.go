package aimdisk

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operation timings. Implement it to feed a
// monitoring system; the default NoopMetricsCollector costs nothing.
type MetricsCollector interface {
	// RecordAddChunk is called after every add_chunk, successful or not.
	RecordAddChunk(duration time.Duration, err error)

	// RecordSearch is called after every vector search. k is the number
	// of neighbours requested.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordUpdate is called after every metadata update.
	RecordUpdate(duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAddChunk(time.Duration, error)    {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)      {}

// BasicMetricsCollector keeps simple in-memory counters, enough for
// debugging and tests without an external monitoring stack.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddErrors        atomic.Int64
	AddTotalNanos    atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	UpdateCount      atomic.Int64
	UpdateErrors     atomic.Int64
}

// RecordAddChunk implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAddChunk(duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (b *BasicMetricsCollector) Stats() BasicMetricsStats {
	stats := BasicMetricsStats{
		AddCount:     b.AddCount.Load(),
		AddErrors:    b.AddErrors.Load(),
		SearchCount:  b.SearchCount.Load(),
		SearchErrors: b.SearchErrors.Load(),
		UpdateCount:  b.UpdateCount.Load(),
		UpdateErrors: b.UpdateErrors.Load(),
	}
	if stats.AddCount > 0 {
		stats.AddAvgNanos = b.AddTotalNanos.Load() / stats.AddCount
	}
	if stats.SearchCount > 0 {
		stats.SearchAvgNanos = b.SearchTotalNanos.Load() / stats.SearchCount
	}
	return stats
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount       int64
	AddErrors      int64
	AddAvgNanos    int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	UpdateCount    int64
	UpdateErrors   int64
}
