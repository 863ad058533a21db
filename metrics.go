package plagio

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational
// metrics across the builder, engine, and aggregator. Implement this to
// integrate with monitoring systems such as Prometheus.
type MetricsCollector interface {
	// RecordBuild is called after an index build completes.
	RecordBuild(duration time.Duration, docsIndexed int64, err error)
	// RecordLoad is called after a single shard load completes.
	RecordLoad(duration time.Duration, err error)
	// RecordSearch is called after a single-shard search completes.
	RecordSearch(topK int, hitsFound int, duration time.Duration, err error)
	// RecordShardLoad is called after each aggregator ensure-loaded
	// attempt for a shard, successful or not.
	RecordShardLoad(dir string, attempt int, err error)
	// RecordEvict is called when the aggregator evicts a cache entry.
	RecordEvict(dir string)
}

// NoopMetricsCollector discards all recorded metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(time.Duration, int64, error)       {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)               {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordShardLoad(string, int, error)            {}
func (NoopMetricsCollector) RecordEvict(string)                            {}

// BasicMetricsCollector provides simple in-memory metrics collection,
// useful for debugging and basic monitoring without an external
// dependency.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildDocsTotal  atomic.Int64
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
	LoadTotalNanos  atomic.Int64
	SearchCount     atomic.Int64
	SearchErrors    atomic.Int64
	SearchTotalNanos atomic.Int64
	SearchHitsTotal atomic.Int64
	ShardLoadRetries atomic.Int64
	ShardLoadFailures atomic.Int64
	EvictCount      atomic.Int64
}

func (b *BasicMetricsCollector) RecordBuild(duration time.Duration, docsIndexed int64, err error) {
	b.BuildCount.Add(1)
	b.BuildDocsTotal.Add(docsIndexed)
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordSearch(topK, hitsFound int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchHitsTotal.Add(int64(hitsFound))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordShardLoad(dir string, attempt int, err error) {
	if attempt > 1 {
		b.ShardLoadRetries.Add(1)
	}
	if err != nil {
		b.ShardLoadFailures.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordEvict(dir string) {
	b.EvictCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:        b.BuildCount.Load(),
		BuildErrors:       b.BuildErrors.Load(),
		BuildDocsTotal:    b.BuildDocsTotal.Load(),
		LoadCount:         b.LoadCount.Load(),
		LoadErrors:        b.LoadErrors.Load(),
		LoadAvgNanos:      b.avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		SearchCount:       b.SearchCount.Load(),
		SearchErrors:      b.SearchErrors.Load(),
		SearchAvgNanos:    b.avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		SearchHitsTotal:   b.SearchHitsTotal.Load(),
		ShardLoadRetries:  b.ShardLoadRetries.Load(),
		ShardLoadFailures: b.ShardLoadFailures.Load(),
		EvictCount:        b.EvictCount.Load(),
	}
}

func (b *BasicMetricsCollector) avg(totalNanos, count int64) int64 {
	if count == 0 {
		return 0
	}
	return totalNanos / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount        int64
	BuildErrors       int64
	BuildDocsTotal    int64
	LoadCount         int64
	LoadErrors        int64
	LoadAvgNanos      int64
	SearchCount       int64
	SearchErrors      int64
	SearchAvgNanos    int64
	SearchHitsTotal   int64
	ShardLoadRetries  int64
	ShardLoadFailures int64
	EvictCount        int64
}
