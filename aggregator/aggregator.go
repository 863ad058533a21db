// Package aggregator fans a query out across N shard directories,
// lazily loading each one through a bounded LRU cache, and merges the
// per-shard hits into one globally-ranked top-K.
package aggregator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/plagio/plagio"
	"github.com/plagio/plagio/engine"
)

// Aggregator is a long-lived handle over a shard cache. It is safe for
// concurrent use; per-shard cache operations take short, per-entry
// mutexes rather than a single global lock.
type Aggregator struct {
	opts  Options
	cache *shardCache
	log   *plagio.Logger
}

// New constructs an Aggregator. log may be nil, in which case logging
// is a no-op.
func New(log *plagio.Logger, opts ...Option) *Aggregator {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	o = clampOptions(o)
	if log == nil {
		log = plagio.NoopLogger()
	}
	return &Aggregator{
		opts:  o,
		cache: newShardCache(o),
		log:   log,
	}
}

// Close releases every cached engine. The Aggregator must not be used
// afterward.
func (a *Aggregator) Close() {
	a.cache.closeAll()
}

// SearchMany queries every directory in dirs for queryUTF8 and returns
// the globally-ranked top-K, per spec.md §4.6. Malformed arguments
// produce Result{OK: false, Error: ...} rather than a Go error; a
// returned error indicates ctx was cancelled before any shard could be
// queried.
func (a *Aggregator) SearchMany(ctx context.Context, queryUTF8 string, topK int, dirs []string) (*Result, error) {
	if queryUTF8 == "" {
		return errorResult("bad_request", "query must not be empty"), nil
	}
	if topK <= 0 {
		return errorResult("bad_request", "top_k must be positive"), nil
	}
	if len(dirs) == 0 {
		return &Result{OK: true}, nil
	}
	if len(dirs) > a.opts.MaxShards {
		err := &plagio.ErrTooManyShards{Requested: len(dirs), Max: a.opts.MaxShards}
		return errorResult("bad_request", err.Error()), nil
	}
	if topK > engine.TopKHardMax {
		topK = engine.TopKHardMax
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lk := localK(topK, len(dirs))

	type shardOutcome struct {
		dir  string
		hits []engine.Hit
		err  error
	}
	outcomes := make([]shardOutcome, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.FanoutWidth)
	for i, dir := range dirs {
		i, dir := i, dir
		g.Go(func() error {
			outcomes[i] = shardOutcome{dir: dir}
			if err := gctx.Err(); err != nil {
				outcomes[i].err = err
				return nil
			}
			hits, err := a.searchShard(gctx, dir, queryUTF8, lk)
			outcomes[i].hits, outcomes[i].err = hits, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggregates := make(map[string]*aggregate)
	res := &Result{OK: true}
	for _, o := range outcomes {
		if o.err != nil {
			res.DirsFailed++
			if a.opts.Debug {
				res.ShardStats = append(res.ShardStats, ShardStat{Dir: o.dir, OK: false, LocalK: lk, Error: o.err.Error()})
			}
			continue
		}
		res.DirsOK++
		if a.opts.Debug {
			res.ShardStats = append(res.ShardStats, ShardStat{Dir: o.dir, OK: true, Hits: len(o.hits), LocalK: lk})
		}
		seen := make(map[string]bool, len(o.hits))
		for _, h := range o.hits {
			key := h.DocID
			agg, ok := aggregates[key]
			if !ok {
				agg = &aggregate{hit: toHit(h, o.dir)}
				aggregates[key] = agg
			} else if h.Score > agg.hit.Score {
				agg.hit = toHit(h, o.dir)
			}
			if !seen[key] {
				agg.foundIn++
				seen[key] = true
			}
		}
	}

	res.Hits = offerAll(aggregates, topK)
	res.Count = len(res.Hits)
	return res, nil
}

func toHit(h engine.Hit, dir string) Hit {
	return Hit{
		DocID:        h.DocID,
		DocUID:       h.DocUID,
		BestIndexDir: dir,
		Score:        h.Score,
		Jaccard:      h.Jaccard,
		Containment:  h.Containment,
		CandHits:     h.CandHits,
	}
}

// searchShard pins dir's cache entry, ensures it is loaded (subject to
// the cache's load-retry backoff), runs the query, and moves the entry
// to the front of the LRU only if the whole round-trip succeeded.
func (a *Aggregator) searchShard(ctx context.Context, dir, queryUTF8 string, localK int) ([]engine.Hit, error) {
	entry := a.cache.pin(dir)
	defer a.cache.unpin(entry)

	eng, attempted, attemptNum, err := entry.ensureLoaded(ctx, a.opts)
	if attempted {
		a.log.LogShardLoad(ctx, dir, attemptNum, err)
	}
	if err != nil {
		return nil, plagio.NewShardLoadFailed(dir, err)
	}

	hits, err := eng.Search(queryUTF8, localK)
	if err != nil {
		return nil, plagio.NewShardLoadFailed(dir, err)
	}
	a.cache.touch(dir)
	return hits, nil
}

// localK scales the per-shard over-fetch with the shard count so a
// document that surfaces in multiple shards is still represented in
// each shard's local results, per spec.md §4.6.
func localK(k, n int) int {
	switch {
	case n <= 8:
		k *= 4
	case n <= 64:
		k *= 3
	case n <= 512:
		k *= 2
	}
	if k > engine.TopKHardMax {
		k = engine.TopKHardMax
	}
	return k
}
