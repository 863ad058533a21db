package aggregator

import (
	"container/list"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/plagio/plagio/blobstore"
	"github.com/plagio/plagio/engine"
)

// cacheEntry is one shard directory's cached load state: the engine,
// whether it loaded ok, the last load error, the attempt count and the
// pin count. Retry backoff is tracked by limiter rather than by a
// last-attempt timestamp. mu serializes load attempts for this entry; pinCount is guarded by
// the owning shardCache's mutex instead, since eviction needs to read it
// while holding that lock.
type cacheEntry struct {
	dir string

	mu           sync.Mutex
	eng          *engine.Engine
	ok           bool
	attempted    bool
	attemptCount int
	lastErr      error
	limiter      *rate.Limiter

	pinCount int
}

// ensureLoaded returns the entry's engine, loading it if necessary.
// A prior failure within the backoff window returns the cached failure
// without attempting a new load; the rate.Limiter token bucket (burst 1,
// refilling once per backoff window) keeps a stampede of concurrent
// callers from each re-attempting the same dead shard, collapsing them
// onto the cached error until the window has genuinely elapsed.
//
// When opts.Store is set, e.dir names a blob-store key prefix rather than
// a local path: the shard's three index files are staged into a
// per-entry subdirectory of opts.StagingDir before engine.Load ever sees
// a local path, so the mmap-backed hot path stays entirely local-file-based.
func (e *cacheEntry) ensureLoaded(ctx context.Context, opts Options) (eng *engine.Engine, attempted bool, attemptNum int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ok {
		return e.eng, false, e.attemptCount, nil
	}
	if e.attempted && !e.limiter.Allow() {
		return nil, false, e.attemptCount, e.lastErr
	}

	e.attempted = true
	e.attemptCount++

	loadDir := e.dir
	if opts.Store != nil {
		staged := filepath.Join(opts.StagingDir, stagingSubdir(e.dir))
		if stageErr := blobstore.StageShard(ctx, opts.Store, e.dir, staged); stageErr != nil {
			e.lastErr = stageErr
			e.limiter.Allow()
			return nil, true, e.attemptCount, stageErr
		}
		loadDir = staged
	}

	loaded, loadErr := engine.Load(loadDir)
	if loadErr != nil {
		e.lastErr = loadErr
		e.limiter.Allow() // consume the just-granted token so the
		// next check is gated again until the window refills it
		return nil, true, e.attemptCount, loadErr
	}
	e.eng = loaded
	e.ok = true
	e.lastErr = nil
	return loaded, true, e.attemptCount, nil
}

// stagingSubdir turns a blob-store key prefix into a filesystem-safe
// directory name, collapsing path separators so nested prefixes don't
// create nested staging directories.
func stagingSubdir(prefix string) string {
	s := strings.Trim(prefix, "/")
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" {
		s = "_root"
	}
	return s
}

func (e *cacheEntry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng != nil {
		_ = e.eng.Close()
		e.eng = nil
	}
}

// shardCache is a bounded dir -> cacheEntry cache with LRU eviction.
// Move-to-front happens only after a shard is used successfully
// (see touch), so a shard that is merely failing to load doesn't get
// promoted and doesn't get evicted out of turn either.
type shardCache struct {
	mu      sync.Mutex
	opts    Options
	entries map[string]*cacheEntry
	lru     *list.List
	elems   map[string]*list.Element
}

func newShardCache(opts Options) *shardCache {
	return &shardCache{
		opts:    opts,
		entries: make(map[string]*cacheEntry),
		lru:     list.New(),
		elems:   make(map[string]*list.Element),
	}
}

// pin returns the entry for dir, creating it if necessary, with its
// pin count incremented so the evictor will skip it until unpin.
func (c *shardCache) pin(dir string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[dir]
	if !ok {
		e = &cacheEntry{
			dir:     dir,
			limiter: rate.NewLimiter(rate.Every(time.Duration(c.opts.LoadRetryMS)*time.Millisecond), 1),
		}
		c.entries[dir] = e
		c.elems[dir] = c.lru.PushFront(e)
	}
	e.pinCount++
	c.evictLocked()
	return e
}

// unpin releases the pin taken by pin, then gives the evictor another
// chance to trim the cache back to capacity.
func (c *shardCache) unpin(e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.pinCount--
	c.evictLocked()
}

// touch moves dir's entry to the front of the LRU list. Call only after
// the shard was used successfully.
func (c *shardCache) touch(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elems[dir]; ok {
		c.lru.MoveToFront(el)
	}
}

// evictLocked trims the cache to opts.CacheMax, evicting from the LRU
// tail and skipping pinned entries. Eviction attempts are bounded by the
// list length so an all-pinned cache can't spin.
func (c *shardCache) evictLocked() {
	for c.lru.Len() > c.opts.CacheMax {
		var victim *list.Element
		attempts := 0
		for el := c.lru.Back(); el != nil && attempts < c.lru.Len(); el = el.Prev() {
			attempts++
			if el.Value.(*cacheEntry).pinCount == 0 {
				victim = el
				break
			}
		}
		if victim == nil {
			return
		}
		e := victim.Value.(*cacheEntry)
		c.lru.Remove(victim)
		delete(c.elems, e.dir)
		delete(c.entries, e.dir)
		e.close()
	}
}

// closeAll releases every cached engine, for Aggregator.Close.
func (c *shardCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.close()
	}
	c.entries = make(map[string]*cacheEntry)
	c.elems = make(map[string]*list.Element)
	c.lru = list.New()
}
