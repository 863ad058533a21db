package aggregator

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/plagio/plagio/blobstore"
	"github.com/plagio/plagio/internal/cache"
)

const (
	defaultCacheMax      = 64
	defaultLoadRetryMS   = 5_000
	defaultMaxShards     = 512
	defaultFanoutWidth   = 32
	hardMaxShards        = 4096
	hardMaxFanoutWidth   = 256
	defaultBlockCacheMax = 256 << 20 // 256MiB of staged-shard blocks
	defaultBlockSize     = 1 << 20
)

// Options configures an Aggregator. The zero value is not directly
// usable; construct one via DefaultOptions and Option functions.
type Options struct {
	// CacheMax bounds the number of shard directories held open at once.
	// Overridable by SEG_CACHE_MAX.
	CacheMax int
	// LoadRetryMS is the backoff window after a failed shard load, during
	// which further attempts immediately return the cached failure.
	// Overridable by SEG_LOAD_RETRY_MS.
	LoadRetryMS int
	// MaxShards bounds how many directories one search_many call may
	// name before it is rejected as a bad request.
	MaxShards int
	// FanoutWidth bounds how many shards are queried concurrently.
	FanoutWidth int
	// Debug includes per-shard statistics in the result document.
	// Overridable by SEG_DEBUG.
	Debug bool
	// Store, if set, lets SearchMany dirs name blob-store key prefixes
	// instead of local paths: each shard's three index files are staged
	// into StagingDir before engine.Load ever sees a local path.
	Store blobstore.BlobStore
	// StagingDir is the local directory remote shards are staged into
	// when Store is set. Defaults to os.TempDir()'s plagio-shards
	// subdirectory.
	StagingDir string
	// BlockCacheBytes bounds an in-memory block cache wrapped around
	// Store, so re-staging a shard evicted from the aggregator's own
	// cache.go LRU (but not yet re-fetched by anything else) serves
	// from memory instead of hitting the backend again. 0 disables
	// caching. Overridable by SEG_BLOCK_CACHE_BYTES.
	BlockCacheBytes int64
}

// Option mutates Options, following the teacher's functional-options
// pattern reused across builder/engine/aggregator construction.
type Option func(*Options)

// WithCacheMax overrides the shard cache capacity.
func WithCacheMax(n int) Option { return func(o *Options) { o.CacheMax = n } }

// WithLoadRetryMS overrides the failed-load backoff window.
func WithLoadRetryMS(ms int) Option { return func(o *Options) { o.LoadRetryMS = ms } }

// WithMaxShards overrides the per-call shard-count ceiling.
func WithMaxShards(n int) Option { return func(o *Options) { o.MaxShards = n } }

// WithFanoutWidth overrides the fan-out concurrency bound.
func WithFanoutWidth(n int) Option { return func(o *Options) { o.FanoutWidth = n } }

// WithDebug toggles per-shard statistics in the result document.
func WithDebug(enabled bool) Option { return func(o *Options) { o.Debug = enabled } }

// WithBlobStore makes SearchMany treat shard dirs as blob-store key
// prefixes, staged into stagingDir before engine.Load runs. An empty
// stagingDir falls back to a plagio-shards subdirectory of os.TempDir().
// The store is wrapped in a block cache sized by BlockCacheBytes (set via
// WithBlockCache or SEG_BLOCK_CACHE_BYTES, defaulting to 256MiB).
func WithBlobStore(store blobstore.BlobStore, stagingDir string) Option {
	return func(o *Options) {
		o.Store = store
		o.StagingDir = stagingDir
	}
}

// WithBlockCache overrides the block-cache size wrapped around a blob
// store set via WithBlobStore. 0 disables caching.
func WithBlockCache(maxBytes int64) Option {
	return func(o *Options) { o.BlockCacheBytes = maxBytes }
}

// DefaultOptions returns the baseline Options, seeded from the SEG_*
// environment knobs named in spec.md §6, then clamped to hard safety
// ceilings.
func DefaultOptions() Options {
	o := Options{
		CacheMax:    defaultCacheMax,
		LoadRetryMS: defaultLoadRetryMS,
		MaxShards:   defaultMaxShards,
		FanoutWidth: defaultFanoutWidth,
	}
	if v := envInt("SEG_CACHE_MAX"); v > 0 {
		o.CacheMax = v
	}
	if v := envInt("SEG_LOAD_RETRY_MS"); v > 0 {
		o.LoadRetryMS = v
	}
	if envBool("SEG_DEBUG") {
		o.Debug = true
	}
	if o.StagingDir == "" {
		o.StagingDir = defaultStagingDir()
	}
	o.BlockCacheBytes = defaultBlockCacheMax
	if v := envInt("SEG_BLOCK_CACHE_BYTES"); v > 0 {
		o.BlockCacheBytes = int64(v)
	}
	return clampOptions(o)
}

func clampOptions(o Options) Options {
	if o.CacheMax < 1 {
		o.CacheMax = defaultCacheMax
	}
	if o.LoadRetryMS < 1 {
		o.LoadRetryMS = defaultLoadRetryMS
	}
	if o.MaxShards < 1 {
		o.MaxShards = defaultMaxShards
	}
	if o.MaxShards > hardMaxShards {
		o.MaxShards = hardMaxShards
	}
	if o.FanoutWidth < 1 {
		o.FanoutWidth = defaultFanoutWidth
	}
	if o.FanoutWidth > hardMaxFanoutWidth {
		o.FanoutWidth = hardMaxFanoutWidth
	}
	if o.StagingDir == "" {
		o.StagingDir = defaultStagingDir()
	}
	if o.Store != nil && o.BlockCacheBytes > 0 {
		if _, wrapped := o.Store.(*blobstore.CachingStore); !wrapped {
			o.Store = blobstore.NewCachingStore(o.Store, cache.NewLRUBlockCache(o.BlockCacheBytes, nil), defaultBlockSize)
		}
	}
	return o
}

func defaultStagingDir() string {
	return filepath.Join(os.TempDir(), "plagio-shards")
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(name string) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "True":
		return true
	default:
		return false
	}
}
