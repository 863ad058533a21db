package builder

import (
	"os"
	"runtime"
	"strconv"

	"github.com/plagio/plagio/internal/resource"
)

const (
	defaultRunMaxPostings = 2_000_000
	defaultMergeFanin     = 16
	defaultMaxShingles    = 1 << 20
	hardMaxThreads        = 64
	hardMaxMergeFanin     = 256
)

// Options configures Build. The zero value is not directly usable;
// construct one via DefaultOptions and Option functions.
type Options struct {
	// Threads bounds the worker pool size. Defaults to GOMAXPROCS,
	// overridable by PLAGIO_THREADS, capped at a hard safety ceiling.
	Threads int
	// RunMaxPostings is the in-RAM posting count a worker accumulates
	// before spilling a sorted run file. Overridable by PLAGIO_RUN_MAX_PAIRS.
	RunMaxPostings int
	// MergeFanin bounds how many run files are merged together in one
	// fan-in pass. Overridable by PLAGIO_MERGE_MAX_WAY.
	MergeFanin int
	// MaxShingles caps the number of shingle hashes kept per document
	// before per-document dedup.
	MaxShingles int
	// Checksummed selects the VersionCSRChecksummed header variant.
	Checksummed bool
	// KeepTemp leaves spilled run files on disk after a successful
	// build, for debugging. Overridable by PLAGIO_TMP_KEEP.
	KeepTemp bool
	// WriteDocsMap additionally writes a doc_id -> did reverse-lookup
	// JSON file. Overridable by PLAGIO_META_DOCS_MAP.
	WriteDocsMap bool
	// Resources throttles the spill-to-disk path: writeRunFile acquires
	// IO tokens for the run's uncompressed size (4 bytes plus 12 per
	// posting) before writing it. Nil (the default) means unthrottled, since
	// Controller's methods are nil-receiver safe.
	// Overridable by PLAGIO_IO_LIMIT_BYTES_PER_SEC.
	Resources *resource.Controller
}

// Option mutates Options, following the teacher's functional-options
// pattern reused across builder/engine/aggregator construction.
type Option func(*Options)

// WithThreads overrides the worker pool size.
func WithThreads(n int) Option { return func(o *Options) { o.Threads = n } }

// WithRunMaxPostings overrides the per-worker spill threshold.
func WithRunMaxPostings(n int) Option { return func(o *Options) { o.RunMaxPostings = n } }

// WithMergeFanin overrides the fan-in merge width.
func WithMergeFanin(n int) Option { return func(o *Options) { o.MergeFanin = n } }

// WithMaxShingles overrides the per-document shingle cap.
func WithMaxShingles(n int) Option { return func(o *Options) { o.MaxShingles = n } }

// WithChecksummedHeader selects or deselects the checksummed header
// variant. Default on.
func WithChecksummedHeader(enabled bool) Option { return func(o *Options) { o.Checksummed = enabled } }

// WithKeepTemp keeps spilled run files on disk after a successful build.
func WithKeepTemp(keep bool) Option { return func(o *Options) { o.KeepTemp = keep } }

// WithDocsMap enables writing a doc_id -> did reverse-lookup JSON file
// alongside the usual outputs.
func WithDocsMap(enabled bool) Option { return func(o *Options) { o.WriteDocsMap = enabled } }

// WithResourceLimits installs a resource.Controller built from cfg that
// throttles the spill-to-disk path's write throughput. Only
// cfg.IOLimitBytesPerSec has an effect: the builder does not reserve
// memory or background slots through the controller.
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *Options) { o.Resources = resource.NewController(cfg) }
}

// DefaultOptions returns the baseline Options, seeded from the
// PLAGIO_* environment knobs named in spec.md §6, then clamped to hard
// safety ceilings.
func DefaultOptions() Options {
	o := Options{
		Threads:        runtime.GOMAXPROCS(0),
		RunMaxPostings: defaultRunMaxPostings,
		MergeFanin:     defaultMergeFanin,
		MaxShingles:    defaultMaxShingles,
		Checksummed:    true,
	}
	if v := envInt("PLAGIO_THREADS"); v > 0 {
		o.Threads = v
	}
	if v := envInt("PLAGIO_RUN_MAX_PAIRS"); v > 0 {
		o.RunMaxPostings = v
	}
	if v := envInt("PLAGIO_MERGE_MAX_WAY"); v > 0 {
		o.MergeFanin = v
	}
	if envBool("PLAGIO_TMP_KEEP") {
		o.KeepTemp = true
	}
	if envBool("PLAGIO_META_DOCS_MAP") {
		o.WriteDocsMap = true
	}
	if v := envInt64("PLAGIO_IO_LIMIT_BYTES_PER_SEC"); v > 0 {
		o.Resources = resource.NewController(resource.Config{IOLimitBytesPerSec: v})
	}
	return clampOptions(o)
}

func clampOptions(o Options) Options {
	if o.Threads < 1 {
		o.Threads = 1
	}
	if o.Threads > hardMaxThreads {
		o.Threads = hardMaxThreads
	}
	if o.RunMaxPostings < 1 {
		o.RunMaxPostings = defaultRunMaxPostings
	}
	if o.MergeFanin < 2 {
		o.MergeFanin = 2
	}
	if o.MergeFanin > hardMaxMergeFanin {
		o.MergeFanin = hardMaxMergeFanin
	}
	if o.MaxShingles < 1 {
		o.MaxShingles = defaultMaxShingles
	}
	return o
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

func envInt64(name string) int64 {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
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
