// Package engine loads a single built shard (a directory containing
// index_native.bin, index_native_docids.json, and an optional
// index_config.json) and serves near-duplicate retrieval queries against
// it. A loaded Engine is safe for concurrent, lock-free use: the
// underlying index is a read-only memory mapping, and Search allocates
// only thread-local working buffers.
package engine

import (
	"fmt"
	"path/filepath"

	"github.com/plagio/plagio/codec"
)

// Engine is a loaded, queryable shard.
type Engine struct {
	dir    string
	cfg    Config
	index  *codec.Index
	docIDs []string
	closed bool
}

// Dir returns the shard directory this Engine was loaded from.
func (e *Engine) Dir() string { return e.dir }

// DocsCount returns the number of documents in the shard.
func (e *Engine) DocsCount() int { return int(e.index.NDocs) }

// Config returns the query-time configuration this Engine was loaded
// with.
func (e *Engine) Config() Config { return e.cfg }

// DocID returns the external string id for did, falling back to
// "<dir>:<did>" when the docids table is shorter than NDocs (spec's
// documented fallback for a truncated docids file; a missing or
// malformed docids file makes Load fail instead).
func (e *Engine) DocID(did uint32) string {
	if int(did) < len(e.docIDs) {
		return e.docIDs[did]
	}
	return fmt.Sprintf("%s:%d", e.dir, did)
}

// Load reads and validates the shard at dir: index_native.bin (via
// codec.LoadFile, which validates CSR invariants and rejects big-endian
// hosts), index_native_docids.json, and an optional index_config.json.
func Load(dir string) (*Engine, error) {
	binPath := filepath.Join(dir, "index_native.bin")
	ix, err := codec.LoadFile(binPath)
	if err != nil {
		return nil, wrapLoadErr("engine.Load", err)
	}

	docIDs, err := codec.ReadDocIDs(filepath.Join(dir, "index_native_docids.json"))
	if err != nil {
		_ = ix.Close()
		return nil, wrapLoadErr("engine.Load", fmt.Errorf("%w: %w", ErrMissingDocIDs, err))
	}
	if len(docIDs) > int(ix.NDocs) {
		docIDs = docIDs[:ix.NDocs]
	}

	cfg := LoadConfig(dir)

	return &Engine{
		dir:    dir,
		cfg:    cfg,
		index:  ix,
		docIDs: docIDs,
	}, nil
}

// Close releases the shard's memory mapping. Idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}
