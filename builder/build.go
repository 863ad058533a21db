// Package builder implements the offline index-construction pipeline:
// a bounded producer/consumer over a JSONL corpus, per-worker sorted
// posting runs spilled to disk, a bounded-fan-in external merge, and
// atomic publication of the three CSR output files.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plagio/plagio"
	"github.com/plagio/plagio/codec"
	"github.com/plagio/plagio/shingle"
)

// Result is what Build returns on success: the stats that were also
// written into index_native_meta.json.
type Result struct {
	Stats codec.BuildStats
}

// Build reads corpusPath (a UTF-8 JSONL file, one document object per
// line) and writes index_native.bin, index_native_docids.json, and
// index_native_meta.json into outDir, per spec.md §4.3/§4.4/§6.
//
// Any I/O, malformed-input, or invariant violation during merge or
// publication aborts the build with no partial output, since every
// output file is published via temp-then-rename. Per-document parse
// errors are counted and skipped; the build still succeeds as long as
// at least one document yielded shingles.
func Build(ctx context.Context, corpusPath, outDir string, log *plagio.Logger, opts ...Option) (Result, error) {
	start := time.Now()
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	o = clampOptions(o)
	if log == nil {
		log = plagio.NoopLogger()
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, plagio.NewCoreError(plagio.KindIO, "builder.Build", err)
	}
	tmpDir, err := os.MkdirTemp(outDir, ".build-tmp-*")
	if err != nil {
		return Result{}, plagio.NewCoreError(plagio.KindIO, "builder.Build", err)
	}
	var allTemps []string
	cleanup := func() {
		if o.KeepTemp {
			return
		}
		for _, p := range allTemps {
			_ = os.Remove(p)
		}
		_ = os.Remove(tmpDir)
	}
	defer cleanup()

	f, err := os.Open(corpusPath)
	if err != nil {
		return Result{}, plagio.NewCoreError(plagio.KindIO, "builder.Build", err)
	}
	defer f.Close()

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []rawLine, o.Threads*2)

	var linesRead int64
	g.Go(func() error {
		n, err := readLines(gctx, f, batches)
		linesRead = n
		return err
	})

	results := make([]*workerResult, o.Threads)
	for i := 0; i < o.Threads; i++ {
		i := i
		g.Go(func() error {
			res, err := runWorker(gctx, i, batches, tmpDir, o)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		for _, res := range results {
			if res != nil {
				allTemps = append(allTemps, res.runFiles...)
			}
		}
		log.LogBuild(ctx, outDir, 0, err)
		return Result{}, plagio.NewCoreError(plagio.KindIO, "builder.Build", err)
	}
	stats := codec.BuildStats{LinesRead: linesRead, Workers: o.Threads}

	var docsMeta []codec.DocMeta
	var docIDs []string
	refs := make([]runRef, 0, len(results))
	base := uint32(0)
	for _, res := range results {
		stats.DocsIndexed += res.stats.docsIndexed
		stats.DocsSkippedJSON += res.stats.skippedJSON
		stats.DocsSkippedField += res.stats.skippedField
		stats.DocsSkippedEmpty += res.stats.skippedEmpty
		stats.DocsSkippedShort += res.stats.skippedShort
		stats.RunFiles += res.stats.runFiles

		docsMeta = append(docsMeta, res.docsMeta...)
		docIDs = append(docIDs, res.docIDs...)
		allTemps = append(allTemps, res.runFiles...)
		for _, path := range res.runFiles {
			refs = append(refs, runRef{path: path, base: base})
		}
		base += uint32(len(res.docsMeta))
	}

	if stats.DocsIndexed == 0 {
		return Result{}, plagio.NewCoreError(plagio.KindInvariant, "builder.Build",
			fmt.Errorf("no document in %s yielded shingles (>= %d tokens required)", corpusPath, shingle.K))
	}
	if len(refs) == 0 {
		return Result{}, plagio.NewCoreError(plagio.KindInvariant, "builder.Build",
			fmt.Errorf("no postings produced from %d indexed documents", stats.DocsIndexed))
	}

	fanRefs, fanTemps, err := fanInMerge(ctx, o.Resources, tmpDir, refs, o.MergeFanin)
	if err != nil {
		allTemps = append(allTemps, fanTemps...)
		return Result{}, plagio.NewCoreError(plagio.KindIO, "builder.Build", err)
	}
	allTemps = append(allTemps, fanTemps...)
	stats.MergePasses = mergePassCount(len(refs), o.MergeFanin)

	uniq, off, did, err := mergeToCSR(fanRefs)
	if err != nil {
		return Result{}, plagio.NewCoreError(plagio.KindInvariant, "builder.Build", err)
	}
	stats.UniqueHashes = int64(len(uniq))
	stats.Postings = int64(len(did))
	stats.WallClockMillis = time.Since(start).Milliseconds()

	binPath := filepath.Join(outDir, "index_native.bin")
	if err := codec.WriteFile(binPath, docsMeta, uniq, off, did, codec.WriteOptions{Checksummed: o.Checksummed}); err != nil {
		return Result{}, plagio.NewCoreError(plagio.KindIO, "builder.Build", err)
	}
	if err := codec.WriteDocIDs(filepath.Join(outDir, "index_native_docids.json"), docIDs); err != nil {
		return Result{}, plagio.NewCoreError(plagio.KindIO, "builder.Build", err)
	}
	meta := codec.Meta{
		Config: codec.BuildConfig{K: shingle.K, Stride: 1, Version: int(codecVersion(o))},
		Stats:  stats,
	}
	if err := codec.WriteMeta(filepath.Join(outDir, "index_native_meta.json"), meta); err != nil {
		return Result{}, plagio.NewCoreError(plagio.KindIO, "builder.Build", err)
	}
	if o.WriteDocsMap {
		if err := writeDocsMap(filepath.Join(outDir, "index_native_docs_map.json"), docIDs); err != nil {
			return Result{}, plagio.NewCoreError(plagio.KindIO, "builder.Build", err)
		}
	}

	log.LogBuild(ctx, outDir, stats.DocsIndexed, nil)
	return Result{Stats: stats}, nil
}

func codecVersion(o Options) uint32 {
	if o.Checksummed {
		return codec.VersionCSRChecksummed
	}
	return codec.VersionCSR
}

// mergePassCount reports how many fan-in passes fanInMerge needed to
// bring n runs within fanin, for the meta file's stats.
func mergePassCount(n, fanin int) int {
	passes := 0
	for n > fanin {
		n = (n + fanin - 1) / fanin
		passes++
	}
	return passes
}
