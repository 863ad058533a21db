package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/plagio/plagio/codec"
	"github.com/plagio/plagio/shingle"
	"github.com/plagio/plagio/text"
)

// jsonLine is the recognized shape of one corpus line; unknown fields
// are ignored per spec.md §6.
type jsonLine struct {
	DocID string `json:"doc_id"`
	Text  string `json:"text"`
}

// workerStats counts what one worker skipped and produced, rolled up
// into the build's overall codec.BuildStats afterward.
type workerStats struct {
	docsIndexed      int64
	skippedJSON      int64
	skippedField     int64
	skippedEmpty     int64
	skippedShort     int64
	runFiles         int
}

// workerResult is everything one worker contributes to the build: its
// local docs-meta/doc-id tables (indexed by worker-local did) and the
// run files it spilled, which still hold worker-local dids.
type workerResult struct {
	docsMeta []codec.DocMeta
	docIDs   []string
	runFiles []string
	stats    workerStats
}

// runWorker drains batches until the channel closes or ctx is
// cancelled, processing each JSONL line per spec.md §4.4 step 2:
// normalize, tokenize, reject short documents, fingerprint, assign a
// local did, hash and dedup shingles, and accumulate postings until
// runMaxPostings is reached, at which point the buffer spills to a
// sorted run file.
func runWorker(ctx context.Context, workerID int, batches <-chan []rawLine, tmpDir string, opts Options) (*workerResult, error) {
	res := &workerResult{}
	var buf []posting
	var localDid uint32

	spill := func() error {
		if len(buf) == 0 {
			return nil
		}
		sortPostings(buf)
		buf = dedupPostings(buf)
		pattern := fmt.Sprintf("run-w%03d-%05d-*.zst", workerID, res.stats.runFiles)
		path, err := writeRunFile(ctx, opts.Resources, tmpDir, pattern, buf)
		if err != nil {
			return err
		}
		res.runFiles = append(res.runFiles, path)
		res.stats.runFiles++
		buf = buf[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				if err := spill(); err != nil {
					return res, err
				}
				return res, nil
			}
			for _, line := range batch {
				var jl jsonLine
				if err := json.Unmarshal(line.data, &jl); err != nil {
					res.stats.skippedJSON++
					continue
				}
				if jl.DocID == "" {
					res.stats.skippedField++
					continue
				}
				if jl.Text == "" {
					res.stats.skippedEmpty++
					continue
				}

				norm := text.Normalize([]byte(jl.Text))
				spans := text.Tokenize(norm)
				if len(spans) < shingle.K {
					res.stats.skippedShort++
					continue
				}

				hi, lo := shingle.Simhash128(norm, spans)
				did := localDid
				localDid++
				res.docsMeta = append(res.docsMeta, codec.DocMeta{
					TokLen:    uint32(len(spans)),
					SimhashHi: hi,
					SimhashLo: lo,
				})
				res.docIDs = append(res.docIDs, jl.DocID)
				res.stats.docsIndexed++

				hashes := shingle.Hashes(norm, spans, shingle.K)
				if len(hashes) > opts.MaxShingles {
					hashes = hashes[:opts.MaxShingles]
				}
				hashes = dedupShingles(hashes)
				for _, h := range hashes {
					buf = append(buf, posting{hash: h, did: did})
				}
				if len(buf) >= opts.RunMaxPostings {
					if err := spill(); err != nil {
						return res, err
					}
				}
			}
		}
	}
}

func sortPostings(p []posting) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].hash != p[j].hash {
			return p[i].hash < p[j].hash
		}
		return p[i].did < p[j].did
	})
}

// dedupPostings removes duplicate (hash, did) pairs from a sorted
// slice, returning the deduped prefix.
func dedupPostings(p []posting) []posting {
	if len(p) == 0 {
		return p
	}
	n := 1
	for i := 1; i < len(p); i++ {
		if p[i] != p[n-1] {
			p[n] = p[i]
			n++
		}
	}
	return p[:n]
}
