package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plagio/plagio/codec"
	"github.com/plagio/plagio/shingle"
	"github.com/plagio/plagio/text"
)

// buildShard runs the same normalize -> tokenize -> shingle -> CSR
// pipeline the builder would, for a small in-memory corpus, and writes
// it out as a loadable shard directory.
func buildShard(t *testing.T, docIDs []string, texts []string) string {
	t.Helper()
	require.Equal(t, len(docIDs), len(texts))

	docsMeta := make([]codec.DocMeta, len(texts))
	type postingKey struct {
		hash uint64
		did  uint32
	}
	seen := make(map[postingKey]struct{})

	for did, txt := range texts {
		norm := text.Normalize([]byte(txt))
		spans := text.Tokenize(norm)
		hi, lo := shingle.Simhash128(norm, spans)
		docsMeta[did] = codec.DocMeta{TokLen: uint32(len(spans)), SimhashHi: hi, SimhashLo: lo}

		hashes := shingle.Dedup(shingle.Hashes(norm, spans, shingle.K))
		for _, h := range hashes {
			seen[postingKey{hash: h, did: uint32(did)}] = struct{}{}
		}
	}

	keys := make([]postingKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].hash != keys[j].hash {
			return keys[i].hash < keys[j].hash
		}
		return keys[i].did < keys[j].did
	})

	var uniq []uint64
	var off []uint64
	var did []uint32
	var lastHash uint64
	haveHash := false
	for _, k := range keys {
		if !haveHash || k.hash != lastHash {
			uniq = append(uniq, k.hash)
			off = append(off, uint64(len(did)))
			lastHash = k.hash
			haveHash = true
		}
		did = append(did, k.did)
	}
	off = append(off, uint64(len(did)))
	if len(uniq) == 0 {
		off = []uint64{0}
	}

	dir := t.TempDir()
	require.NoError(t, codec.WriteFile(filepath.Join(dir, "index_native.bin"), docsMeta, uniq, off, did, codec.WriteOptions{}))
	require.NoError(t, codec.WriteDocIDs(filepath.Join(dir, "index_native_docids.json"), docIDs))
	return dir
}

func writeConfig(t *testing.T, dir string, cfg map[string]any) {
	t.Helper()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index_config.json"), b, 0o644))
}

func TestSearch_IdenticalDocuments(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog near the river"
	dir := buildShard(t, []string{"A", "B"}, []string{text, text})

	e, err := Load(dir)
	require.NoError(t, err)
	defer e.Close()

	hits, err := e.Search(text, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.InDelta(t, 1.0, h.Jaccard, 1e-9)
		assert.InDelta(t, 1.0, h.Containment, 1e-9)
		assert.InDelta(t, e.cfg.W9, h.Score, 1e-9)
		assert.GreaterOrEqual(t, h.CandHits, 1)
	}
}

func TestSearch_ProperSubstring(t *testing.T) {
	full := "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima mike november oscar papa quebec romeo sierra tango uniform victor whiskey xray yankee zulu alpha bravo charlie delta"
	fullSpans := text.Tokenize(text.Normalize([]byte(full)))
	require.GreaterOrEqual(t, len(fullSpans), 30)

	dir := buildShard(t, []string{"X"}, []string{full})
	e, err := Load(dir)
	require.NoError(t, err)
	defer e.Close()

	queryWords := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		queryWords = append(queryWords, string(fullSpans[i].Bytes(text.Normalize([]byte(full)))))
	}
	query := joinSpaces(queryWords)

	hits, err := e.Search(query, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "X", hits[0].DocID)
	assert.InDelta(t, 1.0, hits[0].Containment, 1e-9)
}

func TestSearch_NoOverlap_ReturnsEmpty(t *testing.T) {
	dir := buildShard(t, []string{"Y"}, []string{"completely unrelated document about something else entirely and nothing more to see"})
	e, err := Load(dir)
	require.NoError(t, err)
	defer e.Close()

	hits, err := e.Search("totally different text sharing no nine gram with the stored document at all", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_DFCeilingExcludesSeed(t *testing.T) {
	shared := "common shingle phrase that repeats across every single document in this corpus today"
	texts := make([]string, 0, 150)
	ids := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		texts = append(texts, shared)
		ids = append(ids, "doc")
	}
	dir := buildShard(t, ids, texts)
	writeConfig(t, dir, map[string]any{"max_df_for_seed": 100})

	e, err := Load(dir)
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, 100, e.cfg.MaxDFForSeed)

	hits, err := e.Search(shared, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_EmptyQuery_ReturnsNoHits(t *testing.T) {
	dir := buildShard(t, []string{"A"}, []string{"some reasonably long document used only as filler content here"})
	e, err := Load(dir)
	require.NoError(t, err)
	defer e.Close()

	hits, err := e.Search("", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_TopKClampedAndZero(t *testing.T) {
	dir := buildShard(t, []string{"A"}, []string{"some reasonably long document used only as filler content here"})
	e, err := Load(dir)
	require.NoError(t, err)
	defer e.Close()

	hits, err := e.Search("some reasonably long document used only as filler content here", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = e.Search("some reasonably long document used only as filler content here", TopKHardMax+500)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hits), TopKHardMax)
}

func joinSpaces(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}
