package builder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plagio/plagio/codec"
	"github.com/plagio/plagio/engine"
	"github.com/plagio/plagio/internal/resource"
	"github.com/plagio/plagio/testutil"
)

func writeCorpus(t *testing.T, lines []map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, l := range lines {
		require.NoError(t, enc.Encode(l))
	}
	return path
}

func doc(id, text string) map[string]any {
	return map[string]any{"doc_id": id, "text": text}
}

func TestBuild_ProducesLoadableShard(t *testing.T) {
	corpus := writeCorpus(t, []map[string]any{
		doc("A", "the quick brown fox jumps over the lazy dog near the river today"),
		doc("B", "completely unrelated document about something else entirely and nothing more"),
		doc("C", "the quick brown fox jumps over the lazy dog near the river today"),
	})
	outDir := t.TempDir()

	res, err := Build(context.Background(), corpus, outDir, nil, WithThreads(2))
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Stats.DocsIndexed)
	assert.Greater(t, res.Stats.UniqueHashes, int64(0))
	assert.Greater(t, res.Stats.Postings, int64(0))

	for _, name := range []string{"index_native.bin", "index_native_docids.json", "index_native_meta.json"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}

	e, err := engine.Load(outDir)
	require.NoError(t, err)
	defer e.Close()
	assert.EqualValues(t, 3, e.DocsCount())

	hits, err := e.Search("the quick brown fox jumps over the lazy dog near the river today", 5)
	require.NoError(t, err)
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.DocID
	}
	assert.ElementsMatch(t, []string{"A", "C"}, ids)
}

func TestBuild_SkipsMalformedAndShortDocuments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.jsonl")
	raw := "{\"doc_id\":\"A\",\"text\":\"the quick brown fox jumps over the lazy dog near the river today\"}\n" +
		"not json at all\n" +
		"{\"doc_id\":\"\",\"text\":\"missing doc id entirely but otherwise fine and long enough here\"}\n" +
		"{\"doc_id\":\"D\",\"text\":\"\"}\n" +
		"{\"doc_id\":\"E\",\"text\":\"too few tokens\"}\n" +
		"\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	outDir := t.TempDir()
	res, err := Build(context.Background(), path, outDir, nil, WithThreads(1))
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Stats.DocsIndexed)
	assert.EqualValues(t, 1, res.Stats.DocsSkippedJSON)
	assert.EqualValues(t, 1, res.Stats.DocsSkippedField)
	assert.EqualValues(t, 1, res.Stats.DocsSkippedEmpty)
	assert.EqualValues(t, 1, res.Stats.DocsSkippedShort)
}

func TestBuild_NoDocumentsYieldShingles_Errors(t *testing.T) {
	corpus := writeCorpus(t, []map[string]any{
		doc("A", "too few"),
		doc("B", "still too few"),
	})
	_, err := Build(context.Background(), corpus, t.TempDir(), nil)
	assert.Error(t, err)
}

func TestBuild_ForcesMultiPassMergeWithSmallFanin(t *testing.T) {
	lines := make([]map[string]any, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, doc("doc-"+strconv.Itoa(i), "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo"))
	}
	corpus := writeCorpus(t, lines)
	outDir := t.TempDir()

	res, err := Build(context.Background(), corpus, outDir, nil,
		WithThreads(4), WithRunMaxPostings(1), WithMergeFanin(2))
	require.NoError(t, err)
	assert.EqualValues(t, 40, res.Stats.DocsIndexed)
	assert.Greater(t, res.Stats.MergePasses, 0)

	e, err := engine.Load(outDir)
	require.NoError(t, err)
	defer e.Close()
	assert.EqualValues(t, 40, e.DocsCount())
}

func TestBuild_RespectsIOThrottle(t *testing.T) {
	lines := make([]map[string]any, 0, 20)
	for i := 0; i < 20; i++ {
		lines = append(lines, doc("doc-"+strconv.Itoa(i), "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo"))
	}
	corpus := writeCorpus(t, lines)
	outDir := t.TempDir()

	res, err := Build(context.Background(), corpus, outDir, nil,
		WithThreads(2), WithRunMaxPostings(4),
		WithResourceLimits(resource.Config{IOLimitBytesPerSec: 1 << 30}))
	require.NoError(t, err)
	assert.EqualValues(t, 20, res.Stats.DocsIndexed)

	e, err := engine.Load(outDir)
	require.NoError(t, err)
	defer e.Close()
	assert.EqualValues(t, 20, e.DocsCount())
}

func TestBuild_ChecksummedHeaderRoundTrips(t *testing.T) {
	corpus := writeCorpus(t, []map[string]any{
		doc("A", "the quick brown fox jumps over the lazy dog near the river today"),
	})
	outDir := t.TempDir()
	_, err := Build(context.Background(), corpus, outDir, nil, WithChecksummedHeader(true))
	require.NoError(t, err)

	ix, err := codec.LoadFile(filepath.Join(outDir, "index_native.bin"))
	require.NoError(t, err)
	defer ix.Close()
	assert.EqualValues(t, 1, ix.NDocs)
}

func TestBuild_DocsMapOptIn(t *testing.T) {
	corpus := writeCorpus(t, []map[string]any{
		doc("A", "the quick brown fox jumps over the lazy dog near the river today"),
	})
	outDir := t.TempDir()
	_, err := Build(context.Background(), corpus, outDir, nil, WithDocsMap(true))
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(outDir, "index_native_docs_map.json"))
	require.NoError(t, err)
	var m map[string]uint32
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, uint32(0), m["A"])
}

var corpusVocab = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf",
	"hotel", "india", "juliet", "kilo", "lima", "mike", "november",
	"oscar", "papa", "quebec", "romeo", "sierra", "tango", "uniform",
	"victor", "whiskey", "xray", "yankee", "zulu",
}

// TestBuild_SyntheticDuplicateCorpus builds a shard from a larger
// synthetic corpus whose DuplicateRate collapses every document onto
// one of a handful of distinct texts, then checks that querying one of
// those texts recovers every document sharing it.
func TestBuild_SyntheticDuplicateCorpus(t *testing.T) {
	rng := testutil.NewRNG(7)
	docs := rng.Corpus(30, testutil.CorpusOptions{
		Vocab:         corpusVocab,
		TokensPerDoc:  20,
		DuplicateRate: 1.0,
	})

	lines := make([]map[string]any, len(docs))
	for i, d := range docs {
		lines[i] = doc(d.DocID, d.Text)
	}
	corpus := writeCorpus(t, lines)
	outDir := t.TempDir()

	res, err := Build(context.Background(), corpus, outDir, nil, WithThreads(3))
	require.NoError(t, err)
	assert.EqualValues(t, len(docs), res.Stats.DocsIndexed)

	e, err := engine.Load(outDir)
	require.NoError(t, err)
	defer e.Close()

	var expected []string
	for _, d := range docs {
		if d.Text == docs[0].Text {
			expected = append(expected, d.DocID)
		}
	}
	require.Greater(t, len(expected), 1, "duplicate rate 1.0 should have produced more than one clone")

	hits, err := e.Search(docs[0].Text, len(docs))
	require.NoError(t, err)
	got := make([]string, len(hits))
	for i, h := range hits {
		got[i] = h.DocID
	}
	assert.Equal(t, 1.0, testutil.ComputeRecall(expected, got))
}
