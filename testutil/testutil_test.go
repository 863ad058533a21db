package testutil

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocab = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf",
	"hotel", "india", "juliet", "kilo", "lima", "mike", "november",
	"oscar", "papa", "quebec", "romeo", "sierra", "tango",
}

func TestCorpus_GeneratesRequestedSize(t *testing.T) {
	rng := NewRNG(4711)
	docs := rng.Corpus(50, CorpusOptions{Vocab: testVocab, TokensPerDoc: 12})
	require.Len(t, docs, 50)
	for i, d := range docs {
		assert.NotEmpty(t, d.Text)
		assert.Equal(t, "doc-"+strconv.Itoa(i), d.DocID)
	}
}

func TestCorpus_IsDeterministicForAGivenSeed(t *testing.T) {
	opts := CorpusOptions{Vocab: testVocab, TokensPerDoc: 8, DuplicateRate: 0.3}
	a := NewRNG(99).Corpus(20, opts)
	b := NewRNG(99).Corpus(20, opts)
	assert.Equal(t, a, b)
}

func TestCorpus_DuplicateRateProducesRepeatedText(t *testing.T) {
	rng := NewRNG(1)
	docs := rng.Corpus(200, CorpusOptions{Vocab: testVocab, TokensPerDoc: 6, DuplicateRate: 1.0})

	seen := make(map[string]struct{})
	for _, d := range docs[1:] {
		seen[d.Text] = struct{}{}
	}
	assert.Less(t, len(seen), len(docs)-1, "a duplicate rate of 1.0 should collapse most documents onto a handful of distinct texts")
}

func TestComputeRecall(t *testing.T) {
	assert.Equal(t, 1.0, ComputeRecall([]string{"a", "b", "c"}, []string{"a", "b", "c"}))
	assert.Equal(t, 0.0, ComputeRecall([]string{"a", "b"}, []string{"x", "y"}))
	assert.InDelta(t, 0.5, ComputeRecall([]string{"a", "b"}, []string{"a", "x"}), 1e-9)
	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
	assert.Equal(t, 0.0, ComputeRecall(nil, []string{"a"}))
}
