package aggregator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plagio/plagio/blobstore"
	"github.com/plagio/plagio/builder"
)

const sharedText = "the quick brown fox jumps over the lazy dog near the river today"

func buildTestShard(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus.jsonl")

	f, err := os.Create(corpus)
	require.NoError(t, err)
	enc := json.NewEncoder(f)
	for id, text := range docs {
		require.NoError(t, enc.Encode(map[string]string{"doc_id": id, "text": text}))
	}
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "shard")
	_, err = builder.Build(context.Background(), corpus, out, nil, builder.WithThreads(1))
	require.NoError(t, err)
	return out
}

func TestSearchMany_MergesAcrossShardsAndDedups(t *testing.T) {
	shardA := buildTestShard(t, map[string]string{
		"A": sharedText,
		"B": "completely unrelated document about something else entirely now",
	})
	shardB := buildTestShard(t, map[string]string{
		"A": sharedText,
		"C": "yet another unrelated document discussing other matters today",
	})

	agg := New(nil)
	defer agg.Close()

	res, err := agg.SearchMany(context.Background(), sharedText, 5, []string{shardA, shardB})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 2, res.DirsOK)
	assert.Equal(t, 0, res.DirsFailed)

	var docA *Hit
	for i := range res.Hits {
		if res.Hits[i].DocID == "A" {
			docA = &res.Hits[i]
		}
	}
	require.NotNil(t, docA, "doc A should be deduped across both shards into one hit")
	assert.Equal(t, 2, docA.FoundIn)
}

func TestSearchMany_IsolatesShardFailures(t *testing.T) {
	shardA := buildTestShard(t, map[string]string{"A": sharedText})
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	agg := New(nil, WithDebug(true))
	defer agg.Close()

	res, err := agg.SearchMany(context.Background(), sharedText, 5, []string{shardA, missing})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.DirsOK)
	assert.Equal(t, 1, res.DirsFailed)
	assert.Len(t, res.ShardStats, 2)
}

func TestSearchMany_BadArguments(t *testing.T) {
	agg := New(nil)
	defer agg.Close()

	res, err := agg.SearchMany(context.Background(), "", 5, []string{"x"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, "bad_request", res.Error.Code)

	res, err = agg.SearchMany(context.Background(), sharedText, 0, []string{"x"})
	require.NoError(t, err)
	assert.False(t, res.OK)

	res, err = agg.SearchMany(context.Background(), sharedText, 5, nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 0, res.Count)
}

func TestSearchMany_TooManyShards(t *testing.T) {
	dirs := make([]string, 3)
	for i := range dirs {
		dirs[i] = "irrelevant"
	}
	agg := New(nil, WithMaxShards(2))
	defer agg.Close()

	res, err := agg.SearchMany(context.Background(), sharedText, 5, dirs)
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
}

func TestShardCache_EvictsLRUButSkipsPinned(t *testing.T) {
	c := newShardCache(Options{CacheMax: 1, LoadRetryMS: 1000})
	e1 := c.pin("dir1")
	c.touch("dir1")
	c.unpin(e1)

	e2 := c.pin("dir2")
	c.touch("dir2")

	c.mu.Lock()
	_, stillCached := c.entries["dir1"]
	c.mu.Unlock()
	assert.False(t, stillCached, "dir1 should have been evicted once dir2 was pinned and cache max is 1")

	c.unpin(e2)
}

func TestSearchMany_StagesShardFromBlobStore(t *testing.T) {
	localShard := buildTestShard(t, map[string]string{"A": sharedText})

	store := blobstore.NewMemoryStore()
	const prefix = "shards/001"
	for _, name := range blobstore.ShardFiles {
		data, err := os.ReadFile(filepath.Join(localShard, name))
		require.NoError(t, err)
		require.NoError(t, store.Put(context.Background(), prefix+"/"+name, data))
	}

	agg := New(nil, WithBlobStore(store, t.TempDir()))
	defer agg.Close()

	res, err := agg.SearchMany(context.Background(), sharedText, 5, []string{prefix})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.DirsOK)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "A", res.Hits[0].DocID)
}

func TestWithBlobStore_WrapsStoreInBlockCache(t *testing.T) {
	store := blobstore.NewMemoryStore()
	agg := New(nil, WithBlobStore(store, t.TempDir()))
	defer agg.Close()

	_, ok := agg.opts.Store.(*blobstore.CachingStore)
	assert.True(t, ok, "Store should be wrapped in a CachingStore by default")
}

func TestWithBlockCache_ZeroDisablesWrapping(t *testing.T) {
	store := blobstore.NewMemoryStore()
	agg := New(nil, WithBlobStore(store, t.TempDir()), WithBlockCache(0))
	defer agg.Close()

	assert.Same(t, store, agg.opts.Store)
}

func TestLocalK_ScalesWithShardCount(t *testing.T) {
	assert.Equal(t, 40, localK(10, 8))
	assert.Equal(t, 30, localK(10, 64))
	assert.Equal(t, 20, localK(10, 512))
	assert.Equal(t, 10, localK(10, 1000))
}
