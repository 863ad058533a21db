package blobstore

import (
	"context"
	"os"
	"path"
	"path/filepath"
)

// ShardFiles are the three files builder.Build writes to a shard
// directory; engine.Load reads the first two. StageShard fetches exactly
// these from a BlobStore prefix.
var ShardFiles = []string{
	"index_native.bin",
	"index_native_docids.json",
	"index_native_meta.json",
}

// StageShard downloads the shard files under prefix from store into
// localDir, so a remote (S3/MinIO) shard can be handed to engine.Load,
// which only ever reads from a local path. Every file in ShardFiles is
// required: the first one that cannot be read fails the whole stage.
func StageShard(ctx context.Context, store BlobStore, prefix, localDir string) error {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return err
	}
	for _, name := range ShardFiles {
		data, err := ReadAll(ctx, store, path.Join(prefix, name))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(localDir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
