// Command index-builder reads a JSONL corpus and writes a binary CSR
// shard to a target directory.
//
// Usage:
//
//	index-builder <corpus_jsonl> <out_dir>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/plagio/plagio"
	"github.com/plagio/plagio/blobstore"
	"github.com/plagio/plagio/blobstore/remote"
	"github.com/plagio/plagio/builder"
)

// logLevel honors SEG_DEBUG for parity with the aggregator CLI; the
// builder itself only ever logs one build-completion line.
func logLevel() slog.Level {
	if os.Getenv("SEG_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func main() {
	remoteBackend := flag.String("publish-to", "", `after building, upload the shard to this remote backend ("s3" or "minio")`)
	bucket := flag.String("bucket", "", "bucket name, required with -publish-to")
	prefix := flag.String("prefix", "", "key prefix this shard is published under")
	endpoint := flag.String("endpoint", "", "backend endpoint override (MinIO host:port, or an S3-compatible URL)")
	region := flag.String("region", "", "AWS region, only used with -publish-to=s3")
	accessKey := flag.String("access-key", "", "static access key, only used with -publish-to=minio")
	secretKey := flag.String("secret-key", "", "static secret key, only used with -publish-to=minio")
	useSSL := flag.Bool("use-ssl", true, "use https, only used with -publish-to=minio")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-publish-to s3|minio ...] <corpus_jsonl> <out_dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	corpusPath, outDir := flag.Arg(0), flag.Arg(1)

	ctx := context.Background()
	level := plagio.NewTextLogger(logLevel())
	res, err := builder.Build(ctx, corpusPath, outDir, level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("indexed %d documents, %d unique shingles, %d postings, %d merge passes\n",
		res.Stats.DocsIndexed, res.Stats.UniqueHashes, res.Stats.Postings, res.Stats.MergePasses)

	if *remoteBackend != "" {
		if err := publish(ctx, outDir, remote.RemoteConfig{
			Backend:   *remoteBackend,
			Bucket:    *bucket,
			Prefix:    *prefix,
			Region:    *region,
			Endpoint:  *endpoint,
			AccessKey: *accessKey,
			SecretKey: *secretKey,
			UseSSL:    *useSSL,
		}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("published shard to %s bucket %q prefix %q\n", *remoteBackend, *bucket, *prefix)
	}
}

// publish uploads the three shard files builder.Build writes to store,
// the mirror image of blobstore.StageShard's download.
func publish(ctx context.Context, outDir string, cfg remote.RemoteConfig) error {
	store, err := remote.Open(ctx, cfg)
	if err != nil {
		return err
	}
	for _, name := range blobstore.ShardFiles {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			return err
		}
		if err := store.Put(ctx, name, data); err != nil {
			return fmt.Errorf("publishing %s: %w", name, err)
		}
	}
	return nil
}
