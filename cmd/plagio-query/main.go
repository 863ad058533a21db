// Command plagio-query is a debug harness for the multi-shard
// aggregator: it loads the shard directories named on the command line
// and runs ad-hoc queries read one per line from stdin, printing the
// aggregator's JSON result to stdout.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/plagio/plagio"
	"github.com/plagio/plagio/aggregator"
	"github.com/plagio/plagio/blobstore/remote"
)

func main() {
	topK := flag.Int("k", 10, "number of hits to return per query")
	debug := flag.Bool("debug", false, "include per-shard statistics in the result")
	remoteBackend := flag.String("remote-store", "", `remote backend for shard args ("s3" or "minio"); empty means shard args are local directories`)
	bucket := flag.String("bucket", "", "bucket name, required with -remote-store")
	prefix := flag.String("prefix", "", "root key prefix shared by every shard in the bucket")
	endpoint := flag.String("endpoint", "", "backend endpoint override (MinIO host:port, or an S3-compatible URL)")
	region := flag.String("region", "", "AWS region, only used with -remote-store=s3")
	accessKey := flag.String("access-key", "", "static access key, only used with -remote-store=minio")
	secretKey := flag.String("secret-key", "", "static secret key, only used with -remote-store=minio")
	useSSL := flag.Bool("use-ssl", true, "use https, only used with -remote-store=minio")
	stagingDir := flag.String("staging-dir", "", "local directory remote shards are staged into before loading")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-k N] [-debug] [-remote-store s3|minio ...] <shard_dir> [shard_dir ...]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "reads one query per line from stdin, prints the aggregator's JSON result per line")
		fmt.Fprintln(os.Stderr, "with -remote-store set, shard args name blob-store key prefixes instead of local dirs")
		flag.PrintDefaults()
	}
	flag.Parse()

	dirs := flag.Args()
	if len(dirs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := plagio.NewTextLogger(logLevel())
	aggOpts := []aggregator.Option{aggregator.WithDebug(*debug)}

	ctx := context.Background()

	if *remoteBackend != "" {
		store, err := remote.Open(ctx, remote.RemoteConfig{
			Backend:   *remoteBackend,
			Bucket:    *bucket,
			Prefix:    *prefix,
			Region:    *region,
			Endpoint:  *endpoint,
			AccessKey: *accessKey,
			SecretKey: *secretKey,
			UseSSL:    *useSSL,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		aggOpts = append(aggOpts, aggregator.WithBlobStore(store, *stagingDir))
	}

	agg := aggregator.New(log, aggOpts...)
	defer agg.Close()
	enc := json.NewEncoder(os.Stdout)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		res, err := agg.SearchMany(ctx, query, *topK, dirs)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if err := enc.Encode(res); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if os.Getenv("SEG_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
