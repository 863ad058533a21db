// Package remote constructs blobstore.BlobStore implementations backed
// by S3 or MinIO, for the two commands (index-builder publishing a
// shard, plagio-query reading one back) that need a concrete remote
// backend rather than the blobstore interfaces alone. Kept out of the
// root blobstore package to avoid an import cycle: blobstore/s3 and
// blobstore/minio both import blobstore for its interfaces.
package remote

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	minioapi "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/plagio/plagio/blobstore"
	"github.com/plagio/plagio/blobstore/minio"
	plagios3 "github.com/plagio/plagio/blobstore/s3"
	"github.com/plagio/plagio/internal/cache"
)

// RemoteConfig names a remote backend for cmd/index-builder to publish
// shards to and cmd/plagio-query to read them back from.
type RemoteConfig struct {
	// Backend selects the wire protocol: "s3" or "minio". Required.
	Backend string
	// Bucket is the bucket (S3) or bucket name (MinIO) shards live in.
	Bucket string
	// Prefix is prepended to every blob key, isolating one corpus's
	// shards from another's within a shared bucket.
	Prefix string
	// Region is the AWS region, used only when Backend is "s3". Falls
	// back to the default credential chain's region if empty.
	Region string
	// Endpoint overrides the backend's default endpoint: an
	// S3-compatible URL for "s3" (e.g. a VPC endpoint), or the
	// host:port MinIO listens on for "minio".
	Endpoint string
	// AccessKey/SecretKey are static credentials for "minio". S3 always
	// uses the default AWS credential chain.
	AccessKey string
	SecretKey string
	// UseSSL selects http vs https for "minio".
	UseSSL bool
	// BlockCacheBytes, if > 0, wraps the resulting store in a
	// CachingStore of this size. Leave at 0 when the caller (e.g.
	// aggregator.WithBlobStore) already wraps the store itself.
	BlockCacheBytes int64
}

// Open constructs a BlobStore for cfg.Backend. Used by cmd/index-builder
// (to publish a freshly built shard) and cmd/plagio-query (to feed
// aggregator.WithBlobStore) so both commands share one remote-store
// configuration surface.
func Open(ctx context.Context, cfg RemoteConfig) (blobstore.BlobStore, error) {
	var store blobstore.BlobStore
	var err error
	switch cfg.Backend {
	case "s3":
		store, err = openS3(ctx, cfg)
	case "minio":
		store, err = openMinio(cfg)
	default:
		return nil, fmt.Errorf("blobstore/remote: unknown backend %q (want \"s3\" or \"minio\")", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.BlockCacheBytes > 0 {
		store = blobstore.NewCachingStore(store, cache.NewLRUBlockCache(cfg.BlockCacheBytes, nil), 1<<20)
	}
	return store, nil
}

func openS3(ctx context.Context, cfg RemoteConfig) (blobstore.BlobStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore/remote: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
	})
	return plagios3.NewStore(client, cfg.Bucket, cfg.Prefix), nil
}

func openMinio(cfg RemoteConfig) (blobstore.BlobStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("blobstore/remote: minio backend requires Endpoint")
	}
	client, err := minioClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("blobstore/remote: constructing minio client: %w", err)
	}
	return minio.NewStore(client, cfg.Bucket, cfg.Prefix), nil
}

func minioClient(cfg RemoteConfig) (*minioapi.Client, error) {
	return minioapi.New(cfg.Endpoint, &minioapi.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
}
