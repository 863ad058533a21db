// Package s3 provides an S3 implementation of the blobstore.BlobStore
// interface, used to stage shard files built by cmd/index-builder and
// fetched on demand by aggregator's shard cache.
//
// # Usage
//
//	client := s3.NewFromConfig(awsCfg)
//	store := s3.NewStore(client, "my-bucket", "shards/")
//
// # Features
//
//   - Range reads for efficient partial fetches of shard posting lists
//   - Checksummed multipart uploads for large segments
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
