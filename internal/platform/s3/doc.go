// Package s3 stores registry backups in S3-compatible object storage.
//
// Client is a thin wrapper over the AWS SDK that works with any endpoint
// (AWS, MinIO, Garage, Hetzner Object Storage). Backups builds on it to
// upload timestamped registry snapshots, list them, fetch one back, and
// prune old ones.
package s3
