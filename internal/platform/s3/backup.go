package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

const (
	backupBaseName  = "edgefleet-registry-"
	backupExtension = ".db"
	timestampLayout = "20060102T150405Z"
)

// Snapshotter writes a consistent copy of the registry.
type Snapshotter interface {
	Snapshot(w io.Writer) (int64, error)
}

// Backups manages registry snapshots under one bucket prefix.
type Backups struct {
	client *Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewBackups stores snapshots in bucket under prefix.
func NewBackups(client *Client, bucket, prefix string) *Backups {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Backups{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Upload snapshots src and stores it under a timestamped key.
func (b *Backups) Upload(ctx context.Context, src Snapshotter) (Object, error) {
	log := logr.FromContextOrDiscard(ctx).WithName("backup")

	var buf bytes.Buffer
	if _, err := src.Snapshot(&buf); err != nil {
		return Object{}, fmt.Errorf("failed to snapshot registry: %w", err)
	}

	if err := b.client.EnsureBucket(ctx, b.bucket); err != nil {
		return Object{}, err
	}

	now := b.now().UTC()
	key := b.prefix + backupBaseName + now.Format(timestampLayout) + backupExtension
	if err := b.client.PutObject(ctx, b.bucket, key, buf.Bytes()); err != nil {
		return Object{}, err
	}

	log.Info("registry backed up", "bucket", b.bucket, "key", key, "bytes", buf.Len())
	return Object{Key: key, Size: int64(buf.Len()), LastModified: now}, nil
}

// List returns the stored snapshots, oldest first.
func (b *Backups) List(ctx context.Context) ([]Object, error) {
	objects, err := b.client.ListObjects(ctx, b.bucket, b.prefix+backupBaseName)
	if err != nil {
		return nil, err
	}
	out := objects[:0]
	for _, o := range objects {
		if path.Ext(o.Key) == backupExtension {
			out = append(out, o)
		}
	}
	return out, nil
}

// Download writes the snapshot stored under key to w. An empty key selects
// the newest snapshot.
func (b *Backups) Download(ctx context.Context, key string, w io.Writer) (string, error) {
	if key == "" {
		objects, err := b.List(ctx)
		if err != nil {
			return "", err
		}
		if len(objects) == 0 {
			return "", fmt.Errorf("no registry backups in bucket %s", b.bucket)
		}
		key = objects[len(objects)-1].Key
	}
	if _, err := b.client.GetObject(ctx, b.bucket, key, w); err != nil {
		return "", err
	}
	return key, nil
}

// Prune deletes all but the newest keep snapshots and returns the deleted keys.
func (b *Backups) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	objects, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(objects) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, o := range objects[:len(objects)-keep] {
		if err := b.client.DeleteObject(ctx, b.bucket, o.Key); err != nil {
			return deleted, err
		}
		deleted = append(deleted, o.Key)
	}
	return deleted, nil
}
