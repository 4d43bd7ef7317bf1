// Package blobstore keeps record assets as opaque blobs, either in an
// S3-compatible bucket or in a go-billy file system.
package blobstore

import (
	"context"
	"path"
)

// Store saves and loads blobs by key. Get returns common.ErrorNotFound for
// an unknown key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// AssetKey is the key of the asset with checksum of record id.
func AssetKey(userID, zone, id, checksum string) string {
	return path.Join(userID, zone, id, checksum)
}
