// Package blobstore implements the BlobStore collaborator: fetching CSV
// bytes for a job's object key from object storage.
package blobstore

import "context"

// BlobStore fetches the raw bytes of an object by key.
type BlobStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}
