// Package storage holds recorded takes as path-addressed objects.
package storage

import (
	"context"
	"errors"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is a path-addressed blob store. Paths are relative to the
// bucket and look like "<folder>/<id>-<slug>.<ext>".
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
	// Remove deletes every path it can and returns the ones it removed.
	Remove(ctx context.Context, paths ...string) ([]string, error)
	PublicURL(path string) string
	Bucket() string
}

const cacheControl = "max-age=3600"
