package gcs

import (
	"context"
	"io"
)

// ObjectStore opens writers for objects in cloud storage.
// This interface enables mocking and testing of storage functionality.
type ObjectStore interface {
	// NewWriter returns a writer for bucket/object. The object is committed on Close.
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
}
