// Package gcs archives reminder run summaries to Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

const archivePrefix = "reminder-runs"

type storageStore struct {
	client *storage.Client
}

func (s *storageStore) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

// Archiver writes run summaries as JSON objects.
type Archiver struct {
	store  ObjectStore
	bucket string
	close  func() error
}

// NewArchiver creates an Archiver backed by a storage client. It assumes
// Application Default Credentials are configured.
func NewArchiver(ctx context.Context, bucket string) (*Archiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewArchiver: creating storage client: %w", err)
	}
	a := NewArchiverWithStore(&storageStore{client: client}, bucket)
	a.close = client.Close
	return a, nil
}

// NewArchiverWithStore creates an Archiver over an arbitrary ObjectStore.
func NewArchiverWithStore(store ObjectStore, bucket string) *Archiver {
	return &Archiver{store: store, bucket: bucket}
}

// Close releases the storage client.
func (a *Archiver) Close() error {
	if a.close != nil {
		return a.close()
	}
	return nil
}

// ObjectName returns reminder-runs/YYYY/MM/DD/<run_id>.json for a run started at startedAt (UTC).
func ObjectName(runID string, startedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", archivePrefix, startedAt.UTC().Format("2006/01/02"), runID)
}

// ArchiveRun writes v as JSON and returns its gs:// URI.
func (a *Archiver) ArchiveRun(ctx context.Context, runID string, startedAt time.Time, v interface{}) (string, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ArchiveRun: encoding: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	object := ObjectName(runID, startedAt)
	w := a.store.NewWriter(ctx, a.bucket, object, "application/json")
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveRun: writing %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveRun: finalizing %s: %w", object, err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
}
