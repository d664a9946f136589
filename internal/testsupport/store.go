package testsupport

import (
	"context"
	"testing"

	"reelcap/internal/config"
	"reelcap/internal/media"
	"reelcap/internal/recordings"
)

// MustOpenLedger opens a recordings.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *recordings.Store {
	t.Helper()

	store, err := recordings.Open(cfg)
	if err != nil {
		t.Fatalf("recordings.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewFailedRecording seeds a retryable recording whose blob of size bytes
// lives in the staging directory.
func NewFailedRecording(t testing.TB, cfg *config.Config, store *recordings.Store, artifactID string, size int64) media.Blob {
	t.Helper()

	ctx := context.Background()
	blob := WriteBlob(t, cfg.Paths.StagingDir, artifactID, size)
	if err := store.Begin(ctx, artifactID, "screen"); err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
	if err := store.MarkUploading(ctx, artifactID, blob, 0); err != nil {
		t.Fatalf("store.MarkUploading: %v", err)
	}
	if err := store.MarkFailed(ctx, artifactID, recordings.StatusUploadFailed, "network failure"); err != nil {
		t.Fatalf("store.MarkFailed: %v", err)
	}
	return blob
}
