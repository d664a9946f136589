package recordings_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"reelcap/internal/media"
	"reelcap/internal/recordings"
	"reelcap/internal/services"
	"reelcap/internal/testsupport"
)

func TestLedgerLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	if err := store.Begin(ctx, "art-1", "window"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	blob := media.Blob{Path: "/tmp/art-1.webm", Size: 12, ContentType: "video/webm"}
	if err := store.MarkUploading(ctx, "art-1", blob, 90*time.Second); err != nil {
		t.Fatalf("MarkUploading: %v", err)
	}
	if err := store.SetUploadID(ctx, "art-1", "up-1"); err != nil {
		t.Fatalf("SetUploadID: %v", err)
	}
	if err := store.UpdateProgress(ctx, "art-1", 50); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	rec, err := store.Get(ctx, "art-1")
	if err != nil || rec == nil {
		t.Fatalf("Get: %v, %v", rec, err)
	}
	if rec.Status != recordings.StatusUploading || rec.UploadID != "up-1" || rec.ProgressPercent != 50 {
		t.Fatalf("unexpected row %+v", rec)
	}
	if rec.Attempts != 1 || rec.Duration != 90*time.Second || rec.Mode != "window" {
		t.Fatalf("unexpected row %+v", rec)
	}
	if got, ok := rec.Blob(); !ok || got != blob {
		t.Fatalf("Blob() = %+v, %v", got, ok)
	}

	if err := store.MarkUploaded(ctx, "art-1", "https://cap.so/s/art-1", false); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}
	rec, _ = store.Get(ctx, "art-1")
	if rec.Status != recordings.StatusUploaded || rec.ShareURL != "https://cap.so/s/art-1" || rec.ProgressPercent != 100 {
		t.Fatalf("unexpected row %+v", rec)
	}
	if rec.BlobPath != "" || rec.UploadedAt == nil {
		t.Fatalf("expected blob cleared and uploaded_at set: %+v", rec)
	}
	if rec.Retryable() {
		t.Fatal("uploaded recording should not be retryable")
	}
}

func TestRetryKeepsDurationAndCountsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	blob := testsupport.NewFailedRecording(t, cfg, store, "art-2", 64)
	rec, _ := store.Get(ctx, "art-2")
	if !rec.Retryable() || rec.ErrorMessage != "network failure" {
		t.Fatalf("seeded row not retryable: %+v", rec)
	}

	if err := store.MarkUploading(ctx, "art-2", blob, 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkUploading(ctx, "art-2", blob, 0); err != nil {
		t.Fatal(err)
	}
	rec, _ = store.Get(ctx, "art-2")
	if rec.Attempts != 3 || rec.Duration != 5*time.Second || rec.ErrorMessage != "" {
		t.Fatalf("unexpected row %+v", rec)
	}
}

func TestUpdatesOnUnknownArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	if err := store.UpdateProgress(ctx, "missing", 10); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("UpdateProgress err = %v", err)
	}
	if err := store.MarkFailed(ctx, "missing", recordings.StatusUploaded, "x"); err == nil {
		t.Fatal("expected non-failure status to be rejected")
	}
	rec, err := store.Get(ctx, "missing")
	if err != nil || rec != nil {
		t.Fatalf("Get(missing) = %v, %v", rec, err)
	}
	if err := store.Begin(ctx, " ", "screen"); err == nil {
		t.Fatal("expected empty artifact id to be rejected")
	}
}

func TestListFiltersAndLimits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Begin(ctx, id, "screen"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := store.MarkFailed(ctx, "b", recordings.StatusDiscarded, "stop failed"); err != nil {
		t.Fatal(err)
	}

	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 3 || all[0].ArtifactID != "c" {
		t.Fatalf("List all = %v, %v", all, err)
	}
	limited, _ := store.List(ctx, 2)
	if len(limited) != 2 {
		t.Fatalf("limit ignored: %d rows", len(limited))
	}
	discarded, _ := store.List(ctx, 0, recordings.StatusDiscarded)
	if len(discarded) != 1 || discarded[0].ArtifactID != "b" {
		t.Fatalf("filtered = %v", discarded)
	}

	removed, err := store.Remove(ctx, "b")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	removed, _ = store.Remove(ctx, "b")
	if removed {
		t.Fatal("second remove should report false")
	}
}

func TestRecoverInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	if err := store.Begin(ctx, "capturing", "screen"); err != nil {
		t.Fatal(err)
	}
	if err := store.Begin(ctx, "uploading", "screen"); err != nil {
		t.Fatal(err)
	}
	blob := media.Blob{Path: "/tmp/uploading.webm", Size: 1, ContentType: "video/webm"}
	if err := store.MarkUploading(ctx, "uploading", blob, time.Second); err != nil {
		t.Fatal(err)
	}

	n, err := store.RecoverInterrupted(ctx)
	if err != nil || n != 2 {
		t.Fatalf("RecoverInterrupted = %d, %v", n, err)
	}
	capturing, _ := store.Get(ctx, "capturing")
	uploading, _ := store.Get(ctx, "uploading")
	if capturing.Status != recordings.StatusDiscarded {
		t.Fatalf("capturing status = %s", capturing.Status)
	}
	if uploading.Status != recordings.StatusUploadFailed || !uploading.Retryable() {
		t.Fatalf("uploading row = %+v", uploading)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	path := store.Path()
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := recordings.OpenPath(path); !errors.Is(err, recordings.ErrSchemaMismatch) {
		t.Fatalf("OpenPath err = %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want recordings.Status
		ok   bool
	}{
		{in: "uploaded", want: recordings.StatusUploaded, ok: true},
		{in: " Upload-Failed ", want: recordings.StatusUploadFailed, ok: true},
		{in: "DISCARDED", want: recordings.StatusDiscarded, ok: true},
		{in: "", ok: false},
		{in: "pending", ok: false},
	}
	for _, tt := range tests {
		got, ok := recordings.ParseStatus(tt.in)
		if ok != tt.ok {
			t.Fatalf("ParseStatus(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if ok && got != tt.want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
