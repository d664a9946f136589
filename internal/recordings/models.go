package recordings

import (
	"strings"
	"time"

	"reelcap/internal/media"
)

// Status is the lifecycle state of a recording in the ledger.
type Status string

const (
	StatusRecording    Status = "recording"
	StatusUploading    Status = "uploading"
	StatusUploaded     Status = "uploaded"
	StatusUploadFailed Status = "upload_failed"
	StatusDiscarded    Status = "discarded"
)

var statusSet = map[Status]struct{}{
	StatusRecording:    {},
	StatusUploading:    {},
	StatusUploaded:     {},
	StatusUploadFailed: {},
	StatusDiscarded:    {},
}

// ParseStatus converts a string into a known Status. Dashes are accepted in
// place of underscores.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[Status(normalized)]
	return Status(normalized), ok
}

// Recording is one ledger row, keyed by the server-assigned artifact id.
type Recording struct {
	ArtifactID      string
	Status          Status
	Mode            string
	BlobPath        string
	BlobSize        int64
	ContentType     string
	UploadID        string
	ShareURL        string
	ErrorMessage    string
	ProgressPercent float64
	Attempts        int
	Duration        time.Duration
	CreatedAt       time.Time
	UpdatedAt       time.Time
	UploadedAt      *time.Time
}

// Blob returns the retained media file, if the row still references one.
func (r *Recording) Blob() (media.Blob, bool) {
	if r == nil || r.BlobPath == "" {
		return media.Blob{}, false
	}
	return media.Blob{Path: r.BlobPath, Size: r.BlobSize, ContentType: r.ContentType}, true
}

// Retryable reports whether RetryUpload may be run for the recording.
func (r *Recording) Retryable() bool {
	if r == nil {
		return false
	}
	return r.Status == StatusUploadFailed && r.BlobPath != ""
}
