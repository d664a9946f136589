package recordings

import (
	"database/sql"
	"errors"
	"time"
)

const recordingColumns = "artifact_id, status, mode, blob_path, blob_size, content_type, upload_id, share_url, error_message, progress_percent, attempts, duration_ms, created_at, updated_at, uploaded_at"

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		artifactID  string
		status      string
		mode        string
		blobPath    sql.NullString
		blobSize    int64
		contentType sql.NullString
		uploadID    sql.NullString
		shareURL    sql.NullString
		errorMsg    sql.NullString
		progress    float64
		attempts    int
		durationMS  int64
		createdRaw  string
		updatedRaw  string
		uploadedRaw sql.NullString
	)
	if err := scanner.Scan(
		&artifactID,
		&status,
		&mode,
		&blobPath,
		&blobSize,
		&contentType,
		&uploadID,
		&shareURL,
		&errorMsg,
		&progress,
		&attempts,
		&durationMS,
		&createdRaw,
		&updatedRaw,
		&uploadedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Recording{
		ArtifactID:      artifactID,
		Status:          Status(status),
		Mode:            mode,
		BlobPath:        blobPath.String,
		BlobSize:        blobSize,
		ContentType:     contentType.String,
		UploadID:        uploadID.String,
		ShareURL:        shareURL.String,
		ErrorMessage:    errorMsg.String,
		ProgressPercent: progress,
		Attempts:        attempts,
		Duration:        time.Duration(durationMS) * time.Millisecond,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	if uploadedRaw.Valid {
		if uploaded, err := parseTimeString(uploadedRaw.String); err == nil {
			rec.UploadedAt = &uploaded
		}
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
