package recordings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reelcap/internal/media"
	"reelcap/internal/services"
)

// Begin records a freshly started capture.
func (s *Store) Begin(ctx context.Context, artifactID, mode string) error {
	if strings.TrimSpace(artifactID) == "" {
		return errors.New("recordings: artifact id is required")
	}
	now := formatTime(time.Now())
	_, err := s.exec(ctx,
		`INSERT INTO recordings (artifact_id, status, mode, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		artifactID, StatusRecording, mode, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// MarkUploading attaches the finished blob and starts a new upload attempt.
// A zero duration keeps the stored one, so retries leave it intact.
func (s *Store) MarkUploading(ctx context.Context, artifactID string, blob media.Blob, duration time.Duration) error {
	res, err := s.exec(ctx,
		`UPDATE recordings
		 SET status = ?, blob_path = ?, blob_size = ?, content_type = ?,
		     upload_id = NULL, error_message = NULL, progress_percent = 0,
		     attempts = attempts + 1,
		     duration_ms = CASE WHEN ? > 0 THEN ? ELSE duration_ms END,
		     updated_at = ?
		 WHERE artifact_id = ?`,
		StatusUploading, blob.Path, blob.Size, nullableString(blob.ContentType),
		duration.Milliseconds(), duration.Milliseconds(),
		formatTime(time.Now()), artifactID,
	)
	return requireRow(res, err, "mark uploading", artifactID)
}

// SetUploadID stores the multipart session id once the upload is initiated.
func (s *Store) SetUploadID(ctx context.Context, artifactID, uploadID string) error {
	res, err := s.exec(ctx,
		`UPDATE recordings SET upload_id = ?, updated_at = ? WHERE artifact_id = ?`,
		nullableString(uploadID), formatTime(time.Now()), artifactID,
	)
	return requireRow(res, err, "set upload id", artifactID)
}

// UpdateProgress stores the latest upload percentage.
func (s *Store) UpdateProgress(ctx context.Context, artifactID string, percent float64) error {
	res, err := s.exec(ctx,
		`UPDATE recordings SET progress_percent = ?, updated_at = ? WHERE artifact_id = ?`,
		percent, formatTime(time.Now()), artifactID,
	)
	return requireRow(res, err, "update progress", artifactID)
}

// MarkUploaded records a completed upload. When keepBlob is false the blob
// reference is cleared because the caller has deleted the file.
func (s *Store) MarkUploaded(ctx context.Context, artifactID, shareURL string, keepBlob bool) error {
	now := formatTime(time.Now())
	query := `UPDATE recordings
		 SET status = ?, share_url = ?, error_message = NULL, progress_percent = 100,
		     uploaded_at = ?, updated_at = ?`
	if !keepBlob {
		query += `, blob_path = NULL`
	}
	query += ` WHERE artifact_id = ?`
	res, err := s.exec(ctx, query, StatusUploaded, nullableString(shareURL), now, now, artifactID)
	return requireRow(res, err, "mark uploaded", artifactID)
}

// MarkFailed records a terminal failure with status StatusUploadFailed or
// StatusDiscarded.
func (s *Store) MarkFailed(ctx context.Context, artifactID string, status Status, message string) error {
	if status != StatusUploadFailed && status != StatusDiscarded {
		return fmt.Errorf("recordings: %q is not a failure status", status)
	}
	res, err := s.exec(ctx,
		`UPDATE recordings SET status = ?, error_message = ?, progress_percent = 0, updated_at = ? WHERE artifact_id = ?`,
		status, nullableString(message), formatTime(time.Now()), artifactID,
	)
	return requireRow(res, err, "mark failed", artifactID)
}

// Get returns the recording or nil when the id is unknown.
func (s *Store) Get(ctx context.Context, artifactID string) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE artifact_id = ?`, artifactID)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// List returns recordings newest first. A non-positive limit returns all
// rows; statuses filter when given.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at DESC, artifact_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Remove deletes the row. It reports whether a row existed.
func (s *Store) Remove(ctx context.Context, artifactID string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM recordings WHERE artifact_id = ?`, artifactID)
	if err != nil {
		return false, fmt.Errorf("remove recording: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecoverInterrupted settles rows left mid-flight by a previous daemon.
// Interrupted captures are discarded; interrupted uploads that still
// reference a blob become retryable.
func (s *Store) RecoverInterrupted(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	var total int64

	res, err := s.exec(ctx,
		`UPDATE recordings SET status = ?, error_message = ?, updated_at = ?
		 WHERE status = ? AND blob_path IS NOT NULL`,
		StatusUploadFailed, "daemon stopped during upload", now, StatusUploading,
	)
	if err != nil {
		return 0, fmt.Errorf("recover uploads: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = s.exec(ctx,
		`UPDATE recordings SET status = ?, error_message = ?, updated_at = ?
		 WHERE status IN (?, ?)`,
		StatusDiscarded, "daemon stopped during recording", now, StatusRecording, StatusUploading,
	)
	if err != nil {
		return total, fmt.Errorf("recover recordings: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}

func requireRow(res sql.Result, err error, op, artifactID string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "recordings", op, "artifact "+artifactID, nil)
	}
	return nil
}
