package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
	"reelcap/internal/services/capapi"
)

const (
	StatusPreparing = "Preparing upload..."
	StatusUploading = "Uploading..."
	StatusComplete  = "Upload complete!"
	StatusFailed    = "Upload failed"
)

// Remote is the subset of the service API the pipeline drives.
type Remote interface {
	InitiateMultipart(ctx context.Context, artifactID, contentType string) (string, error)
	PresignPart(ctx context.Context, artifactID, uploadID string, partNumber int) (string, error)
	PutPart(ctx context.Context, presignedURL string, body io.Reader, size int64, contentType string) (string, error)
	CompleteMultipart(ctx context.Context, artifactID, uploadID string, parts []capapi.CompletedPart) error
	ShareURL(artifactID string) string
}

// Hooks receives pipeline events. Either field may be nil.
type Hooks struct {
	// Initiated is called once the remote upload session exists.
	Initiated func(uploadID string)
	// Progress is called with a percentage in [0, 100] and a status line.
	Progress func(percent float64, status string)
}

func (h Hooks) progress(percent float64, status string) {
	if h.Progress != nil {
		h.Progress(percent, status)
	}
}

// Result describes a completed upload.
type Result struct {
	UploadID string
	Parts    []Part
	ShareURL string
	Elapsed  time.Duration
}

// Pipeline uploads finished blobs part by part.
type Pipeline struct {
	remote   Remote
	partSize int64
	logger   *slog.Logger
}

// NewPipeline constructs a pipeline. A non-positive partSize falls back to
// DefaultPartSize.
func NewPipeline(remote Remote, partSize int64, logger *slog.Logger) *Pipeline {
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	return &Pipeline{
		remote:   remote,
		partSize: partSize,
		logger:   logging.NewComponentLogger(logger, "upload"),
	}
}

// PartSize returns the configured chunk size in bytes.
func (p *Pipeline) PartSize() int64 { return p.partSize }

// Upload transfers blob to the artifact: initiate, then presign and PUT each
// part in order, then complete. Any failure aborts the remaining steps and
// discards the acknowledged parts; complete is never called with a partial
// list.
func (p *Pipeline) Upload(ctx context.Context, artifactID string, blob media.Blob, hooks Hooks) (Result, error) {
	ctx = services.WithArtifactID(ctx, artifactID)
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()

	hooks.progress(0, StatusPreparing)
	result, err := p.run(ctx, logger, artifactID, blob, hooks)
	if err != nil {
		hooks.progress(0, StatusFailed)
		logging.ErrorWithContext(logger, "upload failed", "upload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the recording is kept locally; retry with `reelcap retry-upload`"),
		)
		return Result{}, err
	}
	result.Elapsed = time.Since(started)
	hooks.progress(100, StatusComplete)
	logger.Info("upload complete",
		logging.String(logging.FieldEventType, "upload_complete"),
		logging.String("upload_id", result.UploadID),
		logging.Int("parts", len(result.Parts)),
		logging.Int64("bytes", blob.Size),
		logging.Duration("elapsed", result.Elapsed),
		logging.String("share_url", result.ShareURL),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, artifactID string, blob media.Blob, hooks Hooks) (Result, error) {
	plan, err := PlanParts(blob.Size, p.partSize)
	if err != nil {
		return Result{}, err
	}
	if err := blob.Stat(); err != nil {
		return Result{}, services.Wrap(services.ErrIncompleteUpload, "upload", "open blob", "", err)
	}
	file, err := os.Open(blob.Path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrIncompleteUpload, "upload", "open blob", "", err)
	}
	defer file.Close()

	uploadID, err := p.remote.InitiateMultipart(ctx, artifactID, blob.ContentType)
	if err != nil {
		return Result{}, err
	}
	if hooks.Initiated != nil {
		hooks.Initiated(uploadID)
	}
	logger.Info("upload initiated",
		logging.String(logging.FieldEventType, "upload_initiated"),
		logging.String("upload_id", uploadID),
		logging.Int("parts", len(plan)),
		logging.Int64("bytes", blob.Size),
	)

	acked := make([]Part, 0, len(plan))
	total := float64(len(plan))
	for i, part := range plan {
		if err := ctx.Err(); err != nil {
			return Result{}, services.Wrap(services.ErrNetworkFailure, "upload", "transfer", "cancelled", err)
		}
		url, err := p.remote.PresignPart(ctx, artifactID, uploadID, part.Number)
		if err != nil {
			return Result{}, err
		}
		section := io.NewSectionReader(file, part.Start, part.Size())
		etag, err := p.remote.PutPart(ctx, url, section, part.Size(), blob.ContentType)
		if err != nil {
			return Result{}, fmt.Errorf("part %d of %d: %w", part.Number, len(plan), err)
		}
		part.ETag = etag
		acked = append(acked, part)
		logger.Debug("part uploaded",
			logging.Int("part", part.Number),
			logging.Int64("size", part.Size()),
			logging.String("etag", etag),
		)
		hooks.progress(float64(i+1)/total*100, StatusUploading)
	}

	if err := ValidateParts(acked, blob.Size); err != nil {
		return Result{}, err
	}
	completed := make([]capapi.CompletedPart, 0, len(acked))
	for _, part := range acked {
		completed = append(completed, capapi.CompletedPart{PartNumber: part.Number, ETag: part.ETag, Size: part.Size()})
	}
	if err := p.remote.CompleteMultipart(ctx, artifactID, uploadID, completed); err != nil {
		return Result{}, err
	}

	return Result{
		UploadID: uploadID,
		Parts:    acked,
		ShareURL: p.remote.ShareURL(artifactID),
	}, nil
}
