package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"reelcap/internal/logging"
)

// Multi publishes every event to each non-nil service in order. All services
// are attempted; their failures are aggregated.
func Multi(services ...Service) Service {
	filtered := make([]Service, 0, len(services))
	for _, svc := range services {
		if svc != nil {
			filtered = append(filtered, svc)
		}
	}
	return multiService(filtered)
}

type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var result *multierror.Error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, payload); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", event, err))
		}
	}
	return result.ErrorOrNil()
}

// NewLogService records each event as a structured log line.
func NewLogService(logger *slog.Logger) Service {
	return &logService{
		logger:  logging.NewComponentLogger(logger, "notifications"),
		sampler: logging.NewProgressSampler(10),
	}
}

type logService struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

func (l *logService) Publish(ctx context.Context, event Event, p Payload) error {
	logger := logging.WithContext(ctx, l.logger)
	attrs := []logging.Attr{logging.String(logging.FieldEventType, string(event))}
	if p.ArtifactID != "" {
		attrs = append(attrs, logging.ArtifactID(p.ArtifactID))
	}
	switch event {
	case EventRecordingStarted:
		logger.Info("recording started", logging.Args(append(attrs, logging.String("mode", p.Mode))...)...)
	case EventRecordingStopped:
		logger.Info("recording stopped", logging.Args(append(attrs, logging.Duration("duration", p.Duration))...)...)
	case EventUploadProgress:
		if !l.sampler.Sample(p.Progress, p.Status) {
			return nil
		}
		logger.Info("upload progress", logging.Args(append(attrs,
			logging.Float64("progress", p.Progress),
			logging.String("status", p.Status),
		)...)...)
	case EventRecordingFailed:
		logging.ErrorWithContext(logger, "recording failed", string(event),
			append(attrs, logging.String("reason", p.Message))...)
	case EventDeviceRemoved:
		logging.WarnWithContext(logger, "capture device removed", string(event),
			append(attrs,
				logging.String("device", p.Device),
				logging.String(logging.FieldImpact, "recording may continue without this device"),
			)...)
	default:
		logger.Info("notification", logging.Args(attrs...)...)
	}
	return nil
}
