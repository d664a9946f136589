package ipc

import (
	"errors"
	"fmt"
	"net/rpc"
	"strings"
	"time"

	"reelcap/internal/recordings"
	"reelcap/internal/services"
	"reelcap/internal/session"
)

func sessionState(state session.State, now time.Time) SessionState {
	return SessionState{
		Phase:          string(state.Phase),
		Mode:           string(state.Config.Mode),
		MicEnabled:     state.Config.MicEnabled,
		CameraEnabled:  state.Config.CameraEnabled,
		ArtifactID:     state.ArtifactID,
		StartedAt:      state.StartedAt,
		ElapsedSeconds: state.Elapsed(now).Seconds(),
		Progress:       state.Progress,
		StatusText:     state.StatusText,
		LastError:      state.LastError,
		ShareURL:       state.ShareURL,
	}
}

func outcomeDTO(outcome session.Outcome) Outcome {
	return Outcome{
		ArtifactID:      outcome.ArtifactID,
		ShareURL:        outcome.ShareURL,
		DurationSeconds: outcome.Duration.Seconds(),
		Bytes:           outcome.Bytes,
		Parts:           outcome.Parts,
	}
}

// FromRecording converts a ledger row into its wire form.
func FromRecording(rec *recordings.Recording) Recording {
	return Recording{
		ArtifactID:      rec.ArtifactID,
		Status:          string(rec.Status),
		Mode:            rec.Mode,
		BlobPath:        rec.BlobPath,
		BlobSize:        rec.BlobSize,
		ShareURL:        rec.ShareURL,
		ErrorMessage:    rec.ErrorMessage,
		ProgressPercent: rec.ProgressPercent,
		Attempts:        rec.Attempts,
		DurationSeconds: rec.Duration.Seconds(),
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		UploadedAt:      rec.UploadedAt,
		Retryable:       rec.Retryable(),
	}
}

// encodeError prefixes err with its taxonomy code. net/rpc only carries the
// error string across the socket.
func encodeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s", services.Code(err), err.Error())
}

// decodeError reverses encodeError for server errors; transport errors pass
// through unchanged.
func decodeError(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	text := string(serverErr)
	if !strings.HasPrefix(text, "[") {
		return errors.New(text)
	}
	end := strings.Index(text, "] ")
	if end < 0 {
		return errors.New(text)
	}
	return services.FromCode(text[1:end], text[end+2:])
}
