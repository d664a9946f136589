package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Blob is a finished recording on disk. It is written once by the capture
// agent and afterwards only read.
type Blob struct {
	Path        string `json:"path" validate:"required"`
	Size        int64  `json:"size" validate:"gte=0"`
	ContentType string `json:"content_type" validate:"required"`
	// Truncated marks a recording whose encoder did not finalize, so the
	// container may lack its trailing index.
	Truncated bool `json:"truncated,omitempty"`
}

// Stat confirms the file still exists with the recorded size.
func (b Blob) Stat() error {
	if strings.TrimSpace(b.Path) == "" {
		return errors.New("blob: empty path")
	}
	info, err := os.Stat(b.Path)
	if err != nil {
		return fmt.Errorf("blob: stat %s: %w", b.Path, err)
	}
	if info.Size() != b.Size {
		return fmt.Errorf("blob: %s is %d bytes, expected %d", b.Path, info.Size(), b.Size)
	}
	return nil
}

// Remove deletes the blob file. A missing file is not an error.
func (b Blob) Remove() error {
	if strings.TrimSpace(b.Path) == "" {
		return nil
	}
	if err := os.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: remove %s: %w", b.Path, err)
	}
	return nil
}

// Extension returns the file extension matching the container in
// ContentType.
func (b Blob) Extension() string {
	return ExtensionFor(b.ContentType)
}
