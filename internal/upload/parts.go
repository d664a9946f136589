package upload

import (
	"fmt"
	"slices"
	"strings"

	"reelcap/internal/services"
)

// DefaultPartSize is the multipart chunk size used when none is configured.
const DefaultPartSize int64 = 5 * 1024 * 1024

// Part is one contiguous byte range of the blob, [Start, End).
type Part struct {
	Number int    `json:"part_number"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
	ETag   string `json:"etag,omitempty"`
}

// Size is the number of bytes in the range.
func (p Part) Size() int64 { return p.End - p.Start }

// PlanParts splits size bytes into ceil(size/partSize) contiguous ranges
// numbered from 1. Every part except the last is exactly partSize bytes.
func PlanParts(size, partSize int64) ([]Part, error) {
	if size <= 0 {
		return nil, services.Wrap(services.ErrIncompleteUpload, "upload", "plan parts", "blob is empty", nil)
	}
	if partSize <= 0 {
		return nil, fmt.Errorf("upload: part size must be positive, got %d", partSize)
	}
	count := (size + partSize - 1) / partSize
	parts := make([]Part, 0, count)
	for i := int64(0); i < count; i++ {
		start := i * partSize
		parts = append(parts, Part{
			Number: int(i + 1),
			Start:  start,
			End:    min(start+partSize, size),
		})
	}
	return parts, nil
}

// ValidateParts checks that the acknowledged parts, sorted by number, are
// exactly 1..N with no gaps, each carries an ETag, and their ranges tile
// [0, size).
func ValidateParts(parts []Part, size int64) error {
	if len(parts) == 0 {
		return services.Wrap(services.ErrIncompleteUpload, "upload", "validate parts", "no parts acknowledged", nil)
	}
	sorted := slices.Clone(parts)
	slices.SortFunc(sorted, func(a, b Part) int { return a.Number - b.Number })

	var offset int64
	for i, part := range sorted {
		if part.Number != i+1 {
			return services.Wrap(services.ErrIncompleteUpload, "upload", "validate parts",
				fmt.Sprintf("expected part %d, found %d", i+1, part.Number), nil)
		}
		if strings.TrimSpace(part.ETag) == "" {
			return services.Wrap(services.ErrIncompleteUpload, "upload", "validate parts",
				fmt.Sprintf("part %d has no etag", part.Number), nil)
		}
		if part.Start != offset || part.End <= part.Start {
			return services.Wrap(services.ErrIncompleteUpload, "upload", "validate parts",
				fmt.Sprintf("part %d covers [%d,%d), expected start %d", part.Number, part.Start, part.End, offset), nil)
		}
		offset = part.End
	}
	if offset != size {
		return services.Wrap(services.ErrIncompleteUpload, "upload", "validate parts",
			fmt.Sprintf("parts cover %d bytes, blob has %d", offset, size), nil)
	}
	return nil
}
