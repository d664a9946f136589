package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ConcatFiles writes the contents of srcs, in order, to dst and returns the
// number of bytes written. dst is written to a temporary sibling and renamed
// into place so a partially assembled file is never visible under its final
// name.
func ConcatFiles(dst string, srcs []string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	var total int64
	for _, src := range srcs {
		n, err := appendFile(tmp, src)
		total += n
		if err != nil {
			cleanup()
			return total, err
		}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return total, fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return total, fmt.Errorf("close %s: %w", dst, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return total, fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return total, fmt.Errorf("rename into %s: %w", dst, err)
	}
	return total, nil
}

func appendFile(dst io.Writer, src string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	n, err := io.Copy(dst, in)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", src, err)
	}
	return n, nil
}
