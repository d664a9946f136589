package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// spool buffers encoder output into numbered segment files, rotating to a
// new file once the current one reaches limit bytes.
type spool struct {
	dir   string
	limit int64

	mu       sync.Mutex
	current  *os.File
	written  int64
	total    int64
	segments []string
	closed   bool
}

func newSpool(dir string, limit int64) (*spool, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("spool: segment limit must be positive")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("spool: create %s: %w", dir, err)
	}
	return &spool{dir: dir, limit: limit}, nil
}

func (s *spool) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, os.ErrClosed
	}
	n := 0
	for len(p) > 0 {
		if s.current == nil || s.written >= s.limit {
			if err := s.rotate(); err != nil {
				return n, err
			}
		}
		chunk := p
		if room := s.limit - s.written; int64(len(chunk)) > room {
			chunk = chunk[:room]
		}
		w, err := s.current.Write(chunk)
		n += w
		s.written += int64(w)
		s.total += int64(w)
		if err != nil {
			return n, fmt.Errorf("spool: write segment: %w", err)
		}
		p = p[w:]
	}
	return n, nil
}

func (s *spool) rotate() error {
	if s.current != nil {
		if err := s.current.Close(); err != nil {
			return fmt.Errorf("spool: close segment: %w", err)
		}
	}
	path := filepath.Join(s.dir, fmt.Sprintf("segment-%05d.part", len(s.segments)+1))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("spool: open segment: %w", err)
	}
	s.current = file
	s.written = 0
	s.segments = append(s.segments, path)
	return nil
}

// Close flushes the open segment. Further writes fail.
func (s *spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	return err
}

// Segments lists segment files in write order.
func (s *spool) Segments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.segments...)
}

// Size is the total number of bytes written.
func (s *spool) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Discard closes and removes every segment.
func (s *spool) Discard() error {
	_ = s.Close()
	return os.RemoveAll(s.dir)
}
