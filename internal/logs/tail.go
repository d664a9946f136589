package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	pollInterval  = 250 * time.Millisecond
	maxLineLength = 1024 * 1024
)

// TailOptions selects which lines Tail returns. A negative Offset means
// "the last Limit lines"; otherwise reading resumes at Offset.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. A missing file yields no lines and a zero
// offset. With Follow set, Tail polls for up to Wait when nothing new is
// available yet.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	var (
		result TailResult
		err    error
	)
	if opts.Offset < 0 {
		result, err = readLast(path, opts.Limit)
	} else {
		result, err = readFrom(path, opts.Offset)
	}
	if err != nil || len(result.Lines) > 0 || !opts.Follow || opts.Wait == 0 {
		return result, err
	}
	return waitForLines(ctx, path, result.Offset, opts.Wait)
}

// Follow emits the last limit lines of path and then every line appended
// afterwards until ctx is cancelled or emit fails.
func Follow(ctx context.Context, path string, limit int, emit func(string) error) error {
	result, err := Tail(ctx, path, TailOptions{Offset: -1, Limit: limit})
	for {
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		for _, line := range result.Lines {
			if emitErr := emit(line); emitErr != nil {
				return emitErr
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		result, err = Tail(ctx, path, TailOptions{Offset: result.Offset, Follow: true, Wait: time.Minute})
	}
}

func open(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	return file, info.Size(), nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return scanner
}

func readLast(path string, limit int) (TailResult, error) {
	file, size, err := open(path)
	if err != nil || file == nil {
		return TailResult{}, err
	}
	defer file.Close()
	if limit <= 0 {
		return TailResult{Offset: size}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	scanner := newScanner(io.LimitReader(file, size))
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range lines {
		lines[i] = ring[(start+i)%limit]
	}
	return TailResult{Lines: lines, Offset: size}, nil
}

// readFrom returns complete lines after offset. A file smaller than offset
// has been replaced, so reading restarts at its beginning. A trailing partial
// line is left for the next read.
func readFrom(path string, offset int64) (TailResult, error) {
	file, size, err := open(path)
	if err != nil || file == nil {
		return TailResult{}, err
	}
	defer file.Close()
	if offset > size {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	result := TailResult{Offset: offset}
	reader := bufio.NewReaderSize(io.LimitReader(file, size-offset), 64*1024)
	for {
		chunk, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read log file: %w", err)
		}
		result.Offset += int64(len(chunk))
		line := chunk[:len(chunk)-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		result.Lines = append(result.Lines, line)
	}
	return result, nil
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}
		result, err := readFrom(path, offset)
		if err != nil || len(result.Lines) > 0 || time.Now().After(deadline) {
			return result, err
		}
		offset = result.Offset
	}
}
