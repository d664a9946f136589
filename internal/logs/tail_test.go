package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reelcap/internal/logs"
)

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelcap.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail missing file: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %#v", result)
	}
}

func TestTailHoldsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelcap.log")
	if err := os.WriteFile(path, []byte("done\npart"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	first, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(first.Lines) != 1 || first.Lines[0] != "done" || first.Offset != 5 {
		t.Fatalf("unexpected first read: %#v", first)
	}

	appendLine(t, path, "ial\n")
	second, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: first.Offset})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(second.Lines) != 1 || second.Lines[0] != "partial" {
		t.Fatalf("unexpected second read: %#v", second)
	}
}

func TestTailRestartsWhenFileReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelcap.log")
	if err := os.WriteFile(path, []byte("an older and much longer run\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}

	if err := os.WriteFile(path, []byte("new run\n"), 0o644); err != nil {
		t.Fatalf("replace log: %v", err)
	}
	next, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: result.Offset})
	if err != nil {
		t.Fatalf("tail after replace: %v", err)
	}
	if len(next.Lines) != 1 || next.Lines[0] != "new run" {
		t.Fatalf("expected replacement file from its start, got %#v", next.Lines)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelcap.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	initial, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.TailResult, 1)
	go func() {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: initial.Offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		done <- res
	}()

	time.Sleep(100 * time.Millisecond)
	appendLine(t, path, "later\n")

	select {
	case res := <-done:
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestFollowStreamsUntilCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelcap.log")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	finished := make(chan error, 1)
	go func() {
		finished <- logs.Follow(ctx, path, 1, func(line string) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, line)
			if line == "three" {
				cancel()
			}
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)
	appendLine(t, path, "three\n")

	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("follow: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("follow did not stop after cancel")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "two" || seen[1] != "three" {
		t.Fatalf("unexpected streamed lines: %#v", seen)
	}
}
