package testsupport

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"reelcap/internal/media"
)

// WriteBlob creates a webm blob of size bytes in dir and returns it. Byte i
// holds i%251 so a part's content identifies its offset in the recording.
func WriteBlob(t testing.TB, dir, name string, size int64) media.Blob {
	t.Helper()

	blob := media.Blob{
		Path:        filepath.Join(dir, name+media.ExtensionFor("video/webm")),
		Size:        size,
		ContentType: "video/webm",
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	f, err := os.Create(blob.Path)
	if err != nil {
		t.Fatalf("create blob: %v", err)
	}
	w := bufio.NewWriter(f)
	for i := int64(0); i < size; i++ {
		_ = w.WriteByte(byte(i % 251))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		t.Fatalf("write blob: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close blob: %v", err)
	}
	return blob
}
