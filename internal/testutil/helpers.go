package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempFile creates a file with content in dir and returns its path.
func TempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("creating dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

// TempVideo writes a placeholder MP4 header and returns its path.
func TempVideo(t *testing.T, dir, name string) string {
	t.Helper()
	return TempFile(t, dir, name, "\x00\x00\x00\x18ftypmp42")
}
