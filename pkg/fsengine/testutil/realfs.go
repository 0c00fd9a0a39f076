package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/arthur-debert/fsengine/pkg/fsengine/filesystem"
)

// RealFSTestHelper provides utilities for testing against a real temporary
// directory. Unix-only; tests are skipped on Windows.
type RealFSTestHelper struct {
	t       *testing.T
	tempDir string
	fs      *filesystem.OSFileSystem
}

// NewRealFSTestHelper creates a new real filesystem test helper
func NewRealFSTestHelper(t *testing.T) *RealFSTestHelper {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fsengine tests need a unix filesystem")
	}
	return &RealFSTestHelper{
		t:       t,
		tempDir: t.TempDir(),
		fs:      filesystem.NewOSFileSystem(""),
	}
}

// FileSystem returns the local backend
func (h *RealFSTestHelper) FileSystem() *filesystem.OSFileSystem {
	return h.fs
}

// TempDir returns the temporary directory path
func (h *RealFSTestHelper) TempDir() string {
	return h.tempDir
}

// Path joins elements onto the temporary directory.
func (h *RealFSTestHelper) Path(elem ...string) string {
	return filepath.Join(append([]string{h.tempDir}, elem...)...)
}

// WriteFile creates a file with content, creating parents as needed, and
// returns its absolute path.
func (h *RealFSTestHelper) WriteFile(rel, content string) string {
	h.t.Helper()
	p := h.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		h.t.Fatalf("Failed to create parent of %s: %v", p, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		h.t.Fatalf("Failed to write %s: %v", p, err)
	}
	return p
}

// Mkdir creates a directory tree and returns its absolute path.
func (h *RealFSTestHelper) Mkdir(rel string) string {
	h.t.Helper()
	p := h.Path(rel)
	if err := os.MkdirAll(p, 0o755); err != nil {
		h.t.Fatalf("Failed to create directory %s: %v", p, err)
	}
	return p
}

// ReadFile returns the content of an absolute path.
func (h *RealFSTestHelper) ReadFile(p string) string {
	h.t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		h.t.Fatalf("Failed to read %s: %v", p, err)
	}
	return string(data)
}

// Exists reports whether an absolute path exists, without following links.
func (h *RealFSTestHelper) Exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

// AssertExists fails the test if p is missing.
func (h *RealFSTestHelper) AssertExists(p string) {
	h.t.Helper()
	if !h.Exists(p) {
		h.t.Errorf("Expected %s to exist", p)
	}
}

// AssertNotExists fails the test if p is present.
func (h *RealFSTestHelper) AssertNotExists(p string) {
	h.t.Helper()
	if h.Exists(p) {
		h.t.Errorf("Expected %s not to exist", p)
	}
}

// Snapshot lists every path under root relative to it, directories with a
// trailing slash, for before/after comparisons.
func (h *RealFSTestHelper) Snapshot(root string) []string {
	h.t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		h.t.Fatalf("Failed to walk %s: %v", root, err)
	}
	return out
}
