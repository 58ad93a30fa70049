// Package testutil provides testing utilities for served-tree fixtures and golden tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Tree describes a directory tree to materialize. Keys are slash-separated
// paths relative to the root; a key ending in "/" creates a directory and
// its value is ignored.
type Tree map[string]string

// BuildTree creates tree under a fresh temporary root and returns the
// root's canonical path.
func BuildTree(t *testing.T, tree Tree) string {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}
	WriteTree(t, root, tree)
	return root
}

// WriteTree creates tree beneath an existing directory.
func WriteTree(t *testing.T, root string, tree Tree) {
	t.Helper()

	for rel, content := range tree {
		full := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(rel, "/")))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(full, 0o755); err != nil {
				t.Fatalf("Failed to create directory %s: %v", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("Failed to create parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

// Symlink creates link pointing to target, skipping the test on platforms
// that refuse it.
func Symlink(t *testing.T, target, link string) {
	t.Helper()

	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
}

// TestdataPath returns the path of a file under the calling package's
// testdata directory.
func TestdataPath(name string) string {
	return filepath.Join("testdata", filepath.FromSlash(name))
}
