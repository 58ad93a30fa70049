package paths

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	// StateDirName is the per-user directory holding config and the access ledger
	StateDirName = ".fserve"
	// HomeEnvVar overrides the state directory location
	HomeEnvVar = "FSERVE_HOME"
)

// StateDir returns the fserve state directory (~/.fserve or $FSERVE_HOME).
// It is kept outside the served root so the server never lists its own files.
func StateDir() (string, error) {
	if dir := os.Getenv(HomeEnvVar); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, StateDirName), nil
}

// EnsureStateDir creates the state directory if needed and returns it.
func EnsureStateDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// AccessLogPath returns the default path of the access ledger database.
func AccessLogPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "access.db"), nil
}

// DefaultConfigPaths returns candidate config files in lookup order.
func DefaultConfigPaths() []string {
	dir, err := StateDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(dir, "config.json"),
		filepath.Join(dir, "config.toml"),
	}
}

// Canonicalize returns the absolute, symlink-free form of path.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// Depth returns the number of components in a cleaned absolute path.
// The filesystem root has depth 1, matching a component walk that counts
// the root itself.
func Depth(path string) int {
	path = filepath.Clean(path)
	vol := filepath.VolumeName(path)
	rest := strings.Trim(path[len(vol):], string(filepath.Separator))
	if rest == "" {
		return 1
	}
	return 1 + strings.Count(rest, string(filepath.Separator)) + 1
}

// IsWithinRoot reports whether path equals root or lies beneath it.
// Both paths should already be canonical. The test is component-wise, so
// "/srv/www-old" is not within "/srv/www".
func IsWithinRoot(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// RootRelative returns the slash-separated path of abs relative to root,
// with a leading slash. The root itself maps to "/".
func RootRelative(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// EscapeHref percent-escapes a root-relative path for use as a link target.
// Slashes are kept; url.PathUnescape reverses it.
func EscapeHref(rel string) string {
	return (&url.URL{Path: rel}).EscapedPath()
}
