package response

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"fserve/internal/errors"
	"fserve/internal/paths"
)

// Kind is the classification of a resolved request path.
type Kind int

const (
	Missing Kind = iota
	File
	Directory
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	default:
		return "missing"
	}
}

// Target is the outcome of resolving a resource path against a root.
type Target struct {
	Kind Kind

	// Root is the canonical root and RootDepth its component count.
	Root      string
	RootDepth int

	// Decoded is the percent-decoded resource path.
	Decoded string
	// Candidate is the root-joined path before symlinks are resolved.
	Candidate string
	// Path is the filesystem path that was classified. For a missing
	// target it is the candidate, which may not exist.
	Path string
	// Rel is the root-relative slash path used for headings and links.
	Rel string

	// Escaped is set when the request tried to leave the root.
	Escaped bool
	Size    int64
}

// Resolve decodes resourcePath, confines it beneath root and classifies it.
// Escapes and missing paths classify as Missing; only failures on paths that
// exist but cannot be inspected are returned as FilesystemError.
func Resolve(root, resourcePath string) (*Target, error) {
	rootCanon, err := paths.Canonicalize(root)
	if err != nil {
		return nil, errors.Filesystem("canonicalize root", root, err)
	}

	t := &Target{
		Kind:      Missing,
		Root:      rootCanon,
		RootDepth: paths.Depth(rootCanon),
		Decoded:   DecodePath(resourcePath),
		Rel:       "/",
	}

	if strings.ContainsRune(t.Decoded, 0) {
		t.Path = rootCanon
		return t, nil
	}

	// Join cleans the path, and a leading slash is taken as a subpath.
	candidate := filepath.Join(rootCanon, filepath.FromSlash(t.Decoded))
	t.Candidate = candidate
	t.Path = candidate

	if candidate != rootCanon {
		parent := filepath.Dir(candidate)
		parentCanon, err := filepath.EvalSymlinks(parent)
		if err != nil {
			if isMissing(err) {
				t.Escaped = !paths.IsWithinRoot(candidate, rootCanon)
				return t, nil
			}
			return nil, errors.Filesystem("canonicalize", parent, err)
		}
		if paths.Depth(parentCanon) < t.RootDepth || !paths.IsWithinRoot(parentCanon, rootCanon) {
			t.Escaped = true
			return t, nil
		}
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if isMissing(err) {
			return t, nil
		}
		return nil, errors.Filesystem("canonicalize", candidate, err)
	}
	// The candidate itself may be a symlink pointing out of the root.
	if !paths.IsWithinRoot(resolved, rootCanon) {
		t.Escaped = true
		return t, nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if isMissing(err) {
			return t, nil
		}
		return nil, errors.Filesystem("stat", resolved, err)
	}

	if paths.IsWithinRoot(candidate, rootCanon) {
		t.Rel = paths.RootRelative(rootCanon, candidate)
	} else {
		t.Rel = paths.RootRelative(rootCanon, resolved)
	}
	t.Path = resolved

	switch {
	case info.Mode().IsRegular():
		t.Kind = File
		t.Size = info.Size()
	case info.IsDir():
		t.Kind = Directory
	}
	return t, nil
}

// ParentHref returns the link target of the "up" entry of a listing. At or
// above the root it is always "/".
func (t *Target) ParentHref() string {
	if t.Rel == "/" {
		return "/"
	}
	parent := path.Dir(t.Rel)
	if parent == "." || parent == "/" {
		return "/"
	}
	return paths.EscapeHref(parent)
}

// DecodePath percent-decodes s. Malformed escapes are kept literally rather
// than rejected, so "/100%" still names a file called "100%".
func DecodePath(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func isMissing(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist) ||
		stderrors.Is(err, syscall.ENOTDIR) ||
		stderrors.Is(err, syscall.ENAMETOOLONG)
}
