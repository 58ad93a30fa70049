package response

import (
	"os"
	"path/filepath"
	"testing"

	"fserve/internal/errors"
	"fserve/internal/testutil"
)

// escapeFixture lays out base/www (the root) next to files that must stay
// unreachable from it.
func escapeFixture(t *testing.T) (base, root string) {
	t.Helper()

	base = testutil.BuildTree(t, testutil.Tree{
		"secret.txt":         "top secret",
		"www-old/x.txt":      "old site",
		"www/index.html":     "<html>hi</html>",
		"www/docs/a.md":      "# a",
		"www/docs/deep/b":    "b",
		"www/100%":           "literal percent",
		"www/with space.txt": "spaced",
	})
	return base, filepath.Join(base, "www")
}

func TestResolve_Classification(t *testing.T) {
	_, root := escapeFixture(t)

	tests := []struct {
		name     string
		path     string
		wantKind Kind
		wantRel  string
	}{
		{"root slash", "/", Directory, "/"},
		{"root empty", "", Directory, "/"},
		{"file", "/index.html", File, "/index.html"},
		{"directory", "/docs", Directory, "/docs"},
		{"directory trailing slash", "/docs/", Directory, "/docs"},
		{"nested directory", "/docs/deep", Directory, "/docs/deep"},
		{"encoded space", "/with%20space.txt", File, "/with space.txt"},
		{"malformed escape kept literal", "/100%", File, "/100%"},
		{"dotdot staying inside", "/docs/../index.html", File, "/index.html"},
		{"missing", "/does/not/exist", Missing, "/"},
		{"missing under file", "/index.html/child", Missing, "/"},
		{"nul byte", "/index.html%00.png", Missing, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := Resolve(root, tt.path)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.path, err)
			}
			if target.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", target.Kind, tt.wantKind)
			}
			if target.Rel != tt.wantRel {
				t.Errorf("Rel = %q, want %q", target.Rel, tt.wantRel)
			}
			if target.Escaped {
				t.Error("Escaped should be false for paths inside the root")
			}
		})
	}
}

func TestResolve_Escapes(t *testing.T) {
	base, root := escapeFixture(t)
	testutil.Symlink(t, filepath.Join(base, "secret.txt"), filepath.Join(root, "leak.txt"))
	testutil.Symlink(t, base, filepath.Join(root, "up"))

	tests := []struct {
		name string
		path string
	}{
		{"parent file", "/../secret.txt"},
		{"encoded dots", "/%2e%2e/secret.txt"},
		{"encoded slashes", "/..%2f..%2f..%2f..%2fetc%2fpasswd"},
		{"parent directory", "/.."},
		{"same depth sibling", "/../www-old/x.txt"},
		{"same depth sibling dir", "/../www-old"},
		{"missing outside root", "/../nope/nothing.txt"},
		{"symlinked file", "/leak.txt"},
		{"symlinked directory", "/up/secret.txt"},
		{"symlinked directory itself", "/up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := Resolve(root, tt.path)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.path, err)
			}
			if target.Kind != Missing {
				t.Errorf("Kind = %v, want %v (path %s)", target.Kind, Missing, target.Path)
			}
			if !target.Escaped {
				t.Error("Escaped should be true")
			}
		})
	}
}

func TestResolve_SymlinkInsideRoot(t *testing.T) {
	_, root := escapeFixture(t)
	testutil.Symlink(t, filepath.Join(root, "docs"), filepath.Join(root, "manual"))

	target, err := Resolve(root, "/manual/a.md")
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if target.Kind != File {
		t.Fatalf("Kind = %v, want %v", target.Kind, File)
	}
	if target.Rel != "/manual/a.md" {
		t.Errorf("Rel = %q, want %q", target.Rel, "/manual/a.md")
	}
	if target.Path != filepath.Join(root, "docs", "a.md") {
		t.Errorf("Path = %q, want resolved path", target.Path)
	}
}

func TestResolve_RootDepth(t *testing.T) {
	_, root := escapeFixture(t)

	target, err := Resolve(root, "/")
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	canon, _ := filepath.EvalSymlinks(root)
	if target.Root != canon {
		t.Errorf("Root = %q, want %q", target.Root, canon)
	}
	if target.RootDepth < 2 {
		t.Errorf("RootDepth = %d, want at least 2", target.RootDepth)
	}
}

func TestResolve_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")

	_, err := Resolve(root, "/")
	if err == nil {
		t.Fatal("Resolve with missing root should fail")
	}
	if !errors.HasCode(err, errors.FilesystemError) {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.FilesystemError)
	}
}

func TestResolve_UnreadableParent(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	_, root := escapeFixture(t)
	locked := filepath.Join(root, "docs")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	_, err := Resolve(root, "/docs/deep/b")
	if !errors.HasCode(err, errors.FilesystemError) {
		t.Errorf("error = %v, want %v", err, errors.FilesystemError)
	}
}

func TestParentHref(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"/", "/"},
		{"/docs", "/"},
		{"/docs/deep", "/docs"},
		{"/a b/c", "/a%20b"},
	}

	for _, tt := range tests {
		target := &Target{Rel: tt.rel}
		if got := target.ParentHref(); got != tt.want {
			t.Errorf("ParentHref(%q) = %q, want %q", tt.rel, got, tt.want)
		}
	}
}

func TestDecodePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/plain", "/plain"},
		{"/a%20b", "/a b"},
		{"/%E6%97%A5", "/日"},
		{"/%2e%2E", "/.."},
		{"/100%", "/100%"},
		{"/bad%zzescape", "/bad%zzescape"},
		{"/trail%4", "/trail%4"},
		{"/plus+stays", "/plus+stays"},
	}

	for _, tt := range tests {
		if got := DecodePath(tt.in); got != tt.want {
			t.Errorf("DecodePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
