package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"fserve/internal/testutil"
)

func TestResolvePath(t *testing.T) {
	root := testutil.BuildTree(t, testutil.Tree{
		"data.json":  "{}",
		"docs/":      "",
		"docs/a.txt": "alpha",
	})

	tests := []struct {
		name        string
		path        string
		wantKind    string
		wantEscaped bool
		wantHead    string
	}{
		{
			name:     "json file",
			path:     "/data.json",
			wantKind: "file",
			wantHead: "HTTP/1.1 200 OK\r\naccept-ranges: bytes\r\ncontent-length: 2\r\ncontent-type: application/json\r\n\r\n",
		},
		{
			name:     "directory",
			path:     "/docs",
			wantKind: "directory",
			wantHead: "HTTP/1.1 200 OK\r\naccept-ranges: none\r\n",
		},
		{
			name:     "missing",
			path:     "/nope.txt",
			wantKind: "missing",
			wantHead: "HTTP/1.1 404 NOT FOUND\r\n",
		},
		{
			name:        "encoded escape",
			path:        "/%2e%2e/%2e%2e/etc/passwd",
			wantKind:    "missing",
			wantEscaped: true,
			wantHead:    "HTTP/1.1 404 NOT FOUND\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := resolvePath(root, tt.path)
			if err != nil {
				t.Fatalf("resolvePath() error = %v", err)
			}
			if resp.Kind.String() != tt.wantKind {
				t.Errorf("Kind = %s, want %s", resp.Kind, tt.wantKind)
			}
			if resp.Escaped != tt.wantEscaped {
				t.Errorf("Escaped = %v, want %v", resp.Escaped, tt.wantEscaped)
			}
			if !strings.HasPrefix(string(resp.Head()), tt.wantHead) {
				t.Errorf("Head() = %q, want prefix %q", resp.Head(), tt.wantHead)
			}
		})
	}
}

func TestResolvePath_MissingRoot(t *testing.T) {
	if _, err := resolvePath(filepath.Join(t.TempDir(), "gone"), "/"); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestWriteResolve_Human(t *testing.T) {
	root := testutil.BuildTree(t, testutil.Tree{"a.txt": "alpha"})
	resp, err := resolvePath(root, "/a.txt")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := writeResolve(&buf, resp, false, true); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"Request:  /a.txt\n",
		"Resolved: " + filepath.Join(root, "a.txt") + "\n",
		"Kind:     file\n",
		"content-length: 5\r\n",
		"\r\n\r\nalpha\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Escaped") {
		t.Error("non-escaping request reported as escaped")
	}
}

func TestWriteResolve_JSON(t *testing.T) {
	root := testutil.BuildTree(t, testutil.Tree{"a.txt": "alpha"})
	resp, err := resolvePath(root, "/../a.txt")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := writeResolve(&buf, resp, true, false); err != nil {
		t.Fatal(err)
	}

	var got ResolveResultCLI
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if got.Status != 404 || !got.Escaped || got.Kind != "missing" {
		t.Errorf("got %+v, want escaped 404", got)
	}
	if got.RequestPath != "/../a.txt" {
		t.Errorf("RequestPath = %q", got.RequestPath)
	}
}
