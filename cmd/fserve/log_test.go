package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"fserve/internal/accesslog"
)

func TestFormatEntry(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry accesslog.Entry
		want  string
	}{
		{
			name: "served file",
			entry: accesslog.Entry{
				CreatedAt: at, Status: 200, RemoteAddr: "127.0.0.1:5000",
				Method: "GET", Target: "/a.txt", ResolvedPath: "/srv/a.txt",
				Bytes: 120, DurationMs: 3,
			},
			want: "2026-03-01T12:00:00Z 200 127.0.0.1:5000 GET /a.txt → /srv/a.txt (120 bytes, 3ms)",
		},
		{
			name: "escape",
			entry: accesslog.Entry{
				CreatedAt: at, Status: 404, RemoteAddr: "127.0.0.1:5000",
				Method: "GET", Target: "/../etc", ResolvedPath: "/etc",
				Bytes: 99, Escaped: true,
			},
			want: "2026-03-01T12:00:00Z 404 127.0.0.1:5000 GET /../etc → /etc (99 bytes, 0ms) [escaped]",
		},
		{
			name: "dropped",
			entry: accesslog.Entry{
				CreatedAt: at, RemoteAddr: "127.0.0.1:5000",
				Error: "shed: connection limit reached",
			},
			want: "2026-03-01T12:00:00Z --- 127.0.0.1:5000 - - (0 bytes, 0ms) error: shed: connection limit reached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatEntry(tt.entry); got != tt.want {
				t.Errorf("formatEntry() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestWriteEntries_OldestFirst(t *testing.T) {
	now := time.Now()
	// Recent returns newest first.
	entries := []accesslog.Entry{
		{ID: "c", Target: "/c", CreatedAt: now},
		{ID: "b", Target: "/b", CreatedAt: now.Add(-time.Second)},
		{ID: "a", Target: "/a", CreatedAt: now.Add(-2 * time.Second)},
	}

	var buf bytes.Buffer
	if err := writeEntries(&buf, entries, false); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, target := range []string{"/a", "/b", "/c"} {
		if !strings.Contains(lines[i], " "+target+" ") {
			t.Errorf("line %d = %q, want target %s", i, lines[i], target)
		}
	}

	buf.Reset()
	if err := writeEntries(&buf, entries, true); err != nil {
		t.Fatal(err)
	}
	var decoded []accesslog.Entry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 3 || decoded[0].ID != "a" || decoded[2].ID != "c" {
		t.Errorf("decoded order = %+v", decoded)
	}
}
