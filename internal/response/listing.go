package response

import (
	"html"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"fserve/internal/errors"
	"fserve/internal/paths"
)

const folderGlyph = "&#128193; "

// Entry is one child of a listed directory.
type Entry struct {
	Name    string
	AbsPath string
	IsDir   bool
	Href    string
}

// listEntries enumerates the immediate children of a directory target.
// Directories come first, then everything is ordered by full path.
func listEntries(t *Target) ([]Entry, error) {
	children, err := os.ReadDir(t.Path)
	if err != nil {
		return nil, errors.Filesystem("read directory", t.Path, err)
	}

	entries := make([]Entry, 0, len(children))
	for _, c := range children {
		abs := filepath.Join(t.Path, c.Name())
		// Stat follows symlinks; a dangling link lists as a plain entry.
		isDir := false
		if info, err := os.Stat(abs); err == nil {
			isDir = info.IsDir()
		}
		entries = append(entries, Entry{
			Name:    c.Name(),
			AbsPath: abs,
			IsDir:   isDir,
			Href:    paths.EscapeHref(path.Join(t.Rel, c.Name())),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].AbsPath < entries[j].AbsPath
	})
	return entries, nil
}

// renderListing produces the HTML page for a directory target.
func renderListing(t *Target, entries []Entry) []byte {
	var b strings.Builder
	heading := html.EscapeString(t.Rel)

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>Index of " + heading + "</title>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString("<h1>Currently in " + heading + "</h1>\n")
	b.WriteString("<a href=\"" + html.EscapeString(t.ParentHref()) + "\">&#8593; Up</a><br><hr>\n")
	for _, e := range entries {
		b.WriteString("<a href=\"")
		b.WriteString(html.EscapeString(e.Href))
		b.WriteString("\">")
		if e.IsDir {
			b.WriteString(folderGlyph)
		}
		b.WriteString(html.EscapeString(e.Name))
		b.WriteString("</a><br>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}
