package response

import (
	"path/filepath"

	"github.com/h2non/filetype"
)

const (
	defaultContentType = "text/plain"
	jsonContentType    = "application/json"
)

// detectContentType sniffs the media type from the leading bytes of content.
// A ".json" extension wins over whatever the bytes look like.
func detectContentType(name string, content []byte) string {
	if filepath.Ext(name) == ".json" {
		return jsonContentType
	}
	kind, err := filetype.Match(content)
	if err != nil || kind == filetype.Unknown || kind.MIME.Value == "" {
		return defaultContentType
	}
	return kind.MIME.Value
}
