// Package request decodes raw request buffers read from a connection.
package request

import (
	"bytes"
	"net/url"
	"strings"

	"fserve/internal/errors"
)

// Request is a decoded request head. Only Path is consumed by the
// response builder; everything else is carried through for logging.
type Request struct {
	Method  string
	Target  string
	Path    string // percent-encoded, query and fragment removed
	Version Version
	Headers map[string]string
}

// Header returns the value of the named header, matched case-insensitively.
func (r *Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[strings.ToLower(name)]
}

// Decode parses a raw buffer into a Request. The buffer may be zero-padded
// and may hold invalid UTF-8; both are tolerated. Decode fails with
// MalformedRequest only when no request line can be located.
func Decode(buf []byte) (*Request, error) {
	buf = bytes.TrimRight(buf, "\x00")
	text := strings.ToValidUTF8(string(buf), "\uFFFD")

	lines := splitLines(text)

	// Leading blank lines before the request line are ignored.
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return nil, errors.New(errors.MalformedRequest, "no request line", nil)
	}

	req, err := parseRequestLine(lines[i])
	if err != nil {
		return nil, err
	}
	req.Headers = parseHeaders(lines[i+1:])
	return req, nil
}

func parseRequestLine(line string) (*Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New(errors.MalformedRequest, "empty request line", nil)
	}

	req := &Request{Version: HTTP11}
	if v, ok := ParseVersion(fields[len(fields)-1]); ok {
		req.Version = v
		fields = fields[:len(fields)-1]
	} else if strings.HasPrefix(fields[len(fields)-1], "HTTP/") {
		// Unsupported protocol versions are dropped rather than taken as the target.
		fields = fields[:len(fields)-1]
	}

	switch len(fields) {
	case 0:
		return nil, errors.New(errors.MalformedRequest, "request line has no target", nil).
			WithDetails(map[string]string{"line": line})
	case 1:
		if looksLikeTarget(fields[0]) {
			req.Target = fields[0]
		} else {
			req.Method = fields[0]
			req.Target = "/"
		}
	default:
		// Tokens after the target are opaque.
		req.Method = fields[0]
		req.Target = fields[1]
	}

	req.Path = targetPath(req.Target)
	return req, nil
}

func looksLikeTarget(s string) bool {
	return strings.HasPrefix(s, "/") || strings.Contains(s, "://")
}

// targetPath extracts the still-encoded path from a request target.
func targetPath(target string) string {
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil {
			if p := u.EscapedPath(); p != "" {
				return p
			}
			return "/"
		}
	}
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return "/"
	}
	return target
}

func parseHeaders(lines []string) map[string]string {
	headers := make(map[string]string)
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || strings.ContainsAny(name, " \t") {
			continue
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers
}

// splitLines splits on LF and drops a trailing CR from each line.
func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
