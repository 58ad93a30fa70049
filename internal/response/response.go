// Package response turns a decoded request into wire bytes: it confines the
// requested path to the server root, classifies it as file, directory or
// missing, and serializes the matching response.
package response

import (
	"os"
	"strconv"

	"fserve/internal/errors"
	"fserve/internal/request"
)

// Status is the response status line text.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
)

func (s Status) String() string {
	if s == StatusOK {
		return "200 OK"
	}
	return "404 NOT FOUND"
}

// Code returns the numeric status code.
func (s Status) Code() int {
	if s == StatusOK {
		return 200
	}
	return 404
}

// AcceptRanges is the value of the accept-ranges header. Range requests are
// not served; the header is informational.
type AcceptRanges int

const (
	AcceptNone AcceptRanges = iota
	AcceptBytes
)

func (a AcceptRanges) String() string {
	if a == AcceptBytes {
		return "bytes"
	}
	return "none"
}

// NotFoundBody is the fixed page sent for missing and escaping paths.
const NotFoundBody = "<html>\n<body>\n<h1>404 NOT FOUND</h1>\n</body>\n</html>\n"

// Response is a fully serialized reply for one request.
type Response struct {
	Version       request.Version
	Status        Status
	ContentLength int
	AcceptRanges  AcceptRanges
	ContentType   string // set for files only
	Kind          Kind
	Escaped       bool

	// Wire holds the status line, headers and body, ready for the transport.
	Wire       []byte
	headerSize int

	// RequestPath is the resource path as requested; ResolvedPath is the
	// filesystem path it was classified as.
	RequestPath  string
	ResolvedPath string
}

// Head returns the serialized status line and headers.
func (r *Response) Head() []byte {
	return r.Wire[:r.headerSize]
}

// Body returns the bytes following the header terminator.
func (r *Response) Body() []byte {
	return r.Wire[r.headerSize:]
}

// Build resolves req.Path beneath root and serializes the response for it.
func Build(root string, req *request.Request) (*Response, error) {
	target, err := Resolve(root, req.Path)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Version:      req.Version,
		Status:       StatusNotFound,
		AcceptRanges: AcceptNone,
		Kind:         target.Kind,
		Escaped:      target.Escaped,
		RequestPath:  req.Path,
		ResolvedPath: target.Path,
	}

	var body []byte
	switch target.Kind {
	case File:
		body, err = os.ReadFile(target.Path)
		if err != nil {
			return nil, errors.Filesystem("read", target.Path, err)
		}
		resp.Status = StatusOK
		resp.AcceptRanges = AcceptBytes
		resp.ContentType = detectContentType(target.Candidate, body)
	case Directory:
		entries, err := listEntries(target)
		if err != nil {
			return nil, err
		}
		body = renderListing(target, entries)
		resp.Status = StatusOK
	default:
		body = []byte(NotFoundBody)
	}

	resp.ContentLength = len(body)
	resp.serialize(body)
	return resp, nil
}

// serialize writes the head and body into Wire. Every line ends in CRLF.
func (r *Response) serialize(body []byte) {
	head := make([]byte, 0, 128)
	head = append(head, r.Version.String()...)
	head = append(head, ' ')
	head = append(head, r.Status.String()...)
	head = append(head, "\r\naccept-ranges: "...)
	head = append(head, r.AcceptRanges.String()...)
	head = append(head, "\r\ncontent-length: "...)
	head = strconv.AppendInt(head, int64(len(body)), 10)
	head = append(head, "\r\n"...)
	if r.ContentType != "" {
		head = append(head, "content-type: "...)
		head = append(head, r.ContentType...)
		head = append(head, "\r\n"...)
	}
	head = append(head, "\r\n"...)

	r.headerSize = len(head)
	r.Wire = make([]byte, 0, len(head)+len(body))
	r.Wire = append(r.Wire, head...)
	r.Wire = append(r.Wire, body...)
}
