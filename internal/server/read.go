package server

import (
	"bytes"
	"errors"
	"io"
)

// readChunk is the size of each read from the connection.
const readChunk = 1024

var (
	crlfTerminator = []byte("\r\n\r\n")
	lfTerminator   = []byte("\n\n")
)

// readRequest reads a request head from r. It stops after the first blank
// line, at EOF, or once limit bytes have arrived, whichever comes first; the
// result is truncated to limit. Bytes after the blank line in the same read
// are kept and ignored by the decoder. EOF is not an error.
func readRequest(r io.Reader, limit int) ([]byte, error) {
	buf := make([]byte, 0, readChunk)
	chunk := make([]byte, readChunk)

	for len(buf) < limit {
		n, err := r.Read(chunk)
		if n > 0 {
			// Re-scan the previous three bytes so terminators split
			// across reads are found.
			from := len(buf) - 3
			if from < 0 {
				from = 0
			}
			buf = append(buf, chunk[:n]...)
			if terminated(buf[from:]) {
				break
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}

	if len(buf) > limit {
		buf = buf[:limit]
	}
	return buf, nil
}

func terminated(b []byte) bool {
	return bytes.Contains(b, crlfTerminator) || bytes.Contains(b, lfTerminator)
}
