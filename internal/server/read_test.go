package server

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestReadRequest(t *testing.T) {
	tests := []struct {
		name   string
		reader io.Reader
		max    int
		want   string
	}{
		{
			name:   "crlf terminator",
			reader: strings.NewReader("GET / HTTP/1.1\r\nHost: x\r\n\r\n"),
			max:    8192,
			want:   "GET / HTTP/1.1\r\nHost: x\r\n\r\n",
		},
		{
			name:   "lf terminator",
			reader: strings.NewReader("GET / HTTP/1.1\n\n"),
			max:    8192,
			want:   "GET / HTTP/1.1\n\n",
		},
		{
			name:   "terminator split across reads",
			reader: iotest.OneByteReader(strings.NewReader("GET /a HTTP/1.1\r\n\r\nignored")),
			max:    8192,
			want:   "GET /a HTTP/1.1\r\n\r\n",
		},
		{
			name:   "eof without terminator",
			reader: strings.NewReader("GET /partial"),
			max:    8192,
			want:   "GET /partial",
		},
		{
			name:   "empty",
			reader: strings.NewReader(""),
			max:    8192,
			want:   "",
		},
		{
			name:   "truncated at max",
			reader: strings.NewReader("GET /" + strings.Repeat("a", 5000)),
			max:    16,
			want:   "GET /aaaaaaaaaaa",
		},
		{
			name:   "data error with eof",
			reader: iotest.DataErrReader(strings.NewReader("GET / HTTP/1.0")),
			max:    8192,
			want:   "GET / HTTP/1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readRequest(tt.reader, tt.max)
			if err != nil {
				t.Fatalf("readRequest() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("readRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadRequest_LargeHeadSpansChunks(t *testing.T) {
	head := "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("b", 3000) + "\r\n\r\n"

	got, err := readRequest(strings.NewReader(head), 8192)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != head {
		t.Errorf("len = %d, want %d", len(got), len(head))
	}
}

func TestReadRequest_Error(t *testing.T) {
	boom := errors.New("boom")

	_, err := readRequest(iotest.ErrReader(boom), 8192)
	if !errors.Is(err, boom) {
		t.Errorf("readRequest() error = %v, want %v", err, boom)
	}

	_, err = readRequest(iotest.TimeoutReader(strings.NewReader("GET /")), 8192)
	if !errors.Is(err, iotest.ErrTimeout) {
		t.Errorf("readRequest() error = %v, want timeout", err)
	}
}
