package request

// Version is the protocol version named on the request line.
type Version int

const (
	HTTP10 Version = iota
	HTTP11
	HTTP20
)

// ParseVersion maps a wire token such as "HTTP/1.1" to a Version.
func ParseVersion(s string) (Version, bool) {
	switch s {
	case "HTTP/1.0":
		return HTTP10, true
	case "HTTP/1.1":
		return HTTP11, true
	case "HTTP/2", "HTTP/2.0":
		return HTTP20, true
	default:
		return HTTP11, false
	}
}

func (v Version) String() string {
	switch v {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP20:
		return "HTTP/2.0"
	default:
		return "HTTP/1.1"
	}
}
