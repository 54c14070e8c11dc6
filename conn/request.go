package conn

import "github.com/nodewire/originserver/encoding"

// ParsedRequest is spec §3's validated request record.
type ParsedRequest struct {
	Method          string
	Target          string
	Path            string // percent-decoded, normalized, no ".." segments
	QueryString     string
	Version         string
	Headers         map[string]string // lower-cased field name -> comma-folded value
	AcceptEncodings []encoding.Preference
	AcceptsJSON     bool
	Close           bool // true for HTTP/1.0 or an explicit Connection: close
}

// Header returns the comma-folded value of name (case-insensitive),
// or "" if absent.
func (r *ParsedRequest) Header(name string) string {
	return r.Headers[lowerASCII(name)]
}
