package conn

import (
	"strconv"
	"strings"

	"github.com/nodewire/originserver/encoding"
	xerrors "github.com/nodewire/originserver/pkg/errors"
)

const (
	maxRequestLineBytes = 8 * 1024
	maxHeaderLineBytes  = 8 * 1024
	maxHeaderBlockBytes = 16 * 1024
)

var allowedMethods = map[string]bool{"GET": true, "HEAD": true, "OPTIONS": true}

// knownMethods covers tokens that are syntactically valid HTTP methods
// but unsupported here, so the parser can tell 405 apart from 400.
var knownMethods = map[string]bool{
	"GET": true, "HEAD": true, "OPTIONS": true, "POST": true, "PUT": true,
	"DELETE": true, "PATCH": true, "TRACE": true, "CONNECT": true,
}

// ParseHeaderBlock implements spec §4.B over a byte block already
// delimited by ReadHeaderBlock (ends in CRLFCRLF), enforcing the
// built-in header-block size bound.
func ParseHeaderBlock(block []byte) (*ParsedRequest, *xerrors.Error) {
	return parseHeaderBlock(block, maxHeaderBlockBytes)
}

// ParseHeaderBlockWithLimit behaves like ParseHeaderBlock but enforces
// limit instead of the built-in bound, letting an operator tighten
// server.max_header_bytes below the hardcoded default. limit <= 0
// falls back to the built-in bound.
func ParseHeaderBlockWithLimit(block []byte, limit int) (*ParsedRequest, *xerrors.Error) {
	if limit <= 0 {
		limit = maxHeaderBlockBytes
	}
	return parseHeaderBlock(block, limit)
}

func parseHeaderBlock(block []byte, limit int) (*ParsedRequest, *xerrors.Error) {
	if len(block) > limit {
		return nil, xerrors.Oversize()
	}
	if containsNUL(block) {
		return nil, xerrors.Malformed()
	}

	raw := string(block)
	// Drop the trailing CRLFCRLF terminator before splitting lines.
	raw = strings.TrimSuffix(raw, "\r\n\r\n")

	lines := strings.Split(raw, "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, xerrors.Malformed()
	}

	// Any lone \n not part of a \r\n pair is a CRLF-injection attempt;
	// strings.Split above only recognizes \r\n, so any line still
	// containing \r or \n here indicates malformed framing.
	for _, l := range lines {
		if strings.ContainsAny(l, "\r\n") {
			return nil, xerrors.Malformed()
		}
	}

	requestLine := lines[0]
	if len(requestLine) > maxRequestLineBytes {
		return nil, xerrors.Oversize()
	}

	method, target, version, ok := splitRequestLine(requestLine)
	if !ok {
		return nil, xerrors.Malformed()
	}

	if !knownMethods[method] {
		return nil, xerrors.Malformed()
	}
	if !allowedMethods[method] {
		return nil, xerrors.MethodNotAllowed()
	}

	if version != "HTTP/1.1" && version != "HTTP/1.0" {
		return nil, xerrors.Malformed()
	}

	headers := make(map[string]string, len(lines)-1)
	var acceptEncodingRaw []string

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		if len(line) > maxHeaderLineBytes {
			return nil, xerrors.Oversize()
		}
		// obs-fold: a continuation line starts with SP/HTAB. We never
		// produce multi-line entries in `lines`, so any such line here
		// is itself a rejected fold.
		if line[0] == ' ' || line[0] == '\t' {
			return nil, xerrors.Malformed()
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, xerrors.Malformed()
		}
		name := line[:colon]
		value := strings.Trim(line[colon+1:], " \t")

		if !isToken(name) {
			return nil, xerrors.Malformed()
		}
		lower := lowerASCII(name)

		if lower == "accept-encoding" {
			acceptEncodingRaw = append(acceptEncodingRaw, value)
			continue
		}

		if existing, ok := headers[lower]; ok {
			headers[lower] = existing + ", " + value
		} else {
			headers[lower] = value
		}
	}

	if cl, ok := headers["content-length"]; ok {
		if n, err := strconv.Atoi(cl); err != nil || n != 0 {
			return nil, xerrors.Malformed()
		}
	}

	path, perr := decodeAndNormalizeTarget(target)
	if perr != nil {
		return nil, perr
	}

	query := ""
	if i := strings.IndexByte(target, '?'); i >= 0 {
		query = target[i+1:]
	}

	req := &ParsedRequest{
		Method:          method,
		Target:          target,
		Path:            path,
		QueryString:     query,
		Version:         version,
		Headers:         headers,
		AcceptEncodings: encoding.ParseAcceptEncoding(strings.Join(acceptEncodingRaw, ", ")),
		AcceptsJSON:     strings.Contains(headers["accept"], "application/json"),
		Close:           version == "HTTP/1.0" || strings.EqualFold(headers["connection"], "close"),
	}
	return req, nil
}

func splitRequestLine(line string) (method, target, version string, ok bool) {
	first := strings.IndexByte(line, ' ')
	if first < 0 {
		return "", "", "", false
	}
	rest := line[first+1:]
	second := strings.LastIndexByte(rest, ' ')
	if second < 0 {
		return "", "", "", false
	}
	method = line[:first]
	target = rest[:second]
	version = rest[second+1:]
	if method == "" || target == "" || version == "" {
		return "", "", "", false
	}
	if !isToken(method) {
		return "", "", "", false
	}
	return method, target, version, true
}

func containsNUL(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return true
		}
	}
	return false
}

// isToken reports whether s is a valid RFC 7230 token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// decodeAndNormalizeTarget implements spec §4.B's single percent-decode
// pass plus the ".."/"."/NUL/backslash rejection rules. It strips a
// trailing query string before decoding the path component. A ".."
// segment is a traversal attempt and is rejected as Forbidden; every
// other failure is Malformed.
func decodeAndNormalizeTarget(target string) (string, *xerrors.Error) {
	if target == "*" {
		return "*", nil
	}
	if !strings.HasPrefix(target, "/") {
		return "", xerrors.Malformed()
	}

	path := target
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	decoded, ok := percentDecodeOnce(path)
	if !ok {
		return "", xerrors.Malformed()
	}
	if strings.ContainsRune(decoded, 0) || strings.ContainsRune(decoded, '\\') {
		return "", xerrors.Malformed()
	}

	for _, seg := range strings.Split(decoded, "/") {
		if seg == ".." {
			return "", xerrors.Forbidden()
		}
		if seg == "." {
			return "", xerrors.Malformed()
		}
	}
	return decoded, nil
}

func percentDecodeOnce(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' {
			if i+2 >= len(s) {
				return "", false
			}
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				return "", false
			}
			b.WriteByte(hi<<4 | lo)
			i += 2
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
