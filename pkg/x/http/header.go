// Package http holds small, dependency-free HTTP helpers shared across
// the request parser, encoder, and responders. Adapted from the
// teacher's pkg/x/http package, trimmed to what an origin server (as
// opposed to a reverse proxy) actually needs.
package http

import (
	"net/http"
	"net/textproto"
	"strings"
)

// hopHeaders are stripped from any header set copied from an upstream
// process (the PHP interpreter) into the client-facing response.
//
// See RFC 7230 §6.1 and RFC 2616 §13.5.1.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RemoveHopByHopHeaders deletes hop-by-hop headers from h in place.
func RemoveHopByHopHeaders(h http.Header) {
	for _, f := range h["Connection"] {
		for _, sf := range strings.Split(f, ",") {
			if sf = textproto.TrimString(sf); sf != "" {
				h.Del(sf)
			}
		}
	}
	for _, f := range hopHeaders {
		h.Del(f)
	}
}
