// Package encoding implements spec §4.E: Accept-Encoding negotiation
// and the gzip/deflate/brotli codecs themselves.
//
// The negotiation algorithm (quality-value parsing, descending-quality
// walk, wildcard/identity handling) is carried over from the teacher's
// pkg/x/http/varycontrol.ParseAcceptEncoding / GetBestSupportedEncoding,
// re-targeted here from "pick a Vary-cache shard" to "pick a response
// codec".
package encoding

import (
	"sort"
	"strconv"
	"strings"
)

// Preference is one entry of a parsed Accept-Encoding header.
type Preference struct {
	Name string
	Q    float64
}

// preferenceList sorts by descending quality, stable so that encodings
// with equal quality keep the order the client listed them in.
type preferenceList []Preference

func (p preferenceList) Len() int      { return len(p) }
func (p preferenceList) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p preferenceList) Less(i, j int) bool { return p[i].Q > p[j].Q }

// ParseAcceptEncoding parses an Accept-Encoding header value into a
// quality-sorted preference list. An empty header yields an empty list
// (meaning: no explicit preference, identity assumed acceptable).
func ParseAcceptEncoding(header string) []Preference {
	if header == "" {
		return nil
	}

	result := make(preferenceList, 0, 4)
	for _, part := range strings.Split(header, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		q := 1.0
		if i := strings.IndexByte(name, ';'); i >= 0 {
			params := name[i+1:]
			name = strings.TrimSpace(name[:i])
			for _, seg := range strings.Split(params, ";") {
				seg = strings.TrimSpace(seg)
				if v, ok := strings.CutPrefix(seg, "q="); ok {
					if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
						q = parsed
					}
				}
			}
		}

		result = append(result, Preference{Name: strings.ToLower(name), Q: q})
	}

	sort.Stable(result)
	return result
}

// serverOrder is the supported set from spec §4.E; its first entry is
// the pick for a wildcard or when the client expresses no preference.
// Ties between equal-quality client entries keep the client's order.
var serverOrder = []string{"br", "gzip", "deflate"}

// Negotiate picks the best encoding to apply given the client's parsed
// preferences, walking them by descending quality and returning the
// first one the server supports with nonzero quality. An explicit
// `identity;q=1, *;q=0` (or an equivalent catch-all rejection of every
// supported codec) yields "" (identity, uncompressed).
func Negotiate(prefs []Preference) string {
	if len(prefs) == 0 {
		return serverOrder[0]
	}

	// An explicit "*;q=0" with no matching supported encoding forbids
	// compression outright.
	wildcardForbidden := false
	for _, p := range prefs {
		if p.Name == "*" && p.Q <= 0 {
			wildcardForbidden = true
		}
	}

	for _, p := range prefs {
		if p.Q <= 0 {
			continue
		}
		if p.Name == "*" {
			return serverOrder[0]
		}
		if p.Name == "identity" {
			return ""
		}
		for _, enc := range serverOrder {
			if p.Name == enc {
				return enc
			}
		}
	}

	if wildcardForbidden {
		return ""
	}

	// Client listed only codecs we don't support: fall back to identity.
	return ""
}
