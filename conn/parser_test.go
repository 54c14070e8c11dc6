package conn

import (
	"testing"

	xerrors "github.com/nodewire/originserver/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func block(raw string) []byte { return []byte(raw) }

func TestParseSimpleGet(t *testing.T) {
	req, rej := ParseHeaderBlock(block("GET /a.txt HTTP/1.1\r\nHost: x\r\nAccept: text/html\r\n\r\n"))
	assert.Nil(t, rej)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/a.txt", req.Path)
	assert.False(t, req.AcceptsJSON)
}

func TestParseJSONAccept(t *testing.T) {
	req, rej := ParseHeaderBlock(block("GET / HTTP/1.1\r\nHost: x\r\nAccept: application/json\r\n\r\n"))
	assert.Nil(t, rej)
	assert.True(t, req.AcceptsJSON)
}

func TestParseRejectsTraversal(t *testing.T) {
	_, rej := ParseHeaderBlock(block("GET /../etc/passwd HTTP/1.1\r\nHost: x\r\n\r\n"))
	assert.NotNil(t, rej)
	assert.Equal(t, xerrors.KindForbidden, rej.Kind)
}

func TestParseRejectsUnsupportedMethod(t *testing.T) {
	_, rej := ParseHeaderBlock(block("POST /a.txt HTTP/1.1\r\nHost: x\r\n\r\n"))
	assert.NotNil(t, rej)
	assert.Equal(t, xerrors.KindMethodNotAllowed, rej.Kind)
	assert.Equal(t, "GET, HEAD, OPTIONS", rej.Headers.Get("Allow"))
}

func TestParseRejectsUnknownMethod(t *testing.T) {
	_, rej := ParseHeaderBlock(block("FROB /a.txt HTTP/1.1\r\nHost: x\r\n\r\n"))
	assert.NotNil(t, rej)
	assert.Equal(t, xerrors.KindMalformedRequest, rej.Kind)
}

func TestParseRejectsOversizeHeaderBlock(t *testing.T) {
	big := make([]byte, 20*1024)
	for i := range big {
		big[i] = 'a'
	}
	raw := "GET / HTTP/1.1\r\nX-Big: " + string(big) + "\r\n\r\n"
	_, rej := ParseHeaderBlock(block(raw))
	assert.NotNil(t, rej)
	assert.Equal(t, xerrors.KindOversize, rej.Kind)
}

func TestParseRejectsObsFold(t *testing.T) {
	_, rej := ParseHeaderBlock(block("GET / HTTP/1.1\r\nX-Folded: a\r\n b\r\n\r\n"))
	assert.NotNil(t, rej)
	assert.Equal(t, xerrors.KindMalformedRequest, rej.Kind)
}

func TestParseRejectsNonZeroContentLength(t *testing.T) {
	_, rej := ParseHeaderBlock(block("GET / HTTP/1.1\r\nContent-Length: 5\r\n\r\n"))
	assert.NotNil(t, rej)
	assert.Equal(t, xerrors.KindMalformedRequest, rej.Kind)
}

func TestParseHeadLikeGet(t *testing.T) {
	req, rej := ParseHeaderBlock(block("HEAD /a.txt HTTP/1.1\r\nHost: x\r\n\r\n"))
	assert.Nil(t, rej)
	assert.Equal(t, "HEAD", req.Method)
}

func TestParseOptionsStar(t *testing.T) {
	req, rej := ParseHeaderBlock(block("OPTIONS * HTTP/1.1\r\nHost: x\r\n\r\n"))
	assert.Nil(t, rej)
	assert.Equal(t, "*", req.Path)
}

func TestParseAcceptEncodingAccumulatesRepeatedHeaders(t *testing.T) {
	req, rej := ParseHeaderBlock(block("GET / HTTP/1.1\r\nAccept-Encoding: gzip\r\nAccept-Encoding: br;q=0.5\r\n\r\n"))
	assert.Nil(t, rej)
	assert.Len(t, req.AcceptEncodings, 2)
}

func TestParseHTTP10MarksClose(t *testing.T) {
	req, rej := ParseHeaderBlock(block("GET / HTTP/1.0\r\nHost: x\r\n\r\n"))
	assert.Nil(t, rej)
	assert.True(t, req.Close)
}

func TestParseHeaderBlockWithLimitEnforcesSmallerBound(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	_, rej := ParseHeaderBlockWithLimit(block(raw), len(raw)-1)
	assert.NotNil(t, rej)
	assert.Equal(t, xerrors.KindOversize, rej.Kind)
}

func TestParseHeaderBlockWithLimitZeroFallsBackToDefault(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	req, rej := ParseHeaderBlockWithLimit(block(raw), 0)
	assert.Nil(t, rej)
	assert.Equal(t, "GET", req.Method)
}

func TestParseSingleDecodePreventsDoubleDecodeTraversal(t *testing.T) {
	// "%252e%252e" decodes once to "%2e%2e", which is not ".." — a
	// double-decode bug would turn this into a traversal.
	req, rej := ParseHeaderBlock(block("GET /%252e%252e/etc HTTP/1.1\r\nHost: x\r\n\r\n"))
	assert.Nil(t, rej)
	assert.Equal(t, "/%2e%2e/etc", req.Path)
}
