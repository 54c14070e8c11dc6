package encoding

import (
	"bytes"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Codec compresses a byte slice wholesale. Content is always bounded by
// conf.Cache.MaxFileBytes before it reaches a Codec, so in-memory buffering
// is acceptable here; there is no streaming requirement.
type Codec interface {
	// Name is the token used in the Content-Encoding response header.
	Name() string
	Encode(raw []byte) ([]byte, error)
}

type gzipCodec struct{}

func (gzipCodec) Name() string { return "gzip" }

func (gzipCodec) Encode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type deflateCodec struct{}

func (deflateCodec) Name() string { return "deflate" }

func (deflateCodec) Encode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type brotliCodec struct{}

func (brotliCodec) Name() string { return "br" }

func (brotliCodec) Encode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// codecs maps a negotiated encoding token to its implementation.
var codecs = map[string]Codec{
	"gzip":    gzipCodec{},
	"deflate": deflateCodec{},
	"br":      brotliCodec{},
}

// ForName looks up the Codec for a negotiated encoding token ("" means
// identity and has no Codec).
func ForName(name string) (Codec, bool) {
	c, ok := codecs[name]
	return c, ok
}

// minCompressibleSize is spec §4.E's floor: bodies smaller than this are
// served as identity regardless of negotiation, since the compression
// overhead outweighs the savings.
const minCompressibleSize = 1024

// incompressibleTypes are MIME types/prefixes the cache never compresses
// because the underlying format is already an entropy-coded container.
var incompressibleTypes = []string{
	"image/",
	"video/",
	"audio/",
	"application/zip",
	"application/gzip",
	"application/x-gzip",
	"application/x-bzip2",
	"application/x-rar-compressed",
	"application/x-7z-compressed",
	"font/woff",
	"font/woff2",
	"application/wasm",
}

// ShouldCompress applies spec §4.E's skip rules: below the minimum size,
// or a content type that's already compressed, compression is skipped
// and the artifact is always served/cached as identity.
func ShouldCompress(contentType string, size int) bool {
	if size < minCompressibleSize {
		return false
	}
	ct := strings.ToLower(contentType)
	for _, prefix := range incompressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return false
		}
	}
	return true
}

// Decode is used only by tests to assert round-tripping; production code
// never needs to decompress its own cached artifacts.
func Decode(name string, compressed []byte) ([]byte, error) {
	switch name {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r := flate.NewReader(bytes.NewReader(compressed))
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		r := brotli.NewReader(bytes.NewReader(compressed))
		return io.ReadAll(r)
	default:
		return compressed, nil
	}
}
