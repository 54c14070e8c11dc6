package encoding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodecRoundTrip(t *testing.T) {
	raw := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 50))

	for name := range codecs {
		codec, ok := ForName(name)
		assert.True(t, ok)

		compressed, err := codec.Encode(raw)
		assert.NoError(t, err)
		assert.NotEmpty(t, compressed)

		decoded, err := Decode(name, compressed)
		assert.NoError(t, err)
		assert.Equal(t, raw, decoded)
	}
}

func TestShouldCompressSkipsSmallBodies(t *testing.T) {
	assert.False(t, ShouldCompress("text/plain", 100))
	assert.True(t, ShouldCompress("text/plain", 4096))
}

func TestShouldCompressSkipsKnownCompressedTypes(t *testing.T) {
	assert.False(t, ShouldCompress("image/png", 1<<20))
	assert.False(t, ShouldCompress("application/wasm", 1<<20))
	assert.True(t, ShouldCompress("text/html; charset=utf-8", 1<<20))
}
