package conn

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodewire/originserver/cache"
	"github.com/nodewire/originserver/metrics"
)

// driveRequest sends raw over an in-memory pipe to HandleConnection and
// returns the raw response bytes, exercising spec §8's end-to-end
// scenarios without a real listening socket.
func driveRequest(t *testing.T, cfg Config, raw string) string {
	t.Helper()
	client, server := net.Pipe()

	done := make(chan struct{})
	go func() {
		HandleConnection(context.Background(), server, cfg)
		close(done)
	}()

	_, err := client.Write([]byte(raw))
	require.NoError(t, err)

	var buf bytes.Buffer
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _ = buf.ReadFrom(client)
	<-done
	return buf.String()
}

func newTestConfig(t *testing.T, root string) Config {
	return Config{
		WWWRoot:           root,
		ServerName:        "originserver/1",
		Deadlines:         DefaultReadDeadlines(),
		Cache:             cache.New(10, 60*time.Second),
		MaxCacheableBytes: 1 << 20,
	}
}

func statusLine(resp string) string {
	i := strings.Index(resp, "\r\n")
	if i < 0 {
		return resp
	}
	return resp[:i]
}

func TestHandleConnectionServesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world"), 0o644))

	resp := driveRequest(t, newTestConfig(t, dir), "GET /a.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", statusLine(resp))
	assert.Contains(t, resp, "Content-Type: text/plain")
	assert.True(t, strings.HasSuffix(resp, "hello world"))
}

func TestHandleConnectionRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	resp := driveRequest(t, newTestConfig(t, dir), "GET /../etc/passwd HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 403 Forbidden", statusLine(resp))
}

func TestHandleConnectionMissingFileIs404(t *testing.T) {
	dir := t.TempDir()
	resp := driveRequest(t, newTestConfig(t, dir), "GET /missing HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 404 Not Found", statusLine(resp))
}

func TestHandleConnectionHeadHasNoBody(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), bytes.Repeat([]byte("x"), 100), 0o644))

	resp := driveRequest(t, newTestConfig(t, dir), "HEAD /a.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", statusLine(resp))
	assert.Contains(t, resp, "Content-Length: 100")
	headerEnd := strings.Index(resp, "\r\n\r\n")
	require.GreaterOrEqual(t, headerEnd, 0)
	assert.Empty(t, resp[headerEnd+4:])
}

func TestHandleConnectionOptionsStar(t *testing.T) {
	dir := t.TempDir()
	resp := driveRequest(t, newTestConfig(t, dir), "OPTIONS * HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 204 No Content", statusLine(resp))
	assert.Contains(t, resp, "Allow: GET, HEAD, OPTIONS")
}

func TestHandleConnectionOversizeHeaderBlockIs413(t *testing.T) {
	dir := t.TempDir()
	big := strings.Repeat("a", 20*1024)
	raw := "GET / HTTP/1.1\r\nX-Big: " + big + "\r\n\r\n"
	resp := driveRequest(t, newTestConfig(t, dir), raw)
	assert.Equal(t, "HTTP/1.1 413 Request Entity Too Large", statusLine(resp))
}

func TestHandleConnectionDirectoryListingJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	resp := driveRequest(t, newTestConfig(t, dir), "GET / HTTP/1.1\r\nHost: x\r\nAccept: application/json\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", statusLine(resp))
	assert.Contains(t, resp, "application/json")
	assert.Contains(t, resp, "\"a.txt\"")
	assert.Contains(t, resp, "\"sub\"")
}

func TestHandleConnectionDirectoryWithoutTrailingSlashRedirects(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	resp := driveRequest(t, newTestConfig(t, dir), "GET /sub HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 301 Moved Permanently", statusLine(resp))
	assert.Contains(t, resp, "Location: /sub/")
}

func TestHandleConnectionCacheServesSecondRequestIdentically(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world"), 0o644))
	cfg := newTestConfig(t, dir)

	first := driveRequest(t, cfg, "GET /a.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	second := driveRequest(t, cfg, "GET /a.txt HTTP/1.1\r\nHost: x\r\n\r\n")

	stripDate := func(s string) string {
		lines := strings.Split(s, "\r\n")
		out := lines[:0]
		for _, l := range lines {
			if !strings.HasPrefix(l, "Date:") {
				out = append(out, l)
			}
		}
		return strings.Join(out, "\r\n")
	}
	assert.Equal(t, stripDate(first), stripDate(second))
	assert.Equal(t, 1, cfg.Cache.Len())
}

func TestHandleConnectionConcurrentMissesShareOneCacheEntry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world"), 0o644))
	cfg := newTestConfig(t, dir)

	var wg sync.WaitGroup
	responses := make([]string, 8)
	for i := range responses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i] = driveRequest(t, cfg, "GET /a.txt HTTP/1.1\r\nHost: x\r\n\r\n")
		}(i)
	}
	wg.Wait()

	for _, resp := range responses {
		assert.Equal(t, "HTTP/1.1 200 OK", statusLine(resp))
		assert.True(t, strings.HasSuffix(resp, "hello world"))
	}
	assert.Equal(t, 1, cfg.Cache.Len())
}

func TestHandleConnectionOnCompleteCalledOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	calls := 0
	cfg := newTestConfig(t, dir)
	cfg.OnComplete = func(m *metrics.RequestMetric) {
		calls++
		assert.Equal(t, 200, m.Status)
	}

	driveRequest(t, cfg, "GET /a.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, 1, calls)
}
