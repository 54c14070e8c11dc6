// Package conn's worker.go implements spec §4.H's per-connection loop.
package conn

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nodewire/originserver/cache"
	"github.com/nodewire/originserver/encoding"
	"github.com/nodewire/originserver/internal/constants"
	"github.com/nodewire/originserver/metrics"
	"github.com/nodewire/originserver/pathresolve"
	xerrors "github.com/nodewire/originserver/pkg/errors"
	"github.com/nodewire/originserver/responder"
)

// Config bundles everything the worker needs to drive one connection,
// independent of how many workers share it.
type Config struct {
	WWWRoot           string
	ServerName        string
	Deadlines         ReadDeadlines
	Cache             *cache.Cache
	MaxCacheableBytes int64
	// MaxHeaderBytes overrides the parser's built-in header-block size
	// bound when positive; zero keeps the built-in default.
	MaxHeaderBytes int
	PhpOptions     responder.PhpOptions
	// OnComplete, when set, is invoked once per connection with the
	// finished request metric, letting the caller write an access-log
	// line without the worker itself owning a logging dependency.
	OnComplete func(*metrics.RequestMetric)
}

// HandleConnection drives c through spec §4.H's eight steps to
// completion, then closes it. It never panics; all failure modes are
// translated to an HTTP response or a silent close.
func HandleConnection(ctx context.Context, c net.Conn, cfg Config) {
	defer c.Close()

	metric := metrics.New(remoteHost(c))
	ctx = metrics.WithContext(ctx, metric)
	if cfg.OnComplete != nil {
		defer func() { cfg.OnComplete(metric) }()
	}

	block, err := ReadHeaderBlock(c, cfg.Deadlines)
	if err != nil {
		metric.BytesSent = writeErrorResponse(c, cfg, err, false)
		recordOutcome(metric, err.Code)
		return
	}

	req, rej := ParseHeaderBlockWithLimit(block, cfg.MaxHeaderBytes)
	if rej != nil {
		metric.BytesSent = writeErrorResponse(c, cfg, rej, false)
		recordOutcome(metric, rej.Code)
		return
	}
	metric.Method = req.Method
	metric.Path = req.Path

	if req.Method == "OPTIONS" {
		metric.BytesSent = writeOptionsResponse(c, cfg, req)
		recordOutcome(metric, 204)
		return
	}

	resolved, ok := pathresolve.Clean(cfg.WWWRoot, req.Path)
	if !ok {
		metric.BytesSent = writeErrorResponse(c, cfg, xerrors.Forbidden(), req.Method == "HEAD")
		recordOutcome(metric, 403)
		return
	}

	isDir := pathIsDir(resolved.FSPath)
	if isDir && !resolved.IsDir {
		// A directory was requested without a trailing slash: redirect
		// to the canonical form per spec §4.C.
		metric.BytesSent = writeRedirectResponse(c, cfg, req.Path+"/")
		recordOutcome(metric, 301)
		return
	}

	negotiated := encoding.Negotiate(req.AcceptEncodings)

	key := cache.FingerprintKey{Method: req.Method, Path: resolved.FSPath, Encoding: negotiated}
	if isDir {
		key.Encoding = "" // directory listings are never cached, see below
	}

	var artifact *cache.Artifact
	cacheStatus := constants.CacheStatusBypass

	if !isDir {
		if cached, hit := cfg.Cache.Lookup(key); hit {
			artifact = cached
			cacheStatus = constants.CacheStatusHit
		}
	}

	if artifact == nil {
		cacheStatus = pickMissStatus(isDir, cacheStatus)

		// Coalesce ensures concurrent misses on the same key run the
		// responder (a filesystem read or a PHP spawn) at most once;
		// every waiting connection replays the same built artifact.
		built, cerr := cfg.Cache.Coalesce(key, func() (*cache.Artifact, error) {
			resp, rerr := responder.Dispatch(ctx, resolved.FSPath, isDir, responder.Request{
				Method:       req.Method,
				RequestPath:  req.Path,
				QueryString:  req.QueryString,
				RemoteAddr:   remoteHost(c),
				Headers:      req.Headers,
				AcceptsJSON:  req.AcceptsJSON,
				DocumentRoot: cfg.WWWRoot,
			}, cfg.MaxCacheableBytes, cfg.PhpOptions)
			if rerr != nil {
				return nil, rerr
			}

			body := resp.Body
			contentEncoding := ""
			if resp.Cacheable && negotiated != "" && encoding.ShouldCompress(resp.ContentType, len(body)) {
				if codec, ok := encoding.ForName(negotiated); ok {
					if compressed, cerr := codec.Encode(body); cerr == nil {
						body = compressed
						contentEncoding = codec.Name()
					}
					// On a codec failure we fall back to identity per spec §7's
					// degrade policy rather than failing the request.
				}
			}

			a := &cache.Artifact{
				Status:          resp.Status,
				ContentType:     resp.ContentType,
				ContentEncoding: contentEncoding,
				Body:            body,
				Headers:         resp.Headers,
				InsertedAt:      time.Now(),
			}

			if resp.Cacheable && resp.Status == 200 {
				cfg.Cache.Insert(key, a)
			}
			return a, nil
		})
		if cerr != nil {
			rerr, ok := cerr.(*xerrors.Error)
			if !ok {
				rerr = xerrors.Internal().WithCause(cerr)
			}
			metric.BytesSent = writeErrorResponse(c, cfg, rerr, req.Method == "HEAD")
			recordOutcome(metric, rerr.Code)
			return
		}

		metric.BytesSent = writeArtifactResponse(c, cfg, built, built.Headers, req.Method == "HEAD")
		metric.CacheStatus = cacheStatus
		recordOutcome(metric, built.Status)
		return
	}

	metric.BytesSent = writeArtifactResponse(c, cfg, artifact, artifact.Headers, req.Method == "HEAD")
	metric.CacheStatus = cacheStatus
	recordOutcome(metric, artifact.Status)
}

func pickMissStatus(isDir bool, current string) string {
	if isDir {
		return constants.CacheStatusBypass
	}
	return constants.CacheStatusMiss
}

func recordOutcome(m *metrics.RequestMetric, status int) {
	m.Status = status
	class := strconv.Itoa(status/100) + "xx"
	metrics.RequestsTotal.WithLabelValues(class).Inc()
	switch m.CacheStatus {
	case constants.CacheStatusHit:
		metrics.CacheHitsTotal.Inc()
	case constants.CacheStatusMiss:
		metrics.CacheMissesTotal.Inc()
	}
}

func remoteHost(c net.Conn) string {
	addr := c.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func pathIsDir(fsPath string) bool {
	info, err := os.Stat(fsPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func writeArtifactResponse(c net.Conn, cfg Config, artifact *cache.Artifact, extraHeaders map[string]string, headOnly bool) int64 {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", artifact.Status, http.StatusText(artifact.Status))
	fmt.Fprintf(&b, "Server: %s\r\n", cfg.ServerName)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Content-Type: %s\r\n", artifact.ContentType)
	if artifact.ContentEncoding != "" {
		fmt.Fprintf(&b, "Content-Encoding: %s\r\n", artifact.ContentEncoding)
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(artifact.Body))
	b.WriteString("Accept-Ranges: bytes\r\n")
	for k, v := range extraHeaders {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("Connection: close\r\n\r\n")
	if !headOnly {
		b.Write(artifact.Body)
	}

	_ = c.SetWriteDeadline(time.Now().Add(30 * time.Second))
	n, _ := c.Write(b.Bytes())
	return int64(n)
}

func writeRedirectResponse(c net.Conn, cfg Config, location string) int64 {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 301 Moved Permanently\r\n")
	fmt.Fprintf(&b, "Server: %s\r\n", cfg.ServerName)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Location: %s\r\n", location)
	b.WriteString("Content-Length: 0\r\n")
	b.WriteString("Connection: close\r\n\r\n")
	_ = c.SetWriteDeadline(time.Now().Add(30 * time.Second))
	n, _ := c.Write(b.Bytes())
	return int64(n)
}

func writeOptionsResponse(c net.Conn, cfg Config, req *ParsedRequest) int64 {
	var b bytes.Buffer
	b.WriteString("HTTP/1.1 204 No Content\r\n")
	fmt.Fprintf(&b, "Server: %s\r\n", cfg.ServerName)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))
	b.WriteString("Allow: GET, HEAD, OPTIONS\r\n")
	b.WriteString("Content-Length: 0\r\n")
	b.WriteString("Connection: close\r\n\r\n")
	_ = c.SetWriteDeadline(time.Now().Add(30 * time.Second))
	n, _ := c.Write(b.Bytes())
	return int64(n)
}

func writeErrorResponse(c net.Conn, cfg Config, rerr *xerrors.Error, headOnly bool) int64 {
	body := []byte(fmt.Sprintf("%d %s\n", rerr.Code, http.StatusText(rerr.Code)))
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", rerr.Code, http.StatusText(rerr.Code))
	fmt.Fprintf(&b, "Server: %s\r\n", cfg.ServerName)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	for k, vv := range rerr.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, strings.Join(vv, ", "))
	}
	b.WriteString("Connection: close\r\n\r\n")
	if !headOnly {
		b.Write(body)
	}
	_ = c.SetWriteDeadline(time.Now().Add(30 * time.Second))
	n, _ := c.Write(b.Bytes())
	return int64(n)
}
