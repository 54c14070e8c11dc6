package responder

import (
	"os"
	"path/filepath"
	"strings"

	xerrors "github.com/nodewire/originserver/pkg/errors"
)

// mimeTypes is the built-in extension table from spec §4.F. Looking up
// by extension from a fixed table (rather than mime.TypeByExtension,
// which reads /etc/mime.types on Linux) keeps directory-listing and
// file-serving tests hermetic.
var mimeTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".xml":   "application/xml; charset=utf-8",
	".txt":   "text/plain; charset=utf-8",
	".md":    "text/markdown; charset=utf-8",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".pdf":   "application/pdf",
	".mp4":   "video/mp4",
	".zip":   "application/zip",
}

const defaultMimeType = "application/octet-stream"

// MimeTypeFor returns the MIME type for fsPath by extension, defaulting
// to application/octet-stream for unknown extensions.
func MimeTypeFor(fsPath string) string {
	ext := strings.ToLower(filepath.Ext(fsPath))
	if ct, ok := mimeTypes[ext]; ok {
		return ct
	}
	return defaultMimeType
}

// ServeFile implements spec §4.F's file path: read the file fully into
// memory whatever its size, and report whether it is small enough to be
// cache-eligible. Files above maxCacheableBytes are not streamed; they
// are read the same way and only marked non-cacheable.
func ServeFile(fsPath string, maxCacheableBytes int64) (*Response, *xerrors.Error) {
	info, err := os.Stat(fsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.NotFound()
		}
		return nil, xerrors.Forbidden()
	}
	if info.IsDir() {
		return nil, xerrors.Internal()
	}

	body, err := os.ReadFile(fsPath)
	if err != nil {
		if os.IsPermission(err) {
			return nil, xerrors.Forbidden()
		}
		return nil, xerrors.New(xerrors.KindIoError, nil).WithCause(err)
	}

	return &Response{
		Status:        200,
		ContentType:   MimeTypeFor(fsPath),
		Body:          body,
		Cacheable:     info.Size() <= maxCacheableBytes,
		SourceModTime: info.ModTime().Unix(),
	}, nil
}
