package responder

import (
	"context"
	"os"

	xerrors "github.com/nodewire/originserver/pkg/errors"
)

// Request is the subset of the parsed request the dispatch layer needs,
// kept narrow so responder does not import conn (which imports responder).
type Request struct {
	Method       string
	RequestPath  string // canonical URL path, trailing slash preserved for dirs
	QueryString  string
	RemoteAddr   string
	Headers      map[string]string
	AcceptsJSON  bool
	DocumentRoot string
}

// Dispatch implements spec §4.H steps 4-5: classify the resolved path
// and invoke the matching responder.
func Dispatch(ctx context.Context, fsPath string, isDir bool, req Request, maxCacheableBytes int64, php PhpOptions) (*Response, *xerrors.Error) {
	switch Classify(fsPath, isDir) {
	case KindDir:
		return ServeDir(fsPath, req.RequestPath, req.AcceptsJSON)
	case KindPhp:
		info, err := os.Stat(fsPath)
		if err != nil || info.IsDir() {
			return nil, xerrors.NotFound()
		}
		return ServePhp(ctx, PhpRequest{
			ScriptFilename: fsPath,
			DocumentRoot:   req.DocumentRoot,
			Method:         req.Method,
			QueryString:    req.QueryString,
			RemoteAddr:     req.RemoteAddr,
			Headers:        req.Headers,
		}, php)
	default:
		return ServeFile(fsPath, maxCacheableBytes)
	}
}
