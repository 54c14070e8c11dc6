// Package transport defines the narrow lifecycle interface the app
// runner drives: every network-facing component (the HTTP origin
// server, any sidecar admin listener) implements Server.
package transport

import "context"

// Server is a component with a blocking Start and a best-effort Stop.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
