package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nodewire/originserver/internal/constants"
)

type requestMetricKey struct{}

// RequestMetric carries the fields an access-log line needs, collected
// once and passed down the pipeline instead of reassembled at each
// call site, per the teacher's metrics/request_info.go pattern.
type RequestMetric struct {
	StartAt     time.Time
	RequestID   string
	Method      string
	Path        string
	Status      int
	BytesSent   int64
	CacheStatus string
	RemoteAddr  string
}

// New builds a RequestMetric for a freshly-accepted connection.
func New(remoteAddr string) *RequestMetric {
	return &RequestMetric{
		StartAt:     time.Now(),
		RequestID:   uuid.NewString(),
		CacheStatus: constants.CacheStatusBypass,
		RemoteAddr:  remoteAddr,
	}
}

// WithContext attaches m to ctx.
func WithContext(ctx context.Context, m *RequestMetric) context.Context {
	return context.WithValue(ctx, requestMetricKey{}, m)
}

// FromContext retrieves the RequestMetric attached to ctx, or a zero
// value if none was attached.
func FromContext(ctx context.Context) *RequestMetric {
	if v, ok := ctx.Value(requestMetricKey{}).(*RequestMetric); ok {
		return v
	}
	return &RequestMetric{}
}

// Duration reports how long the request has been in flight.
func (m *RequestMetric) Duration() time.Duration {
	return time.Since(m.StartAt)
}

// Line renders m as a single access-log line, field order matching the
// teacher's WithNormalFields (remote addr, method, path, status, bytes,
// duration, cache status, request id).
func (m *RequestMetric) Line() string {
	return fmt.Sprintf("%s %q %q %d %d %s %s %s",
		m.RemoteAddr, m.Method, m.Path, m.Status, m.BytesSent, m.Duration(), m.CacheStatus, m.RequestID)
}
