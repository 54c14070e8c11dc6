package constants

const AppName = "originserver"

// names for request-id and cache-status response headers; the worker
// does not write either header onto responses.
const (
	HeaderRequestID   = "X-Request-Id"
	HeaderCacheStatus = "X-Cache"
)

// cache status values recorded on metrics.RequestMetric.CacheStatus.
const (
	CacheStatusHit   = "HIT"
	CacheStatusMiss  = "MISS"
	CacheStatusBypass = "BYPASS"
)
