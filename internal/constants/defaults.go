package constants

import "time"

// Timeouts - Default timeout values.
const (
	// DefaultReadHeaderTimeout bounds slow clients on the HTTP listener.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultShutdownTimeout is how long serve waits for in-flight requests.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultAPIClientTimeout is the per-request timeout of the island API client.
	DefaultAPIClientTimeout = 30 * time.Second

	// DefaultPluginIndexTimeout bounds a plugin index download.
	DefaultPluginIndexTimeout = 30 * time.Second

	// DefaultQueryTimeout is the default timeout for database queries.
	DefaultQueryTimeout = 30 * time.Second
)

// Caching.
const (
	// DefaultPluginIndexTTL is how long a downloaded plugin index is served from cache.
	DefaultPluginIndexTTL = time.Hour

	// DefaultJWTTTL is the lifetime of a session token issued by POST /api/auth.
	DefaultJWTTTL = 12 * time.Hour
)

// Limits.
const (
	// MaxPBAFileSize caps a single post-breach action upload.
	MaxPBAFileSize = 64 << 20

	// MaxRequestBodySize caps JSON request bodies.
	MaxRequestBodySize = 1 << 20
)
