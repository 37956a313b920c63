package constants

import (
	"time"
)

// Vault API defaults
const (
	// DefaultAPIBaseURL - backend address used when nothing else is configured
	DefaultAPIBaseURL = "http://localhost:5000"

	// DefaultRequestTimeout - per-request timeout applied to every API call (30 seconds)
	DefaultRequestTimeout = 30 * time.Second

	// DefaultHealthRetries - retry attempts for the /health probe only.
	// Auth and file operations are never retried.
	DefaultHealthRetries = 3

	// HealthRetryWaitMin / HealthRetryWaitMax bound the backoff between health probes
	HealthRetryWaitMin = 200 * time.Millisecond
	HealthRetryWaitMax = 2 * time.Second

	// DefaultRequestsPerSecond - client-side limiter rate (0 disables the limiter)
	DefaultRequestsPerSecond = 0

	// RateLimitBurst - bucket capacity when the limiter is enabled
	RateLimitBurst = 10
)

// Vault conventions
const (
	// FolderMarker - name of the empty object that makes a path prefix show up as a folder
	FolderMarker = ".folder"

	// MinPasswordLength - signup rejects shorter passwords before any request is made
	MinPasswordLength = 6
)

// Persisted client state keys
const (
	MetadataKeyToken        = "auth_token"
	MetadataKeyRefreshToken = "refresh_token"
	MetadataKeyUser         = "user_data"
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (15 seconds)
	HTTPDialTimeout = 15 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout - budget for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)

// Log rotation
const (
	LogMaxSizeMB  = 10
	LogMaxBackups = 5
	LogMaxAgeDays = 30
)
