package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600

	// CredentialFilePerm is the permission for stored credential files.
	CredentialFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token requests.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 5

	// LowRetryMax is used for operations that should retry fewer times.
	LowRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// ExtendedRetryWaitMax is used for operations that need longer waits.
	ExtendedRetryWaitMax = 30 * time.Second

	// MaxRetryAfter caps server-provided Retry-After hints.
	MaxRetryAfter = time.Hour
)

// Rate limiting defaults, matching the published iNaturalist quotas of
// roughly 1 request/second sustained and 10k requests/day.
const (
	// DefaultPerSecond is the default requests-per-second bucket capacity.
	DefaultPerSecond = 1

	// DefaultPerSecondBurst allows short bursts above the sustained rate.
	DefaultPerSecondBurst = 5

	// DefaultPerDay is the default requests-per-day quota.
	DefaultPerDay = 10000
)

// Cache defaults.
const (
	// DefaultCacheSize is the maximum number of entries in the memory cache.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default freshness window for cached responses.
	DefaultCacheTTL = 5 * time.Minute
)

// Pagination defaults.
const (
	// DefaultPageSize is the default number of results per page.
	DefaultPageSize = 30

	// MaxPageSize is the largest per_page the API accepts.
	MaxPageSize = 200
)

// Token lifecycle.
const (
	// TokenExpirationBuffer is the buffer time before token expiration
	// within which a token is treated as already expired.
	TokenExpirationBuffer = 30 * time.Second

	// DefaultTokenTTL is assumed when the token endpoint omits expires_in.
	DefaultTokenTTL = 24 * time.Hour
)

// Circuit breaker defaults.
const (
	// CircuitBreakerThreshold is the failure count that opens the circuit.
	CircuitBreakerThreshold = 5

	// CircuitBreakerTimeout is how long an open circuit rejects requests
	// before probing again.
	CircuitBreakerTimeout = 30 * time.Second

	// CircuitBreakerSuccessThreshold is the success count that closes a
	// half-open circuit.
	CircuitBreakerSuccessThreshold = 2
)

// Circuit breaker states.
const (
	StatusOpen     = "open"
	StatusHalfOpen = "half-open"
	StatusClosed   = "closed"
)

// API endpoints.
const (
	// DefaultAPIEndpoint is the iNaturalist v1 API base URL.
	DefaultAPIEndpoint = "https://api.inaturalist.org/v1"

	// DefaultTokenURL is the iNaturalist OAuth2 token endpoint.
	DefaultTokenURL = "https://www.inaturalist.org/oauth/token"
)
