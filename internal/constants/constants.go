package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for a single HTTP exchange.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as discovery and
	// connectivity probes.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 3

	// TokenRetryMax is the retry budget for token endpoint calls.
	TokenRetryMax = 2

	// DefaultRetryWaitMin is the minimum backoff for token endpoint calls.
	DefaultRetryWaitMin = 500 * time.Millisecond

	// DefaultRetryWaitMax is the maximum backoff for token endpoint calls.
	DefaultRetryWaitMax = 5 * time.Second
)

// Circuit breaker defaults.
const (
	// CircuitBreakerThreshold is the consecutive-failure count that opens a
	// circuit.
	CircuitBreakerThreshold = 5

	// CircuitBreakerOpenDuration is how long an open circuit rejects calls.
	CircuitBreakerOpenDuration = 30 * time.Second

	// CircuitBreakerProbeCount is the half-open probe budget.
	CircuitBreakerProbeCount = 2
)

// Token handling.
const (
	// TokenExpirationBuffer is the margin before expiry at which a token is
	// treated as invalid, so it is refreshed before the backend rejects it.
	TokenExpirationBuffer = 30 * time.Second
)

// Pagination and display limits.
const (
	// StandardPageSize is the common page size for list calls.
	StandardPageSize = 50

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2
)

// API path prefixes.
const (
	// PolicyAPIPrefix is the base path of the policy API.
	PolicyAPIPrefix = "/policy/api/v1"

	// InfraDomainsPath is the domains collection path.
	InfraDomainsPath = PolicyAPIPrefix + "/infra/domains"

	// InfraServicesPath is the services collection path.
	InfraServicesPath = PolicyAPIPrefix + "/infra/services"

	// NodeInfoPath is the side-effect-free connectivity probe path.
	NodeInfoPath = "/api/v1/node"

	// TokenPath is the OAuth2 token endpoint path on the manager.
	TokenPath = "/oauth/token"
)

// Output format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)
