package npapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/netfabric-io/npapi/internal/constants"
)

// CircuitState is the observable state of one target's circuit breaker.
type CircuitState int32

const (
	// CircuitClosed means calls pass through normally.
	CircuitClosed CircuitState = iota

	// CircuitOpen means calls fail fast without a network attempt.
	CircuitOpen

	// CircuitHalfOpen means a bounded number of probe calls are allowed
	// through to test backend recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Response is the outcome of one protected API call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte

	// Duration is the wall time of the whole protected call, including
	// retries and backoff sleeps.
	Duration time.Duration

	// Attempts is the number of transport exchanges performed.
	Attempts int
}

// RetryPolicyConfig controls the retry layer. The zero value disables
// retries; replacing the active policy via Client.SetRetryPolicy takes
// effect for subsequent calls only. In-flight calls keep the policy they
// captured at start.
type RetryPolicyConfig struct {
	// MaxRetries is the number of re-attempts after the initial try.
	MaxRetries int

	// BaseDelay is the first backoff sleep.
	BaseDelay time.Duration

	// MaxDelay caps individual backoff sleeps.
	MaxDelay time.Duration

	// BackoffMultiplier scales the delay per attempt (>= 1).
	BackoffMultiplier float64

	// RetryableStatusCodes lists backend statuses worth re-attempting.
	RetryableStatusCodes []int

	// RetryableErrorKinds lists transport failure classes worth re-attempting.
	RetryableErrorKinds []ErrorKind
}

// DefaultRetryPolicyConfig returns the retry policy used when none is
// configured.
func DefaultRetryPolicyConfig() *RetryPolicyConfig {
	return &RetryPolicyConfig{
		MaxRetries:           constants.DefaultRetryMax,
		BaseDelay:            500 * time.Millisecond,
		MaxDelay:             10 * time.Second,
		BackoffMultiplier:    2.0,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
		RetryableErrorKinds:  []ErrorKind{ErrorKindConnection, ErrorKindTimeout},
	}
}

// CircuitBreakerConfig controls the per-target breakers.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold uint32

	// OpenDuration is how long an open circuit rejects calls before
	// transitioning to half-open.
	OpenDuration time.Duration

	// HalfOpenProbeCount is both the probe budget while half-open and the
	// number of consecutive probe successes required to close the circuit.
	HalfOpenProbeCount uint32

	// Interval, when positive, periodically clears the closed-state failure
	// count so stale failures do not accumulate across quiet periods.
	Interval time.Duration
}

// DefaultCircuitBreakerConfig returns the breaker policy used when none is
// configured.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailureThreshold:   constants.CircuitBreakerThreshold,
		OpenDuration:       constants.CircuitBreakerOpenDuration,
		HalfOpenProbeCount: constants.CircuitBreakerProbeCount,
	}
}

// CallOption adjusts a single call.
type CallOption func(*CallSettings)

// CallSettings carries per-call adjustments through the protected path.
type CallSettings struct {
	// RetrySafe marks a non-idempotent operation as safe to retry.
	RetrySafe bool

	// IdempotencyKey is sent as the X-Idempotency-Key header and implies
	// RetrySafe.
	IdempotencyKey string
}

// WithRetrySafe marks a POST as safe to re-attempt without duplicating
// side effects on the backend.
func WithRetrySafe() CallOption {
	return func(s *CallSettings) {
		s.RetrySafe = true
	}
}

// WithIdempotencyKey attaches a caller-supplied idempotency key, making the
// operation retryable.
func WithIdempotencyKey(key string) CallOption {
	return func(s *CallSettings) {
		s.IdempotencyKey = key
		s.RetrySafe = true
	}
}

// RawClient exposes the generic verb methods. Every call routes through the
// circuit breaker and retry policy with auth applied.
type RawClient interface {
	Get(ctx context.Context, path string, query url.Values) (*Response, error)
	Post(ctx context.Context, path string, body interface{}, opts ...CallOption) (*Response, error)
	Put(ctx context.Context, path string, body interface{}) (*Response, error)
	Patch(ctx context.Context, path string, body interface{}) (*Response, error)
	Delete(ctx context.Context, path string) (*Response, error)
}

// DomainsClient manages policy domains.
type DomainsClient interface {
	List(ctx context.Context, params *QueryParams) (*DomainList, error)
	Get(ctx context.Context, domainID string) (*Domain, error)
	Create(ctx context.Context, domain *Domain) (*Domain, error)
	Delete(ctx context.Context, domainID string) error
}

// GroupsClient manages groups within a domain.
type GroupsClient interface {
	List(ctx context.Context, domainID string, params *QueryParams) (*GroupList, error)
	Get(ctx context.Context, domainID, groupID string) (*Group, error)
	Create(ctx context.Context, domainID string, group *Group) (*Group, error)
	Update(ctx context.Context, domainID string, group *Group) (*Group, error)
	Delete(ctx context.Context, domainID, groupID string) error
}

// SecurityPoliciesClient manages security policies within a domain.
type SecurityPoliciesClient interface {
	List(ctx context.Context, domainID string, params *QueryParams) (*SecurityPolicyList, error)
	Get(ctx context.Context, domainID, policyID string) (*SecurityPolicy, error)
	Create(ctx context.Context, domainID string, policy *SecurityPolicy) (*SecurityPolicy, error)
	Update(ctx context.Context, domainID string, policy *SecurityPolicy) (*SecurityPolicy, error)
	Delete(ctx context.Context, domainID, policyID string) error
}

// ServicesClient manages port/protocol service definitions.
type ServicesClient interface {
	List(ctx context.Context, params *QueryParams) (*ServiceList, error)
	Get(ctx context.Context, serviceID string) (*Service, error)
	Create(ctx context.Context, service *Service) (*Service, error)
	Update(ctx context.Context, service *Service) (*Service, error)
	Delete(ctx context.Context, serviceID string) error
}

// ResourceClients provides access to the resource-specific clients.
type ResourceClients interface {
	Domains() DomainsClient
	Groups() GroupsClient
	SecurityPolicies() SecurityPoliciesClient
	Services() ServicesClient
}

// ResilienceControls exposes runtime policy management. Policy swaps apply
// to subsequent calls; ResetCircuitBreaker is an operator escape hatch and
// is never invoked automatically.
type ResilienceControls interface {
	SetRetryPolicy(config *RetryPolicyConfig)
	SetCircuitBreakerPolicy(config *CircuitBreakerConfig)
	ResetCircuitBreaker(target string)
	BreakerState(target string) CircuitState
}

// Client is the public surface of the resilient policy API client. It is
// safe for concurrent use by multiple goroutines.
type Client interface {
	RawClient
	ResourceClients
	ResilienceControls

	// ExecuteBatch runs the operations sequentially in input order through
	// the protected call path. One operation's failure never aborts the
	// batch; the result slice is one-to-one with the input.
	ExecuteBatch(ctx context.Context, operations []BatchOperation) []BatchResult

	// TestConnection probes the backend with a side-effect-free node info
	// call, swallowing errors into false.
	TestConnection(ctx context.Context) bool

	// NodeInfo fetches manager node metadata through the protected call
	// path.
	NodeInfo(ctx context.Context) (*NodeInfo, error)

	// GetToken returns the current bearer token, refreshing it if needed.
	GetToken(ctx context.Context) (string, error)

	// Close releases the transport's connection pool and any cache
	// resources. The client must not be used afterwards.
	Close() error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a npapi.Client.
//
// # Authentication precedence
//
//  1. AccessToken: used directly as a static Bearer token.
//  2. AccessToken + Username/Password: the token is tried first; on expiry
//     the client falls back to the password grant.
//  3. ClientID/ClientSecret: OAuth2 client_credentials grant.
//  4. Username/Password: OAuth2 password grant.
//  5. No credentials: requests are sent without authentication.
//
// If authentication is required and TokenURL is empty, npclient.New
// discovers the token endpoint from the API root.
type Config struct {
	// Endpoint is the base URL of the policy manager
	// (e.g., "https://nsx.example.com").
	Endpoint string

	// Authentication options (provide one).
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	AccessToken  string
	TokenURL     string

	// Retry is the initial retry policy; nil selects
	// DefaultRetryPolicyConfig.
	Retry *RetryPolicyConfig

	// CircuitBreaker is the initial breaker policy; nil selects
	// DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Cache configures the optional read-through cache for GET calls.
	Cache *CacheConfig

	// HTTPTimeout bounds a single transport exchange. Callers should prefer
	// context deadlines; this is the backstop for calls without one.
	HTTPTimeout time.Duration

	// Debug enables verbose request/response logging when Logger is set.
	Debug bool

	// Logger receives structured events; nil disables logging.
	Logger Logger

	// SkipTLSVerify is honored only during token URL discovery and only in
	// development mode. Do not use in production.
	SkipTLSVerify bool

	// UserAgent overrides the default User-Agent header.
	UserAgent string
}
