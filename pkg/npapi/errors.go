package npapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies transport-level failures so retry policies can match
// on failure class rather than on concrete error values.
type ErrorKind string

const (
	// ErrorKindConnection covers refused/reset connections and DNS failures.
	ErrorKindConnection ErrorKind = "connection"

	// ErrorKindTLS covers certificate and handshake failures.
	ErrorKindTLS ErrorKind = "tls"

	// ErrorKindTimeout covers network timeouts below the caller's deadline.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindMalformedResponse covers responses that could not be read or parsed.
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired      = errors.New("config is required")
	ErrEndpointRequired    = errors.New("API endpoint is required")
	ErrNoSessionConfigured = errors.New("no session provider configured")
	ErrSkipTLSOnlyInDev    = errors.New("skipTLS is only allowed in development environments")
	ErrNodeInfoFailed      = errors.New("node info request failed")
)

// TransportError reports a failure to complete a single HTTP exchange:
// the request never produced a usable response.
type TransportError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s) during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is the error document the NSX policy backend returns.
type APIError struct {
	ErrorCode    int    `json:"error_code"            yaml:"error_code"`
	ErrorMessage string `json:"error_message"         yaml:"error_message"`
	ModuleName   string `json:"module_name,omitempty" yaml:"module_name,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (code: %d)", e.ModuleName, e.ErrorMessage, e.ErrorCode)
}

// BackendError reports a completed exchange that the backend rejected
// (4xx/5xx). The raw body is retained for callers that need more than the
// parsed error document.
type BackendError struct {
	StatusCode int
	APIError   *APIError
	Body       []byte
}

func (e *BackendError) Error() string {
	if e.APIError != nil {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.APIError.Error())
	}

	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

func (e *BackendError) Unwrap() error {
	if e.APIError != nil {
		return e.APIError
	}

	return nil
}

// RetryExhaustedError wraps the last observed error after the retry budget
// was spent on a retryable failure.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// CircuitOpenError is returned without any network attempt when the target's
// breaker is open, or when a half-open breaker has no probe budget left.
type CircuitOpenError struct {
	Target string
	State  CircuitState
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker for %q is %s, request rejected", e.Target, e.State)
}

// DeadlineExceededError reports that the caller-supplied deadline expired
// before the call completed; remaining retry budget is not consumed.
type DeadlineExceededError struct {
	Err error
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("deadline exceeded: %v", e.Err)
}

func (e *DeadlineExceededError) Unwrap() error {
	return e.Err
}

// ParseAPIError parses an NSX error document from a response body. A nil
// result with a nil error means the body held no parsable error document.
func ParseAPIError(data []byte) (*APIError, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var apiErr APIError

	err := json.Unmarshal(data, &apiErr)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal API error: %w", err)
	}

	if apiErr.ErrorCode == 0 && apiErr.ErrorMessage == "" {
		return nil, nil
	}

	return &apiErr, nil
}

// IsNotFound checks if the error is a backend 404.
func IsNotFound(err error) bool {
	return isBackendStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks if the error is a backend 401.
func IsUnauthorized(err error) bool {
	return isBackendStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error is a backend 403.
func IsForbidden(err error) bool {
	return isBackendStatus(err, http.StatusForbidden)
}

// IsConflict checks if the error is a backend 409 (stale revision).
func IsConflict(err error) bool {
	return isBackendStatus(err, http.StatusConflict)
}

func isBackendStatus(err error, status int) bool {
	backendErr := &BackendError{}
	if errors.As(err, &backendErr) {
		return backendErr.StatusCode == status
	}

	return false
}

// IsCircuitOpen checks if the error is a breaker fast-fail.
func IsCircuitOpen(err error) bool {
	circuitErr := &CircuitOpenError{}

	return errors.As(err, &circuitErr)
}

// IsRetryExhausted checks if the error wraps a spent retry budget.
func IsRetryExhausted(err error) bool {
	exhaustedErr := &RetryExhaustedError{}

	return errors.As(err, &exhaustedErr)
}

// IsDeadlineExceeded checks if the error is a caller-deadline expiry.
func IsDeadlineExceeded(err error) bool {
	deadlineErr := &DeadlineExceededError{}

	return errors.As(err, &deadlineErr)
}

// TransportKind returns the transport failure class, or "" if the error is
// not a transport error.
func TransportKind(err error) ErrorKind {
	transportErr := &TransportError{}
	if errors.As(err, &transportErr) {
		return transportErr.Kind
	}

	return ""
}

// StatusCode returns the backend status code carried by the error chain,
// or 0 when no completed exchange is present.
func StatusCode(err error) int {
	backendErr := &BackendError{}
	if errors.As(err, &backendErr) {
		return backendErr.StatusCode
	}

	return 0
}
