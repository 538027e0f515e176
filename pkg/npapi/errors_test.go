package npapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAPIError(t *testing.T) {
	t.Parallel()

	t.Run("parses NSX error document", func(t *testing.T) {
		t.Parallel()

		apiErr, err := ParseAPIError([]byte(`{"error_code": 500045, "error_message": "Path infra/domains/missing is invalid", "module_name": "Policy"}`))
		require.NoError(t, err)
		require.NotNil(t, apiErr)
		assert.Equal(t, 500045, apiErr.ErrorCode)
		assert.Equal(t, "Policy", apiErr.ModuleName)
		assert.Contains(t, apiErr.Error(), "code: 500045")
	})

	t.Run("empty body yields nothing", func(t *testing.T) {
		t.Parallel()

		apiErr, err := ParseAPIError(nil)
		require.NoError(t, err)
		assert.Nil(t, apiErr)
	})

	t.Run("JSON without error fields yields nothing", func(t *testing.T) {
		t.Parallel()

		apiErr, err := ParseAPIError([]byte(`{"results": []}`))
		require.NoError(t, err)
		assert.Nil(t, apiErr)
	})

	t.Run("non-JSON body is an error", func(t *testing.T) {
		t.Parallel()

		apiErr, err := ParseAPIError([]byte("<html>bad gateway</html>"))
		require.Error(t, err)
		assert.Nil(t, apiErr)
	})
}

func TestBackendStatusHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		matcher func(error) bool
		want    bool
	}{
		{"not found", &BackendError{StatusCode: http.StatusNotFound}, IsNotFound, true},
		{"wrapped not found", fmt.Errorf("getting domain: %w", &BackendError{StatusCode: http.StatusNotFound}), IsNotFound, true},
		{"conflict is not not-found", &BackendError{StatusCode: http.StatusConflict}, IsNotFound, false},
		{"conflict", &BackendError{StatusCode: http.StatusConflict}, IsConflict, true},
		{"unauthorized", &BackendError{StatusCode: http.StatusUnauthorized}, IsUnauthorized, true},
		{"forbidden", &BackendError{StatusCode: http.StatusForbidden}, IsForbidden, true},
		{"transport error has no status", &TransportError{Kind: ErrorKindConnection, Op: "GET /api/v1/node"}, IsNotFound, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.matcher(tt.err))
		})
	}
}

func TestErrorClassHelpers(t *testing.T) {
	t.Parallel()

	circuitErr := &CircuitOpenError{Target: "nsx.example.com", State: CircuitOpen}
	exhaustedErr := &RetryExhaustedError{Attempts: 4, Err: &BackendError{StatusCode: http.StatusServiceUnavailable}}
	deadlineErr := &DeadlineExceededError{Err: errors.New("context deadline exceeded")}

	assert.True(t, IsCircuitOpen(circuitErr))
	assert.True(t, IsCircuitOpen(fmt.Errorf("listing domains: %w", circuitErr)))
	assert.False(t, IsCircuitOpen(exhaustedErr))

	assert.True(t, IsRetryExhausted(exhaustedErr))
	assert.Contains(t, exhaustedErr.Error(), "after 4 attempts")

	assert.True(t, IsDeadlineExceeded(deadlineErr))
	assert.False(t, IsDeadlineExceeded(circuitErr))

	assert.Contains(t, circuitErr.Error(), `"nsx.example.com" is open`)
}

func TestTransportKind(t *testing.T) {
	t.Parallel()

	tlsErr := &TransportError{Kind: ErrorKindTLS, Op: "GET /api/v1/node", Err: errors.New("x509: unknown authority")}

	assert.Equal(t, ErrorKindTLS, TransportKind(tlsErr))
	assert.Equal(t, ErrorKindTLS, TransportKind(fmt.Errorf("probing node: %w", tlsErr)))
	assert.Equal(t, ErrorKind(""), TransportKind(&BackendError{StatusCode: http.StatusBadGateway}))
	assert.Equal(t, ErrorKind(""), TransportKind(nil))
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	backendErr := &BackendError{StatusCode: http.StatusTooManyRequests}

	assert.Equal(t, http.StatusTooManyRequests, StatusCode(backendErr))
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(&RetryExhaustedError{Attempts: 3, Err: backendErr}))
	assert.Equal(t, 0, StatusCode(&TransportError{Kind: ErrorKindTimeout}))
	assert.Equal(t, 0, StatusCode(nil))
}

func TestBackendError_Unwrap(t *testing.T) {
	t.Parallel()

	apiErr := &APIError{ErrorCode: 202, ErrorMessage: "revision mismatch", ModuleName: "Policy"}
	backendErr := &BackendError{StatusCode: http.StatusConflict, APIError: apiErr}

	var unwrapped *APIError

	require.ErrorAs(t, backendErr, &unwrapped)
	assert.Equal(t, 202, unwrapped.ErrorCode)

	bare := &BackendError{StatusCode: http.StatusBadGateway}
	assert.Equal(t, "backend returned 502", bare.Error())
}
