// Package resilience implements the retry and circuit breaker layers that
// sit between the API client and the transport.
package resilience

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	nphttp "github.com/netfabric-io/npapi/internal/http"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// Logger interface for resilience-layer logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Attempt is one unit of work against the transport. It is invoked once per
// attempt so auth headers are re-resolved on every try.
type Attempt func(ctx context.Context) (*nphttp.Response, error)

// RetryExecutor re-invokes failed attempts according to the active policy.
// The policy can be hot-swapped; a call keeps the policy it captured at
// start.
type RetryExecutor struct {
	config atomic.Pointer[npapi.RetryPolicyConfig]
	logger Logger
}

// NewRetryExecutor creates an executor with the given initial policy. A nil
// config selects the default policy.
func NewRetryExecutor(config *npapi.RetryPolicyConfig, logger Logger) *RetryExecutor {
	if config == nil {
		config = npapi.DefaultRetryPolicyConfig()
	}

	executor := &RetryExecutor{logger: logger}
	executor.config.Store(config)

	return executor
}

// SetPolicy atomically swaps the active policy for subsequent calls.
func (e *RetryExecutor) SetPolicy(config *npapi.RetryPolicyConfig) {
	if config == nil {
		config = npapi.DefaultRetryPolicyConfig()
	}

	e.config.Store(config)
}

// Policy returns the currently active policy.
func (e *RetryExecutor) Policy() *npapi.RetryPolicyConfig {
	return e.config.Load()
}

// Execute runs fn, re-attempting retryable failures up to the policy's
// budget. Non-idempotent calls get exactly one attempt. The returned count
// is the number of attempts actually made.
func (e *RetryExecutor) Execute(ctx context.Context, idempotent bool, fn Attempt) (*nphttp.Response, int, error) {
	cfg := e.config.Load()

	maxRetries := cfg.MaxRetries
	if !idempotent || maxRetries < 0 {
		maxRetries = 0
	}

	var (
		response      *nphttp.Response
		attempts      int
		lastRetryable bool
	)

	err := retry.Do(ctx, e.backoff(cfg, maxRetries), func(ctx context.Context) error {
		attempts++

		resp, err := fn(ctx)
		if err == nil {
			response = resp

			return nil
		}

		if !retryable(cfg, err) {
			lastRetryable = false

			return err
		}

		lastRetryable = true

		if e.logger != nil && attempts <= maxRetries {
			e.logger.Debug("retrying request after backoff", map[string]interface{}{
				"attempt": attempts,
				"error":   err.Error(),
			})
		}

		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, attempts, e.finalError(err, attempts, maxRetries, lastRetryable)
	}

	return response, attempts, nil
}

// finalError maps retry.Do's outcome into the error taxonomy. Deadline
// expiry wins. Exhausted-budget wrapping applies only when a budget existed
// to spend: a call that was never allowed to retry propagates its original
// error.
func (e *RetryExecutor) finalError(err error, attempts, maxRetries int, lastRetryable bool) error {
	deadlineErr := &npapi.DeadlineExceededError{}
	if errors.As(err, &deadlineErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &npapi.DeadlineExceededError{Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	if lastRetryable && maxRetries > 0 && attempts > maxRetries {
		return &npapi.RetryExhaustedError{Attempts: attempts, Err: err}
	}

	return err
}

// retryable classifies an attempt's error against the policy. Deadline
// expiry and canceled contexts are never retryable.
func retryable(cfg *npapi.RetryPolicyConfig, err error) bool {
	deadlineErr := &npapi.DeadlineExceededError{}
	if errors.As(err, &deadlineErr) || errors.Is(err, context.Canceled) {
		return false
	}

	backendErr := &npapi.BackendError{}
	if errors.As(err, &backendErr) {
		return slices.Contains(cfg.RetryableStatusCodes, backendErr.StatusCode)
	}

	transportErr := &npapi.TransportError{}
	if errors.As(err, &transportErr) {
		return slices.Contains(cfg.RetryableErrorKinds, transportErr.Kind)
	}

	return false
}

// backoff builds the sleep schedule: exponential growth by the configured
// multiplier, jittered by a tenth of the base delay, capped at MaxDelay.
func (e *RetryExecutor) backoff(cfg *npapi.RetryPolicyConfig, maxRetries int) retry.Backoff {
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Millisecond
	}

	backoff := exponential(baseDelay, cfg.BackoffMultiplier)
	backoff = retry.WithJitter(baseDelay/10, backoff)

	if cfg.MaxDelay > 0 {
		backoff = retry.WithCappedDuration(cfg.MaxDelay, backoff)
	}

	return retry.WithMaxRetries(uint64(maxRetries), backoff) //nolint:gosec // non-negative by construction
}

// exponential grows the delay by multiplier per attempt. retry.NewExponential
// always doubles, so other multipliers need a custom schedule; a multiplier
// of exactly 1 yields constant baseDelay delays.
func exponential(baseDelay time.Duration, multiplier float64) retry.Backoff {
	if multiplier < 1 || multiplier == 2.0 {
		return retry.NewExponential(baseDelay)
	}

	attempt := 0

	return retry.BackoffFunc(func() (time.Duration, bool) {
		delay := float64(baseDelay)
		for i := 0; i < attempt; i++ {
			delay *= multiplier
			if delay > float64(1<<62) {
				delay = float64(1 << 62)

				break
			}
		}

		attempt++

		return time.Duration(delay), false
	})
}
