package resilience

import (
	"errors"
	"sync"

	"github.com/sony/gobreaker/v2"

	nphttp "github.com/netfabric-io/npapi/internal/http"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// BreakerGroup owns one circuit breaker per logical backend target so
// failures against one target never throttle calls to another. Breaker
// state lives for the process lifetime and is never persisted.
type BreakerGroup struct {
	mutex    sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[*nphttp.Response]
	config   *npapi.CircuitBreakerConfig
	logger   Logger
}

// NewBreakerGroup creates a group with the given initial policy. A nil
// config selects the default policy.
func NewBreakerGroup(config *npapi.CircuitBreakerConfig, logger Logger) *BreakerGroup {
	if config == nil {
		config = npapi.DefaultCircuitBreakerConfig()
	}

	return &BreakerGroup{
		breakers: make(map[string]*gobreaker.CircuitBreaker[*nphttp.Response]),
		config:   config,
		logger:   logger,
	}
}

// Execute runs fn through the target's breaker. When the circuit is open,
// or a half-open breaker has no probe budget left, fn is not invoked and a
// CircuitOpenError is returned.
func (g *BreakerGroup) Execute(target string, fn func() (*nphttp.Response, error)) (*nphttp.Response, error) {
	breaker := g.breaker(target)

	resp, err := breaker.Execute(fn)
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			return nil, &npapi.CircuitOpenError{Target: target, State: npapi.CircuitOpen}
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, &npapi.CircuitOpenError{Target: target, State: npapi.CircuitHalfOpen}
		default:
			return nil, err
		}
	}

	return resp, nil
}

// State returns the target breaker's current state. Targets without a
// breaker yet report Closed.
func (g *BreakerGroup) State(target string) npapi.CircuitState {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	breaker, ok := g.breakers[target]
	if !ok {
		return npapi.CircuitClosed
	}

	return convertState(breaker.State())
}

// Reset discards the target's breaker so the next call starts from Closed
// with cleared counters. Operator escape hatch, never invoked automatically.
func (g *BreakerGroup) Reset(target string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	delete(g.breakers, target)
}

// SetConfig swaps the breaker policy. Existing breakers are discarded so
// every target picks up the new policy on its next call.
func (g *BreakerGroup) SetConfig(config *npapi.CircuitBreakerConfig) {
	if config == nil {
		config = npapi.DefaultCircuitBreakerConfig()
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.config = config
	g.breakers = make(map[string]*gobreaker.CircuitBreaker[*nphttp.Response])
}

// Config returns the currently active breaker policy.
func (g *BreakerGroup) Config() *npapi.CircuitBreakerConfig {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.config
}

func (g *BreakerGroup) breaker(target string) *gobreaker.CircuitBreaker[*nphttp.Response] {
	g.mutex.RLock()
	breaker, ok := g.breakers[target]
	g.mutex.RUnlock()

	if ok {
		return breaker
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	// Racing callers may have created it while we upgraded the lock.
	breaker, ok = g.breakers[target]
	if !ok {
		breaker = g.newBreaker(target, g.config)
		g.breakers[target] = breaker
	}

	return breaker
}

func (g *BreakerGroup) newBreaker(target string, config *npapi.CircuitBreakerConfig) *gobreaker.CircuitBreaker[*nphttp.Response] {
	logger := g.logger

	settings := gobreaker.Settings{
		Name:        target,
		MaxRequests: config.HalfOpenProbeCount,
		Interval:    config.Interval,
		Timeout:     config.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state changed", map[string]interface{}{
					"target": name,
					"from":   convertState(from).String(),
					"to":     convertState(to).String(),
				})
			}
		},
		IsSuccessful: countsAsSuccess,
	}

	return gobreaker.NewCircuitBreaker[*nphttp.Response](settings)
}

// countsAsSuccess decides which outcomes mark the backend unhealthy. Client
// errors prove the backend is answering, and a caller-imposed deadline says
// nothing about backend health, so neither counts as a breaker failure.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}

	deadlineErr := &npapi.DeadlineExceededError{}
	if errors.As(err, &deadlineErr) {
		return true
	}

	backendErr := &npapi.BackendError{}
	if errors.As(err, &backendErr) {
		return backendErr.StatusCode < 500 && backendErr.StatusCode != 429
	}

	return false
}

func convertState(state gobreaker.State) npapi.CircuitState {
	switch state {
	case gobreaker.StateOpen:
		return npapi.CircuitOpen
	case gobreaker.StateHalfOpen:
		return npapi.CircuitHalfOpen
	case gobreaker.StateClosed:
		return npapi.CircuitClosed
	default:
		return npapi.CircuitClosed
	}
}
