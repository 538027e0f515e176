// Package client implements the resilient policy API client behind the
// npapi.Client interface.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/netfabric-io/npapi/internal/auth"
	"github.com/netfabric-io/npapi/internal/constants"
	nphttp "github.com/netfabric-io/npapi/internal/http"
	"github.com/netfabric-io/npapi/internal/resilience"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// Static errors for err113 compliance.
var ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")

// Client implements the npapi.Client interface. Every call routes through
// the circuit breaker, then the retry policy, then the transport.
type Client struct {
	httpClient   *nphttp.Client
	tokenManager auth.TokenManager
	retry        *resilience.RetryExecutor
	breakers     *resilience.BreakerGroup
	cache        npapi.Cache
	cacheTTL     time.Duration
	baseURL      string
	target       string
	logger       npapi.Logger

	domains          npapi.DomainsClient
	groups           npapi.GroupsClient
	securityPolicies npapi.SecurityPoliciesClient
	services         npapi.ServicesClient
}

// createTokenManager creates the appropriate token manager for the
// configured credentials.
func createTokenManager(config *npapi.Config) auth.TokenManager {
	if config.AccessToken != "" && config.Username != "" && config.Password != "" {
		return &fallbackTokenManager{
			staticToken: config.AccessToken,
			oauthManager: auth.NewOAuth2TokenManager(&auth.OAuth2Config{
				TokenURL: tokenURL(config),
				Username: config.Username,
				Password: config.Password,
			}),
		}
	}

	if config.AccessToken != "" {
		return &staticTokenManager{token: config.AccessToken}
	}

	if config.ClientID != "" && config.ClientSecret != "" {
		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     tokenURL(config),
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Username:     config.Username,
			Password:     config.Password,
			RefreshToken: config.RefreshToken,
		})
	}

	if config.Username != "" && config.Password != "" {
		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL: tokenURL(config),
			Username: config.Username,
			Password: config.Password,
		})
	}

	return nil // No authentication
}

func tokenURL(config *npapi.Config) string {
	if config.TokenURL != "" {
		return config.TokenURL
	}

	return config.Endpoint + constants.TokenPath
}

// createHTTPClientOptions builds transport options from config.
func createHTTPClientOptions(config *npapi.Config) []nphttp.Option {
	var httpOpts []nphttp.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, nphttp.WithLogger(&loggerAdapter{logger: config.Logger}))
	}

	if config.Debug {
		httpOpts = append(httpOpts, nphttp.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, nphttp.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, nphttp.WithTimeout(config.HTTPTimeout))
	}

	return httpOpts
}

// New creates a new policy API client.
func New(config *npapi.Config) (*Client, error) {
	if config == nil {
		return nil, npapi.ErrConfigRequired
	}

	if config.Endpoint == "" {
		return nil, npapi.ErrEndpointRequired
	}

	return NewWithTokenManager(config, createTokenManager(config))
}

// NewWithTokenManager creates a client with a custom token manager.
func NewWithTokenManager(config *npapi.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config == nil {
		return nil, npapi.ErrConfigRequired
	}

	if config.Endpoint == "" {
		return nil, npapi.ErrEndpointRequired
	}

	httpClient := nphttp.NewClient(config.Endpoint, tokenManager, createHTTPClientOptions(config)...)

	var resilienceLogger resilience.Logger
	if config.Logger != nil {
		resilienceLogger = &loggerAdapter{logger: config.Logger}
	}

	var (
		cache    npapi.Cache
		cacheTTL time.Duration
	)

	if config.Cache != nil && config.Cache.Type != npapi.CacheTypeNone {
		var err error

		cache, err = npapi.NewCacheFromConfig(config.Cache)
		if err != nil {
			return nil, fmt.Errorf("building cache: %w", err)
		}

		options := config.Cache.Options
		if options == nil {
			options = npapi.DefaultCacheOptions()
		}

		cacheTTL = options.TTL
	}

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		retry:        resilience.NewRetryExecutor(config.Retry, resilienceLogger),
		breakers:     resilience.NewBreakerGroup(config.CircuitBreaker, resilienceLogger),
		cache:        cache,
		cacheTTL:     cacheTTL,
		baseURL:      config.Endpoint,
		target:       httpClient.Host(),
		logger:       config.Logger,
	}

	client.domains = NewDomainsClient(client)
	client.groups = NewGroupsClient(client)
	client.securityPolicies = NewSecurityPoliciesClient(client)
	client.services = NewServicesClient(client)

	return client, nil
}

// do runs one request through the full protected path: circuit breaker,
// retry policy, transport. It is the single funnel every public call uses.
func (c *Client) do(ctx context.Context, req *nphttp.Request, settings npapi.CallSettings) (*npapi.Response, error) {
	start := time.Now()

	if settings.IdempotencyKey != "" {
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}

		req.Headers["X-Idempotency-Key"] = settings.IdempotencyKey
	}

	// POST duplicates side effects when replayed, so it is only retried
	// when the caller explicitly marked it safe.
	idempotent := req.Method != http.MethodPost || settings.RetrySafe

	var attempts int

	resp, err := c.breakers.Execute(c.target, func() (*nphttp.Response, error) {
		attemptResp, attemptCount, attemptErr := c.retry.Execute(ctx, idempotent, func(ctx context.Context) (*nphttp.Response, error) {
			return c.httpClient.Do(ctx, req)
		})
		attempts = attemptCount

		return attemptResp, attemptErr
	})

	duration := time.Since(start)

	c.logCall(req, resp, err, duration, attempts)

	if err != nil {
		return nil, err
	}

	c.invalidateOnWrite(ctx, req)

	return &npapi.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
		Duration:   duration,
		Attempts:   attempts,
	}, nil
}

// logCall emits one structured event per completed call. Logging is
// fire-and-forget: a panicking logger must never fail the call.
func (c *Client) logCall(req *nphttp.Request, resp *nphttp.Response, err error, duration time.Duration, attempts int) {
	if c.logger == nil {
		return
	}

	defer func() {
		_ = recover()
	}()

	fields := map[string]interface{}{
		"target":        c.target,
		"verb":          req.Method,
		"endpoint":      req.Path,
		"duration_ms":   duration.Milliseconds(),
		"attempts":      attempts,
		"breaker_state": c.breakers.State(c.target).String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		c.logger.Warn("API call failed", fields)

		return
	}

	fields["status"] = resp.StatusCode
	c.logger.Info("API call completed", fields)
}

// cacheKey identifies a GET response in the cache.
func (c *Client) cacheKey(path string, query url.Values) string {
	key := c.target + path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}

	return key
}

// invalidateOnWrite drops cached GET entries affected by a write verb: the
// object itself (with any query variant) and cached listings of its parent
// collection, so the next read observes the change.
func (c *Client) invalidateOnWrite(ctx context.Context, req *nphttp.Request) {
	if c.cache == nil || req.Method == http.MethodGet {
		return
	}

	_ = c.cache.DeletePrefix(ctx, c.target+parentPath(req.Path))
}

// parentPath strips the last path segment: the collection containing the
// written object.
func parentPath(path string) string {
	trimmed := strings.TrimSuffix(path, "/")

	idx := strings.LastIndex(trimmed, "/")
	if idx > 0 {
		return trimmed[:idx]
	}

	return trimmed
}

// Get implements npapi.RawClient. Fresh cached responses are served without
// a network attempt.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*npapi.Response, error) {
	key := c.cacheKey(path, query)

	if c.cache != nil {
		entry, cacheErr := c.cache.Get(ctx, key)
		if cacheErr == nil && entry != nil && !entry.Expired() {
			return &npapi.Response{
				StatusCode: entry.StatusCode,
				Body:       entry.Body,
			}, nil
		}
	}

	resp, err := c.do(ctx, &nphttp.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	}, npapi.CallSettings{})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		now := time.Now()

		entry := &npapi.CacheEntry{
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			StoredAt:   now,
		}
		if c.cacheTTL > 0 {
			entry.ExpiresAt = now.Add(c.cacheTTL)
		}

		_ = c.cache.Set(ctx, key, entry)
	}

	return resp, nil
}

// Post implements npapi.RawClient.
func (c *Client) Post(ctx context.Context, path string, body interface{}, opts ...npapi.CallOption) (*npapi.Response, error) {
	var settings npapi.CallSettings
	for _, opt := range opts {
		opt(&settings)
	}

	return c.do(ctx, &nphttp.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	}, settings)
}

// Put implements npapi.RawClient.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*npapi.Response, error) {
	return c.do(ctx, &nphttp.Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	}, npapi.CallSettings{})
}

// Patch implements npapi.RawClient.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*npapi.Response, error) {
	return c.do(ctx, &nphttp.Request{
		Method: http.MethodPatch,
		Path:   path,
		Body:   body,
	}, npapi.CallSettings{})
}

// Delete implements npapi.RawClient.
func (c *Client) Delete(ctx context.Context, path string) (*npapi.Response, error) {
	return c.do(ctx, &nphttp.Request{
		Method: http.MethodDelete,
		Path:   path,
	}, npapi.CallSettings{})
}

// ExecuteBatch implements npapi.Client. Operations run sequentially in
// input order; a slot's failure never aborts the remaining slots.
func (c *Client) ExecuteBatch(ctx context.Context, operations []npapi.BatchOperation) []npapi.BatchResult {
	results := make([]npapi.BatchResult, len(operations))

	for i, operation := range operations {
		opStart := time.Now()

		resp, err := c.do(ctx, &nphttp.Request{
			Method: operation.Method,
			Path:   operation.Path,
			Body:   operation.Body,
		}, npapi.CallSettings{RetrySafe: operation.RetrySafe})

		results[i] = npapi.BatchResult{
			ID:       operation.ID,
			Success:  err == nil,
			Response: resp,
			Error:    err,
			Duration: time.Since(opStart),
		}
	}

	return results
}

// TestConnection implements npapi.Client. The node info endpoint is free of
// side effects, so a failed probe is swallowed into false.
func (c *Client) TestConnection(ctx context.Context) bool {
	resp, err := c.do(ctx, &nphttp.Request{
		Method: http.MethodGet,
		Path:   constants.NodeInfoPath,
	}, npapi.CallSettings{})

	return err == nil && resp.StatusCode < 400
}

// NodeInfo fetches the manager node details behind TestConnection.
func (c *Client) NodeInfo(ctx context.Context) (*npapi.NodeInfo, error) {
	resp, err := c.do(ctx, &nphttp.Request{
		Method: http.MethodGet,
		Path:   constants.NodeInfoPath,
	}, npapi.CallSettings{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", npapi.ErrNodeInfoFailed, err)
	}

	var info npapi.NodeInfo

	err = json.Unmarshal(resp.Body, &info)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing response: %w", npapi.ErrNodeInfoFailed, err)
	}

	return &info, nil
}

// SetRetryPolicy implements npapi.ResilienceControls.
func (c *Client) SetRetryPolicy(config *npapi.RetryPolicyConfig) {
	c.retry.SetPolicy(config)
}

// SetCircuitBreakerPolicy implements npapi.ResilienceControls.
func (c *Client) SetCircuitBreakerPolicy(config *npapi.CircuitBreakerConfig) {
	c.breakers.SetConfig(config)
}

// ResetCircuitBreaker implements npapi.ResilienceControls. An empty target
// resets the client's own backend.
func (c *Client) ResetCircuitBreaker(target string) {
	if target == "" {
		target = c.target
	}

	c.breakers.Reset(target)
}

// BreakerState implements npapi.ResilienceControls.
func (c *Client) BreakerState(target string) npapi.CircuitState {
	if target == "" {
		target = c.target
	}

	return c.breakers.State(target)
}

// Domains implements npapi.ResourceClients.
func (c *Client) Domains() npapi.DomainsClient {
	return c.domains
}

// Groups implements npapi.ResourceClients.
func (c *Client) Groups() npapi.GroupsClient {
	return c.groups
}

// SecurityPolicies implements npapi.ResourceClients.
func (c *Client) SecurityPolicies() npapi.SecurityPoliciesClient {
	return c.securityPolicies
}

// Services implements npapi.ResourceClients.
func (c *Client) Services() npapi.ServicesClient {
	return c.services
}

// GetToken returns the current access token from the token manager.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	if c.tokenManager == nil {
		return "", npapi.ErrNoSessionConfigured
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// Close implements npapi.Client.
func (c *Client) Close() error {
	c.httpClient.Close()

	if closer, ok := c.cache.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// staticTokenManager provides a static token.
type staticTokenManager struct {
	mutex sync.Mutex
	token string
}

func (m *staticTokenManager) GetToken(_ context.Context) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.token, nil
}

func (m *staticTokenManager) RefreshToken(_ context.Context) error {
	return ErrStaticTokenCannotRefresh
}

func (m *staticTokenManager) SetToken(token string, _ time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.token = token
}

// loggerAdapter adapts npapi.Logger to the internal logger interfaces.
type loggerAdapter struct {
	logger npapi.Logger
}

func (l *loggerAdapter) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, fields)
}

func (l *loggerAdapter) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, fields)
}

func (l *loggerAdapter) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, fields)
}

// fallbackTokenManager tries the static token first, then falls back to
// the password grant once it stops working. The mutex guards the mode
// switch; the OAuth manager handles its own synchronization, so it is
// called outside the lock.
type fallbackTokenManager struct {
	mutex            sync.Mutex
	staticToken      string
	oauthManager     auth.TokenManager
	usingOAuth       bool
	staticTokenTried bool
}

func (m *fallbackTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.Lock()

	if !m.usingOAuth && m.staticToken != "" && !m.staticTokenTried {
		m.staticTokenTried = true
		token := m.staticToken
		m.mutex.Unlock()

		return token, nil
	}

	m.usingOAuth = true
	m.mutex.Unlock()

	token, err := m.oauthManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get OAuth token: %w", err)
	}

	return token, nil
}

func (m *fallbackTokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	firstFallback := !m.usingOAuth
	m.usingOAuth = true
	m.mutex.Unlock()

	if firstFallback {
		_, err := m.oauthManager.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to get OAuth token during refresh: %w", err)
		}

		return nil
	}

	err := m.oauthManager.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh OAuth token: %w", err)
	}

	return nil
}

func (m *fallbackTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	usingOAuth := m.usingOAuth

	if !usingOAuth {
		m.staticToken = token
	}
	m.mutex.Unlock()

	if usingOAuth {
		m.oauthManager.SetToken(token, expiresAt)
	}
}
