// Package http implements the transport layer: exactly one HTTP exchange
// per call, with auth and timeout applied. Retry and circuit breaking live
// above this layer so transports can be faked in tests.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netfabric-io/npapi/internal/auth"
	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// Logger interface for transport-level logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request describes one HTTP exchange.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
}

// Response is the raw outcome of one exchange.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte

	// Duration is the wall time of this single exchange.
	Duration time.Duration
}

// Option configures the transport.
type Option func(*Client)

// WithLogger sets the logger used for debug request/response events.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout bounds a single exchange for calls without a context deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// Client performs single HTTP exchanges against one backend. The underlying
// connection pool is shared by all calls and lives until Close.
type Client struct {
	baseURL      string
	tokenManager auth.TokenManager
	httpClient   *http.Client
	logger       Logger
	debug        bool
	userAgent    string
}

// NewClient creates a transport for the given base URL. tokenManager may be
// nil for unauthenticated use.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		tokenManager: tokenManager,
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		userAgent: "npapi-client/1.0",
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Host returns the backend host, used as the circuit breaker target key.
func (c *Client) Host() string {
	parsed, err := url.Parse(c.baseURL)
	if err != nil || parsed.Host == "" {
		return c.baseURL
	}

	return parsed.Host
}

// Close releases idle connections in the shared pool.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Do performs exactly one HTTP exchange. Backend rejections (4xx/5xx)
// return both the response and a BackendError; failures to complete the
// exchange return a TransportError or DeadlineExceededError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    httpReq.URL.String(),
		})
	}

	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyRequestError(ctx, req.Method, err)
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &npapi.TransportError{
			Kind: npapi.ErrorKindMalformedResponse,
			Op:   req.Method + " " + req.Path,
			Err:  err,
		}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":      req.Method,
			"url":         httpReq.URL.String(),
			"status_code": resp.StatusCode,
			"duration_ms": resp.Duration.Milliseconds(),
		})
	}

	if httpResp.StatusCode >= 400 {
		apiErr, _ := npapi.ParseAPIError(body)

		return resp, &npapi.BackendError{
			StatusCode: httpResp.StatusCode,
			APIError:   apiErr,
			Body:       body,
		}
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPatch,
		Path:   path,
		Body:   body,
	})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   path,
	})
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader

	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}

		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	// Auth is resolved per exchange, not per call, so retried attempts pick
	// up refreshed tokens.
	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting auth token: %w", err)
		}

		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	return httpReq, nil
}

// classifyRequestError maps a failed exchange into the error taxonomy.
func classifyRequestError(ctx context.Context, method string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &npapi.DeadlineExceededError{Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("request canceled: %w", err)
	}

	op := method

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return &npapi.TransportError{Kind: npapi.ErrorKindTLS, Op: op, Err: err}
	}

	var hostnameErr x509.HostnameError

	var unknownAuthorityErr x509.UnknownAuthorityError
	if errors.As(err, &hostnameErr) || errors.As(err, &unknownAuthorityErr) {
		return &npapi.TransportError{Kind: npapi.ErrorKindTLS, Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &npapi.TransportError{Kind: npapi.ErrorKindTimeout, Op: op, Err: err}
	}

	return &npapi.TransportError{Kind: npapi.ErrorKindConnection, Op: op, Err: err}
}
