// Package npclient provides the main entry point for creating network policy API clients
package npclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/netfabric-io/npapi/internal/client"
	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// Static errors for err113 compliance.
var (
	ErrDiscoveryFailed = errors.New("token endpoint discovery failed")
	ErrNoTokenEndpoint = errors.New("API root advertises no token endpoint")
)

// New creates a new network policy API client with automatic token endpoint
// discovery.
func New(ctx context.Context, config *npapi.Config) (npapi.Client, error) {
	if config == nil {
		return nil, npapi.ErrConfigRequired
	}

	if config.Endpoint == "" {
		return nil, npapi.ErrEndpointRequired
	}

	// Normalize endpoint
	endpoint := strings.TrimSuffix(config.Endpoint, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	config.Endpoint = endpoint

	// If we need authentication and don't have a token URL, discover the
	// token endpoint from the API root
	if needsAuth(config) && config.TokenURL == "" {
		tokenURL, err := discoverTokenEndpoint(ctx, endpoint, config.SkipTLSVerify)
		if err != nil {
			return nil, fmt.Errorf("discovering token endpoint: %w", err)
		}

		config.TokenURL = tokenURL
	}

	// Use the internal client implementation
	client, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return client, nil
}

// needsAuth checks if the config requires authentication.
func needsAuth(config *npapi.Config) bool {
	return config.AccessToken == "" &&
		(config.Username != "" || config.ClientID != "" || config.RefreshToken != "")
}

// isDevelopmentEnvironment checks if we're in a development environment.
func isDevelopmentEnvironment() bool {
	devMode := os.Getenv("NPAPI_DEV_MODE")

	return devMode == "true" || devMode == "1"
}

// createDiscoveryHTTPClient creates an HTTP client for token endpoint discovery.
func createDiscoveryHTTPClient(skipTLS bool) (*http.Client, error) {
	httpClient := &http.Client{
		Timeout: constants.ShortHTTPTimeout,
	}

	if skipTLS {
		// Only allow insecure TLS in explicit development environments
		if isDevelopmentEnvironment() {
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- Protected by development environment check above
			}
		} else {
			return nil, fmt.Errorf("%w (set NPAPI_DEV_MODE=true)", npapi.ErrSkipTLSOnlyInDev)
		}
	}

	return httpClient, nil
}

// fetchRootLinks fetches the API root document and extracts the token
// endpoint link.
func fetchRootLinks(ctx context.Context, httpClient *http.Client, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/", nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("getting API root: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			// Log error but don't return it to avoid masking original error
			fmt.Fprintf(os.Stderr, "Warning: failed to close response body: %v\n", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return "", fmt.Errorf("%w with status %d: %s", ErrDiscoveryFailed, resp.StatusCode, string(body))
	}

	var rootInfo struct {
		Links struct {
			TokenEndpoint struct {
				Href string `json:"href"`
			} `json:"token_endpoint"`
			Login struct {
				Href string `json:"href"`
			} `json:"login"`
		} `json:"links"`
	}

	err = json.NewDecoder(resp.Body).Decode(&rootInfo)
	if err != nil {
		return "", fmt.Errorf("parsing API root: %w", err)
	}

	// Prefer the token endpoint link, fall back to the login service URL
	tokenURL := rootInfo.Links.TokenEndpoint.Href
	if tokenURL == "" && rootInfo.Links.Login.Href != "" {
		tokenURL = strings.TrimSuffix(rootInfo.Links.Login.Href, "/") + constants.TokenPath
	}

	if tokenURL == "" {
		return "", ErrNoTokenEndpoint
	}

	return tokenURL, nil
}

func discoverTokenEndpoint(ctx context.Context, endpoint string, skipTLS bool) (string, error) {
	httpClient, err := createDiscoveryHTTPClient(skipTLS)
	if err != nil {
		return "", err
	}

	return fetchRootLinks(ctx, httpClient, endpoint)
}

// NewWithEndpoint creates a new client with just an endpoint (no auth).
func NewWithEndpoint(ctx context.Context, endpoint string) (npapi.Client, error) {
	return New(ctx, &npapi.Config{
		Endpoint: endpoint,
	})
}

// NewWithToken creates a new client with an endpoint and access token.
func NewWithToken(ctx context.Context, endpoint, token string) (npapi.Client, error) {
	return New(ctx, &npapi.Config{
		Endpoint:    endpoint,
		AccessToken: token,
	})
}

// NewWithClientCredentials creates a new client using OAuth2 client credentials.
func NewWithClientCredentials(ctx context.Context, endpoint, clientID, clientSecret string) (npapi.Client, error) {
	return New(ctx, &npapi.Config{
		Endpoint:     endpoint,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// NewWithPassword creates a new client using username/password authentication.
func NewWithPassword(ctx context.Context, endpoint, username, password string) (npapi.Client, error) {
	return New(ctx, &npapi.Config{
		Endpoint: endpoint,
		Username: username,
		Password: password,
	})
}
