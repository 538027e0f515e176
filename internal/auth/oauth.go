package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/netfabric-io/npapi/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoValidCredentials = errors.New("no valid credentials available")
	ErrNoTokenURL         = errors.New("token URL is required")
)

// OAuth2Config holds credentials for the token endpoint. Exactly one grant
// is selected per refresh: refresh_token if one is held, then password, then
// client_credentials.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	AccessToken  string
	RefreshToken string
	Scopes       []string
}

// OAuth2TokenManager implements TokenManager against an OAuth2 token
// endpoint. Token endpoint calls go through a retrying HTTP client; the
// token endpoint is not behind the API resilience pipeline.
type OAuth2TokenManager struct {
	config     *OAuth2Config
	store      *TokenStore
	httpClient *retryablehttp.Client
	mutex      sync.Mutex
}

// NewOAuth2TokenManager creates a token manager for the given config.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = constants.TokenRetryMax
	httpClient.RetryWaitMin = constants.DefaultRetryWaitMin
	httpClient.RetryWaitMax = constants.DefaultRetryWaitMax
	httpClient.HTTPClient.Timeout = constants.ShortHTTPTimeout
	httpClient.Logger = nil

	manager := &OAuth2TokenManager{
		config:     config,
		store:      NewTokenStore(),
		httpClient: httpClient,
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
			TokenType:    "bearer",
		})
	}

	return manager
}

// NewTokenManagerForEndpoint creates a client_credentials manager whose
// token URL is derived from the API endpoint.
func NewTokenManagerForEndpoint(endpoint, clientID, clientSecret string) *OAuth2TokenManager {
	return NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     strings.TrimSuffix(endpoint, "/") + constants.TokenPath,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{"policy.read", "policy.write"},
	})
}

// NewTokenManagerWithPassword creates a password-grant manager whose token
// URL is derived from the API endpoint.
func NewTokenManagerWithPassword(endpoint, clientID, clientSecret, username, password string) *OAuth2TokenManager {
	return NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     strings.TrimSuffix(endpoint, "/") + constants.TokenPath,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
		Scopes:       []string{"policy.read", "policy.write"},
	})
}

// GetToken returns a valid access token, refreshing if necessary.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	err := m.refresh(ctx, false)
	if err != nil {
		return "", err
	}

	token = m.store.Get()
	if !token.Valid() {
		return "", ErrNoValidCredentials
	}

	return token.AccessToken, nil
}

// RefreshToken forces a token refresh.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	return m.refresh(ctx, true)
}

// SetToken manually installs an access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// refresh fetches a new token using the best available grant. The mutex
// ensures concurrent callers trigger a single token endpoint call. A forced
// refresh always hits the token endpoint, even while the current token is
// still valid.
func (m *OAuth2TokenManager) refresh(ctx context.Context, force bool) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if !force && m.store.Get().Valid() {
		return nil
	}

	if m.config.TokenURL == "" {
		return ErrNoTokenURL
	}

	form, useBasicAuth, err := m.grantForm()
	if err != nil {
		return err
	}

	token, err := m.requestToken(ctx, form, useBasicAuth)
	if err != nil {
		return err
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	m.store.Set(token)

	return nil
}

// grantForm selects the grant and builds the form body. The second return
// value reports whether client credentials go in the Authorization header.
func (m *OAuth2TokenManager) grantForm() (url.Values, bool, error) {
	form := url.Values{}

	if len(m.config.Scopes) > 0 {
		form.Set("scope", strings.Join(m.config.Scopes, " "))
	}

	refreshToken := m.config.RefreshToken
	if stored := m.store.Get(); stored != nil && stored.RefreshToken != "" {
		refreshToken = stored.RefreshToken
	}

	switch {
	case refreshToken != "":
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refreshToken)

		return form, m.config.ClientID != "", nil
	case m.config.Username != "" && m.config.Password != "":
		form.Set("grant_type", "password")
		form.Set("username", m.config.Username)
		form.Set("password", m.config.Password)

		return form, m.config.ClientID != "", nil
	case m.config.ClientID != "" && m.config.ClientSecret != "":
		form.Set("grant_type", "client_credentials")

		return form, true, nil
	default:
		return nil, false, ErrNoValidCredentials
	}
}

func (m *OAuth2TokenManager) requestToken(ctx context.Context, form url.Values, useBasicAuth bool) (*Token, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", m.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if useBasicAuth {
		req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var oauthErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}

		if json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error != "" {
			return nil, fmt.Errorf("token endpoint returned %d: %s: %s: %w",
				resp.StatusCode, oauthErr.Error, oauthErr.ErrorDescription, ErrNoValidCredentials)
		}

		return nil, fmt.Errorf("token endpoint returned %d: %w", resp.StatusCode, ErrNoValidCredentials)
	}

	var token Token

	err = json.Unmarshal(body, &token)
	if err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	return &token, nil
}
