package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric-io/npapi/pkg/npapi"
)

func TestNew_RequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New(&npapi.Config{})
	require.ErrorIs(t, err, npapi.ErrEndpointRequired)

	_, err = New(nil)
	require.ErrorIs(t, err, npapi.ErrConfigRequired)
}

func TestClient_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			writer.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]string{"id": "default"})
	}))
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    fastRetryConfig(3),
	}, nil)
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "/policy/api/v1/infra/domains/default", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_NotFoundSingleAttempt(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(writer).Encode(map[string]interface{}{
			"error_code":    202,
			"error_message": "object not found",
			"module_name":   "Policy",
		})
	}))
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    fastRetryConfig(3),
	}, nil)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/policy/api/v1/infra/domains/missing", nil)
	require.Error(t, err)
	assert.True(t, npapi.IsNotFound(err))
	assert.False(t, npapi.IsRetryExhausted(err))
	assert.Equal(t, int32(1), hits.Load())

	backendErr := &npapi.BackendError{}
	require.ErrorAs(t, err, &backendErr)
	require.NotNil(t, backendErr.APIError)
	assert.Equal(t, 202, backendErr.APIError.ErrorCode)
	assert.Equal(t, "Policy", backendErr.APIError.ModuleName)
}

func TestClient_PostNotRetriedByDefault(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writer.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    fastRetryConfig(3),
	}, nil)
	require.NoError(t, err)

	_, err = client.Post(context.Background(), "/policy/api/v1/infra/domains", map[string]string{"id": "d"})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_PostWithIdempotencyKeyRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "key-123", request.Header.Get("X-Idempotency-Key"))

		if hits.Add(1) == 1 {
			writer.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    fastRetryConfig(3),
	}, nil)
	require.NoError(t, err)

	resp, err := client.Post(context.Background(), "/policy/api/v1/infra/domains", map[string]string{"id": "d"},
		npapi.WithIdempotencyKey("key-123"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 2, resp.Attempts)
}

func TestClient_BreakerShortCircuits(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writer.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    &npapi.RetryPolicyConfig{MaxRetries: 0},
		CircuitBreaker: &npapi.CircuitBreakerConfig{
			FailureThreshold:   2,
			OpenDuration:       time.Minute,
			HalfOpenProbeCount: 1,
		},
	}, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, callErr := client.Get(context.Background(), "/policy/api/v1/infra/domains", nil)
		require.Error(t, callErr)
		assert.False(t, npapi.IsCircuitOpen(callErr))
	}

	assert.Equal(t, npapi.CircuitOpen, client.BreakerState(""))

	before := hits.Load()

	_, err = client.Get(context.Background(), "/policy/api/v1/infra/domains", nil)
	require.Error(t, err)
	assert.True(t, npapi.IsCircuitOpen(err))
	assert.Equal(t, before, hits.Load())

	// The operator escape hatch closes it again.
	client.ResetCircuitBreaker("")
	assert.Equal(t, npapi.CircuitClosed, client.BreakerState(""))
}

func TestClient_ExecuteBatchOrderedResults(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "/fail" {
			writer.WriteHeader(http.StatusInternalServerError)

			return
		}

		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]string{"id": "ok"})
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	operations := npapi.NewBatchBuilder().
		AddGet("first", "/fail").
		AddGet("second", "/ok").
		AddGet("third", "/fail").
		Build()

	results := client.ExecuteBatch(context.Background(), operations)

	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, "second", results[1].ID)
	assert.Equal(t, "third", results[2].ID)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.False(t, results[2].Success)
	require.Error(t, results[0].Error)
	require.NoError(t, results[1].Error)
	assert.NotNil(t, results[1].Response)
}

func TestClient_DeadlineExceededPromptly(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-request.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}

		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    fastRetryConfig(3),
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()

	_, err = client.Get(ctx, "/policy/api/v1/infra/domains", nil)

	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, npapi.IsDeadlineExceeded(err))
	assert.Less(t, elapsed, 250*time.Millisecond)
}

func TestClient_EmitsOneEventPerCall(t *testing.T) {
	t.Parallel()

	server := newJSONServer(http.StatusOK, map[string]string{"id": "default"}, nil, nil)
	defer server.Close()

	logger := &recordingLogger{}

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    &npapi.RetryPolicyConfig{MaxRetries: 0},
		Logger:   logger,
	}, nil)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/policy/api/v1/infra/domains/default", nil)
	require.NoError(t, err)

	events := logger.eventsWithMsg("API call completed")
	require.Len(t, events, 1)

	fields := events[0].Fields
	assert.Equal(t, "GET", fields["verb"])
	assert.Equal(t, "/policy/api/v1/infra/domains/default", fields["endpoint"])
	assert.Equal(t, http.StatusOK, fields["status"])
	assert.Equal(t, 1, fields["attempts"])
	assert.Equal(t, "closed", fields["breaker_state"])
	assert.NotEmpty(t, fields["target"])
	assert.Contains(t, fields, "duration_ms")
}

func TestClient_PanickingLoggerNeverFailsCall(t *testing.T) {
	t.Parallel()

	server := newJSONServer(http.StatusOK, map[string]string{"id": "default"}, nil, nil)
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    &npapi.RetryPolicyConfig{MaxRetries: 0},
		Logger:   panicLogger{},
	}, nil)
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "/policy/api/v1/infra/domains/default", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_GetServedFromCache(t *testing.T) {
	t.Parallel()

	var (
		hits  int
		mutex sync.Mutex
	)

	server := newJSONServer(http.StatusOK, map[string]string{"id": "default"}, &hits, &mutex)
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    &npapi.RetryPolicyConfig{MaxRetries: 0},
		Cache: &npapi.CacheConfig{
			Type:    npapi.CacheTypeMemory,
			MaxSize: 10,
			Options: &npapi.CacheOptions{TTL: time.Minute},
		},
	}, nil)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	for i := 0; i < 3; i++ {
		resp, getErr := client.Get(context.Background(), "/policy/api/v1/infra/domains/default", nil)
		require.NoError(t, getErr)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, 1, hits)
}

func TestClient_WriteInvalidatesCachedGet(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method == http.MethodGet {
			hits.Add(1)
		}

		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]string{"id": "web"})
	}))
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    &npapi.RetryPolicyConfig{MaxRetries: 0},
		Cache: &npapi.CacheConfig{
			Type:    npapi.CacheTypeMemory,
			MaxSize: 10,
			Options: &npapi.CacheOptions{TTL: time.Minute},
		},
	}, nil)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	path := "/policy/api/v1/infra/domains/default/groups/web"

	_, err = client.Get(context.Background(), path, nil)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	_, err = client.Put(context.Background(), path, map[string]string{"id": "web"})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_WriteInvalidatesCachedList(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method == http.MethodGet {
			hits.Add(1)
		}

		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]interface{}{"results": []string{}})
	}))
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    &npapi.RetryPolicyConfig{MaxRetries: 0},
		Cache: &npapi.CacheConfig{
			Type:    npapi.CacheTypeMemory,
			MaxSize: 10,
			Options: &npapi.CacheOptions{TTL: time.Minute},
		},
	}, nil)
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	listPath := "/policy/api/v1/infra/domains/default/groups"
	query := url.Values{"page_size": []string{"10"}}

	_, err = client.Get(context.Background(), listPath, query)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), listPath, query)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	// Creating a group must drop the cached listing, query string included.
	_, err = client.Put(context.Background(), listPath+"/web", map[string]string{"id": "web"})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), listPath, query)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_TestConnection(t *testing.T) {
	t.Parallel()

	t.Run("healthy backend", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/api/v1/node", request.URL.Path)
			writer.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(writer).Encode(map[string]string{"node_version": "4.1.2", "node_type": "Manager"})
		}))
		defer server.Close()

		client := NewTestClient(server.URL)
		assert.True(t, client.TestConnection(context.Background()))

		info, err := client.NodeInfo(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Manager", info.NodeType)
	})

	t.Run("unreachable backend swallowed into false", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		server.Close()

		client := NewTestClient(server.URL)
		assert.False(t, client.TestConnection(context.Background()))
	})
}

func TestClient_SetRetryPolicyHotSwap(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writer.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewWithTokenManager(&npapi.Config{
		Endpoint: server.URL,
		Retry:    &npapi.RetryPolicyConfig{MaxRetries: 0},
	}, nil)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/policy/api/v1/infra/domains", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())

	client.SetRetryPolicy(fastRetryConfig(2))

	_, err = client.Get(context.Background(), "/policy/api/v1/infra/domains", nil)
	require.Error(t, err)
	assert.True(t, npapi.IsRetryExhausted(err))
	assert.Equal(t, int32(4), hits.Load())
}

func TestClient_AuthHeaderSentPerAttempt(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "Bearer static-token", request.Header.Get("Authorization"))

		if hits.Add(1) == 1 {
			writer.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(&npapi.Config{
		Endpoint:    server.URL,
		AccessToken: "static-token",
		Retry:       fastRetryConfig(2),
	})
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "/policy/api/v1/infra/domains", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, int32(2), hits.Load())
}

// stubTokenManager returns a fixed token and never mutates state, so it is
// safe to call from many goroutines.
type stubTokenManager struct {
	token string
}

func (s *stubTokenManager) GetToken(_ context.Context) (string, error) {
	return s.token, nil
}

func (s *stubTokenManager) RefreshToken(_ context.Context) error {
	return nil
}

func (s *stubTokenManager) SetToken(_ string, _ time.Time) {}

func TestTokenManagers_ConcurrentUse(t *testing.T) {
	t.Parallel()

	t.Run("fallback manager", func(t *testing.T) {
		t.Parallel()

		manager := &fallbackTokenManager{
			staticToken:  "static-token",
			oauthManager: &stubTokenManager{token: "oauth-token"},
		}

		var wg sync.WaitGroup

		for i := 0; i < 50; i++ {
			wg.Add(3)

			go func() {
				defer wg.Done()

				_, err := manager.GetToken(context.Background())
				assert.NoError(t, err)
			}()

			go func() {
				defer wg.Done()

				assert.NoError(t, manager.RefreshToken(context.Background()))
			}()

			go func() {
				defer wg.Done()

				manager.SetToken("rotated-token", time.Time{})
			}()
		}

		wg.Wait()

		// After a refresh the manager serves tokens from the OAuth path.
		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "oauth-token", token)
	})

	t.Run("static manager", func(t *testing.T) {
		t.Parallel()

		manager := &staticTokenManager{token: "initial-token"}

		var wg sync.WaitGroup

		for i := 0; i < 50; i++ {
			wg.Add(2)

			go func() {
				defer wg.Done()

				_, err := manager.GetToken(context.Background())
				assert.NoError(t, err)
			}()

			go func() {
				defer wg.Done()

				manager.SetToken("rotated-token", time.Time{})
			}()
		}

		wg.Wait()

		manager.SetToken("final-token", time.Time{})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "final-token", token)
	})
}
