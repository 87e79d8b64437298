package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	inathttp "github.com/fieldnotes-io/inat/internal/http"
	"github.com/fieldnotes-io/inat/pkg/inat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTokenManager for testing.
type MockTokenManager struct {
	token      string
	err        error
	refreshErr error
	refreshes  int32
}

func (m *MockTokenManager) GetToken(ctx context.Context) (string, error) {
	return m.token, m.err
}

func (m *MockTokenManager) RefreshToken(ctx context.Context) error {
	atomic.AddInt32(&m.refreshes, 1)

	if m.refreshErr != nil {
		return m.refreshErr
	}

	m.token = m.token + "-refreshed"

	return nil
}

// MockLogger for testing.
type MockLogger struct {
	logs []map[string]interface{}
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "debug", "msg": msg, "fields": fields})
}

func (l *MockLogger) Info(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "info", "msg": msg, "fields": fields})
}

func (l *MockLogger) Warn(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "warn", "msg": msg, "fields": fields})
}

func (l *MockLogger) Error(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "error", "msg": msg, "fields": fields})
}

// fastRetries keeps retry tests quick.
func fastRetries(max int) inathttp.Option {
	return inathttp.WithRetryConfig(max, time.Millisecond, 5*time.Millisecond)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Do(t *testing.T) {
	t.Parallel()
	t.Run("successful request", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/observations", request.URL.Path)
			assert.Equal(t, "GET", request.Method)
			assert.Equal(t, "Bearer test-token", request.Header.Get("Authorization"))
			assert.Equal(t, "application/json", request.Header.Get("Accept"))

			response := map[string]interface{}{"total_results": 1}
			_ = json.NewEncoder(writer).Encode(response)
		}))
		defer server.Close()

		tokenManager := &MockTokenManager{token: "test-token"}
		client := inathttp.NewClient(server.URL, tokenManager)

		req := &inathttp.Request{
			Method: "GET",
			Path:   "/observations",
		}

		resp, err := client.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var result map[string]interface{}

		err = json.Unmarshal(resp.Body, &result)
		require.NoError(t, err)
		assert.Equal(t, float64(1), result["total_results"])
	})

	t.Run("request with query parameters", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/taxa", request.URL.Path)
			assert.Equal(t, "monarch", request.URL.Query().Get("q"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil)

		resp, err := client.Get(context.Background(), "/taxa", url.Values{"q": []string{"monarch"}})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("request with body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "application/json", request.Header.Get("Content-Type"))

			var body map[string]interface{}

			require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
			assert.Equal(t, "Danaus plexippus", body["species_guess"])

			writer.WriteHeader(http.StatusCreated)
			_, _ = writer.Write([]byte(`{"id": 99}`))
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil)

		resp, err := client.Post(context.Background(), "/observations", map[string]string{
			"species_guess": "Danaus plexippus",
		})
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
	})

	t.Run("custom headers and user agent", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "field-notes/1.0", request.Header.Get("User-Agent"))
			assert.Equal(t, "custom", request.Header.Get("X-Custom"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil, inathttp.WithUserAgent("field-notes/1.0"))

		_, err := client.Do(context.Background(), &inathttp.Request{
			Method:  "GET",
			Path:    "/observations",
			Headers: map[string]string{"X-Custom": "custom"},
		})
		require.NoError(t, err)
	})

	t.Run("client error is classified and not retried", func(t *testing.T) {
		t.Parallel()

		var attempts int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			atomic.AddInt32(&attempts, 1)
			writer.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = writer.Write([]byte(`{"error": "Observed on date is invalid", "status": 422}`))
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil, fastRetries(3))

		_, err := client.Get(context.Background(), "/observations", nil)
		require.Error(t, err)

		apiErr := &inat.APIError{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, inat.ErrorKindClient, apiErr.Kind)
		assert.Equal(t, 422, apiErr.StatusCode)
		assert.Equal(t, "Observed on date is invalid", apiErr.Detail)
		assert.False(t, inat.IsRetriesExhausted(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	})

	t.Run("errors array envelope", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"errors": [{"message": "Record not found"}]}`))
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil)

		_, err := client.Get(context.Background(), "/observations/1", nil)
		require.Error(t, err)
		assert.True(t, inat.IsNotFound(err))

		apiErr := &inat.APIError{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Record not found", apiErr.Detail)
	})

	t.Run("server errors are retried until success", func(t *testing.T) {
		t.Parallel()

		var attempts int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				writer.WriteHeader(http.StatusServiceUnavailable)

				return
			}

			writer.WriteHeader(http.StatusOK)
			_, _ = writer.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil, fastRetries(5))

		resp, err := client.Get(context.Background(), "/observations", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	})

	t.Run("persistent server error exhausts retries", func(t *testing.T) {
		t.Parallel()

		var attempts int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			atomic.AddInt32(&attempts, 1)
			writer.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil, fastRetries(2))

		_, err := client.Get(context.Background(), "/observations", nil)
		require.Error(t, err)
		assert.True(t, inat.IsRetriesExhausted(err))

		apiErr := &inat.APIError{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, inat.ErrorKindServer, apiErr.Kind)

		// Initial attempt plus two retries.
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	})

	t.Run("429 carries the Retry-After hint", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Retry-After", "2")
			writer.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil, fastRetries(0))

		_, err := client.Get(context.Background(), "/observations", nil)
		require.Error(t, err)
		assert.True(t, inat.IsRateLimited(err))

		apiErr := &inat.APIError{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 2*time.Second, apiErr.RetryAfter)
	})

	t.Run("POST is never retried", func(t *testing.T) {
		t.Parallel()

		var attempts int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			atomic.AddInt32(&attempts, 1)
			writer.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil, fastRetries(3))

		_, err := client.Post(context.Background(), "/observations", map[string]string{"species_guess": "x"})
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	})

	t.Run("DELETE is retried", func(t *testing.T) {
		t.Parallel()

		var attempts int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 2 {
				writer.WriteHeader(http.StatusBadGateway)

				return
			}

			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := inathttp.NewClient(server.URL, nil, fastRetries(3))

		resp, err := client.Delete(context.Background(), "/observations/1")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Auth(t *testing.T) {
	t.Parallel()

	t.Run("401 triggers one refresh and replay", func(t *testing.T) {
		t.Parallel()

		var attempts int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				writer.WriteHeader(http.StatusUnauthorized)

				return
			}

			assert.Equal(t, "Bearer stale-refreshed", request.Header.Get("Authorization"))
			writer.WriteHeader(http.StatusOK)
			_, _ = writer.Write([]byte(`{}`))
		}))
		defer server.Close()

		tokenManager := &MockTokenManager{token: "stale"}
		client := inathttp.NewClient(server.URL, tokenManager)

		resp, err := client.Get(context.Background(), "/users/me", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&tokenManager.refreshes))
		assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	})

	t.Run("second 401 is surfaced as auth failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		tokenManager := &MockTokenManager{token: "bad"}
		client := inathttp.NewClient(server.URL, tokenManager)

		_, err := client.Get(context.Background(), "/users/me", nil)
		require.Error(t, err)
		assert.True(t, inat.IsAuthFailed(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&tokenManager.refreshes))
	})

	t.Run("refresh failure wraps ErrAuthFailed", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		tokenManager := &MockTokenManager{token: "bad", refreshErr: errors.New("grant revoked")}
		client := inathttp.NewClient(server.URL, tokenManager)

		_, err := client.Get(context.Background(), "/users/me", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, inat.ErrAuthFailed)
		assert.Contains(t, err.Error(), "grant revoked")
	})

	t.Run("token fetch failure aborts before the network", func(t *testing.T) {
		t.Parallel()

		var attempts int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			atomic.AddInt32(&attempts, 1)
		}))
		defer server.Close()

		tokenManager := &MockTokenManager{err: errors.New("no credentials")}
		client := inathttp.NewClient(server.URL, tokenManager)

		_, err := client.Get(context.Background(), "/users/me", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, inat.ErrAuthFailed)
		assert.Equal(t, int32(0), atomic.LoadInt32(&attempts))
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Cache(t *testing.T) {
	t.Parallel()

	t.Run("repeated GET is served from cache", func(t *testing.T) {
		t.Parallel()

		var hits int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			atomic.AddInt32(&hits, 1)
			_, _ = writer.Write([]byte(`{"total_results": 7}`))
		}))
		defer server.Close()

		cache := inat.NewCacheManager(inat.NewMemoryCache(10), nil)
		client := inathttp.NewClient(server.URL, nil, inathttp.WithCacheManager(cache))

		first, err := client.Get(context.Background(), "/taxa", url.Values{"q": []string{"monarch"}})
		require.NoError(t, err)

		second, err := client.Get(context.Background(), "/taxa", url.Values{"q": []string{"monarch"}})
		require.NoError(t, err)

		assert.Equal(t, first.Body, second.Body)
		assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

		stats := cache.GetStats()
		assert.Equal(t, int64(1), stats.Hits)
	})

	t.Run("different query misses", func(t *testing.T) {
		t.Parallel()

		var hits int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			atomic.AddInt32(&hits, 1)
			_, _ = writer.Write([]byte(`{}`))
		}))
		defer server.Close()

		cache := inat.NewCacheManager(inat.NewMemoryCache(10), nil)
		client := inathttp.NewClient(server.URL, nil, inathttp.WithCacheManager(cache))

		_, err := client.Get(context.Background(), "/taxa", url.Values{"q": []string{"monarch"}})
		require.NoError(t, err)

		_, err = client.Get(context.Background(), "/taxa", url.Values{"q": []string{"viceroy"}})
		require.NoError(t, err)

		assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	})

	t.Run("stale entry is revalidated with If-None-Match", func(t *testing.T) {
		t.Parallel()

		var requests int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			atomic.AddInt32(&requests, 1)

			if request.Header.Get("If-None-Match") == `"v1"` {
				writer.WriteHeader(http.StatusNotModified)

				return
			}

			writer.Header().Set("ETag", `"v1"`)
			_, _ = writer.Write([]byte(`{"total_results": 7}`))
		}))
		defer server.Close()

		cache := inat.NewCacheManager(inat.NewMemoryCache(10), &inat.CacheOptions{TTL: 30 * time.Millisecond})
		client := inathttp.NewClient(server.URL, nil, inathttp.WithCacheManager(cache))

		first, err := client.Get(context.Background(), "/taxa/1", nil)
		require.NoError(t, err)

		// Let the entry go stale, then revalidate.
		time.Sleep(50 * time.Millisecond)

		second, err := client.Get(context.Background(), "/taxa/1", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, second.StatusCode)
		assert.Equal(t, first.Body, second.Body)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requests))

		// The refreshed entry serves the next read without the network.
		_, err = client.Get(context.Background(), "/taxa/1", nil)
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
	})

	t.Run("write invalidates the resource prefix", func(t *testing.T) {
		t.Parallel()

		var gets int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.Method == http.MethodGet {
				atomic.AddInt32(&gets, 1)
			}

			_, _ = writer.Write([]byte(`{}`))
		}))
		defer server.Close()

		cache := inat.NewCacheManager(inat.NewMemoryCache(10), nil)
		client := inathttp.NewClient(server.URL, nil, inathttp.WithCacheManager(cache))

		ctx := context.Background()

		_, err := client.Get(ctx, "/observations", nil)
		require.NoError(t, err)

		_, err = client.Put(ctx, "/observations/1", map[string]string{"description": "updated"})
		require.NoError(t, err)

		// The cached listing was invalidated by the write.
		_, err = client.Get(ctx, "/observations", nil)
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&gets))
	})
}

func TestClient_DryRun(t *testing.T) {
	t.Parallel()

	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	logger := &MockLogger{}
	client := inathttp.NewClient(server.URL, nil, inathttp.WithDryRun(true), inathttp.WithLogger(logger))

	ctx := context.Background()

	t.Run("writes are short-circuited", func(t *testing.T) {
		resp, err := client.Post(ctx, "/observations", map[string]string{"species_guess": "x"})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, []byte(`{}`), resp.Body)
		assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
		require.NotEmpty(t, logger.logs)
		assert.Equal(t, "Dry run, request not sent", logger.logs[len(logger.logs)-1]["msg"])
	})

	t.Run("reads still go out", func(t *testing.T) {
		_, err := client.Get(ctx, "/observations", nil)
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	})
}

func TestClient_RateLimiter(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(`{}`))
	}))
	defer server.Close()

	limiter := inat.NewRateLimiter()
	limiter.AddScope(inat.ScopeGlobal, 1, 80*time.Millisecond)

	client := inathttp.NewClient(server.URL, nil, inathttp.WithRateLimiter(limiter))

	start := time.Now()

	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), "/observations", nil)
		require.NoError(t, err)
	}

	// The second request waits for a token.
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestClient_Interceptors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.NotEmpty(t, request.Header.Get("X-Request-Id"))
		_, _ = writer.Write([]byte(`{}`))
	}))
	defer server.Close()

	chain := inat.NewInterceptorChain()
	chain.AddRequestInterceptor(inat.RequestIDInterceptor())

	var observedStatus int

	chain.AddResponseInterceptor(func(ctx context.Context, req *inat.Request, resp *inat.Response) error {
		observedStatus = resp.StatusCode

		return nil
	})

	client := inathttp.NewClient(server.URL, nil, inathttp.WithInterceptors(chain))

	_, err := client.Get(context.Background(), "/observations", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, observedStatus)
}

func TestClient_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := inathttp.NewClient(server.URL, nil, fastRetries(0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "/observations", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("decodes body", func(t *testing.T) {
		t.Parallel()

		resp := &inathttp.Response{Body: []byte(`{"id": 7}`)}

		var out struct {
			ID int `json:"id"`
		}

		require.NoError(t, inathttp.JSON(resp, &out))
		assert.Equal(t, 7, out.ID)
	})

	t.Run("empty body is a no-op", func(t *testing.T) {
		t.Parallel()

		resp := &inathttp.Response{}

		var out map[string]interface{}

		assert.NoError(t, inathttp.JSON(resp, &out))
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		resp := &inathttp.Response{Body: []byte(`nope`)}

		var out map[string]interface{}

		err := inathttp.JSON(resp, &out)
		assert.ErrorIs(t, err, inat.ErrSchemaMismatch)
	})
}
