package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fieldnotes-io/inat/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenEndpoint(t *testing.T, handler func(r *http.Request, form map[string]string) (int, interface{})) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		require.Equal(t, http.MethodPost, request.Method)
		require.NoError(t, request.ParseForm())

		form := make(map[string]string)
		for key := range request.PostForm {
			form[key] = request.PostForm.Get(key)
		}

		status, body := handler(request, form)
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(status)
		_ = json.NewEncoder(writer).Encode(body)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestOAuth2TokenManager_PasswordGrant(t *testing.T) {
	t.Parallel()

	server := tokenEndpoint(t, func(r *http.Request, form map[string]string) (int, interface{}) {
		assert.Equal(t, "password", form["grant_type"])
		assert.Equal(t, "naturalist", form["username"])
		assert.Equal(t, "hunter2", form["password"])
		assert.Equal(t, "app-id", form["client_id"])
		assert.Equal(t, "app-secret", form["client_secret"])

		return http.StatusOK, map[string]interface{}{
			"access_token": "issued-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})

	manager := auth.NewPasswordTokenManager(server.URL, "app-id", "app-secret", "naturalist", "hunter2")

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "issued-token", token)

	// The stored token is reused without another round trip.
	again, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "issued-token", again)
}

func TestOAuth2TokenManager_ClientCredentialsGrant(t *testing.T) {
	t.Parallel()

	server := tokenEndpoint(t, func(r *http.Request, form map[string]string) (int, interface{}) {
		assert.Equal(t, "client_credentials", form["grant_type"])

		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "app-id", username)
		assert.Equal(t, "app-secret", password)

		return http.StatusOK, map[string]interface{}{
			"access_token": "app-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})

	manager := auth.NewOAuth2TokenManager(&auth.OAuth2Config{
		TokenURL:     server.URL,
		ClientID:     "app-id",
		ClientSecret: "app-secret",
	})

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-token", token)
}

func TestOAuth2TokenManager_RefreshTokenGrant(t *testing.T) {
	t.Parallel()

	var requests int32

	server := tokenEndpoint(t, func(r *http.Request, form map[string]string) (int, interface{}) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "refresh_token", form["grant_type"])
		assert.Equal(t, "refresh-me", form["refresh_token"])

		return http.StatusOK, map[string]interface{}{
			"access_token":  "refreshed-token",
			"refresh_token": "refresh-me-2",
			"token_type":    "Bearer",
			"expires_in":    3600,
		}
	})

	manager := auth.NewOAuth2TokenManager(&auth.OAuth2Config{
		TokenURL:     server.URL,
		RefreshToken: "refresh-me",
	})

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestOAuth2TokenManager_SingleFlightRefresh(t *testing.T) {
	t.Parallel()

	var requests int32

	server := tokenEndpoint(t, func(r *http.Request, form map[string]string) (int, interface{}) {
		atomic.AddInt32(&requests, 1)
		time.Sleep(20 * time.Millisecond)

		return http.StatusOK, map[string]interface{}{
			"access_token": "shared-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})

	manager := auth.NewPasswordTokenManager(server.URL, "id", "secret", "user", "pass")

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			token, err := manager.GetToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "shared-token", token)
		}()
	}

	wg.Wait()

	// Concurrent callers share one token request.
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestOAuth2TokenManager_ExpiredTokenIsRefreshed(t *testing.T) {
	t.Parallel()

	server := tokenEndpoint(t, func(r *http.Request, form map[string]string) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"access_token": "fresh-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})

	manager := auth.NewPasswordTokenManager(server.URL, "id", "secret", "user", "pass")
	manager.SetToken("stale-token", time.Now().Add(-time.Minute))

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestOAuth2TokenManager_TokenEndpointError(t *testing.T) {
	t.Parallel()

	server := tokenEndpoint(t, func(r *http.Request, form map[string]string) (int, interface{}) {
		return http.StatusUnauthorized, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid username or password",
		}
	})

	manager := auth.NewPasswordTokenManager(server.URL, "id", "secret", "user", "wrong")

	_, err := manager.GetToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Contains(t, err.Error(), "Invalid username or password")
}

func TestOAuth2TokenManager_NoCredentials(t *testing.T) {
	t.Parallel()

	manager := auth.NewOAuth2TokenManager(&auth.OAuth2Config{TokenURL: "http://localhost"})

	_, err := manager.GetToken(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoValidCredentials)
}

func TestOAuth2TokenManager_DefaultTTLWhenNoExpiry(t *testing.T) {
	t.Parallel()

	server := tokenEndpoint(t, func(r *http.Request, form map[string]string) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"access_token": "no-expiry-token",
			"token_type":   "Bearer",
		}
	})

	manager := auth.NewPasswordTokenManager(server.URL, "id", "secret", "user", "pass")

	_, err := manager.GetToken(context.Background())
	require.NoError(t, err)

	token := manager.Store().Get()
	require.NotNil(t, token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), token.ExpiresAt, time.Minute)
}

func TestOAuth2TokenManager_PersistsToFileStore(t *testing.T) {
	t.Parallel()

	server := tokenEndpoint(t, func(r *http.Request, form map[string]string) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"access_token": "stored-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})

	path := t.TempDir() + "/credentials.json"

	store, err := auth.NewFileTokenStore(path)
	require.NoError(t, err)

	manager := auth.NewOAuth2TokenManager(&auth.OAuth2Config{
		TokenURL: server.URL,
		Username: "user",
		Password: "pass",
		Store:    store,
	})

	_, err = manager.GetToken(context.Background())
	require.NoError(t, err)

	// A new store instance sees the persisted token.
	reloaded, err := auth.NewFileTokenStore(path)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Get())
	assert.Equal(t, "stored-token", reloaded.Get().AccessToken)
}

func TestStaticTokenManager(t *testing.T) {
	t.Parallel()

	t.Run("returns the fixed token", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewStaticTokenManager("fixed")

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fixed", token)
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewStaticTokenManager("")

		_, err := manager.GetToken(context.Background())
		assert.ErrorIs(t, err, auth.ErrNoValidCredentials)
	})

	t.Run("refresh always fails", func(t *testing.T) {
		t.Parallel()

		manager := auth.NewStaticTokenManager("fixed")
		assert.ErrorIs(t, manager.RefreshToken(context.Background()), auth.ErrStaticTokenNoRefresh)
	})
}
