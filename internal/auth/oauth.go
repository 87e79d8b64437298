package auth

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

	"github.com/fieldnotes-io/inat/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoValidCredentials   = errors.New("no valid credentials available")
	ErrStaticTokenNoRefresh = errors.New("static token cannot be refreshed")
)

// TokenManager provides access tokens for outbound requests.
type TokenManager interface {
	// GetToken returns a valid access token, refreshing if necessary.
	GetToken(ctx context.Context) (string, error)
	// RefreshToken forces a token refresh, discarding the current token.
	RefreshToken(ctx context.Context) error
}

// OAuth2Config configures the OAuth2 token manager.
type OAuth2Config struct {
	// TokenURL is the full OAuth2 token endpoint.
	TokenURL string
	// ClientID and ClientSecret identify the registered application.
	ClientID     string
	ClientSecret string
	// Username and Password select the password grant.
	Username string
	Password string
	// AccessToken seeds the store with an existing token.
	AccessToken string
	// RefreshToken enables the refresh_token grant.
	RefreshToken string
	// Store overrides the default in-memory token store, e.g. with a
	// FileTokenStore for persistence across runs.
	Store TokenKeeper
	// HTTPClient overrides the client used for token requests.
	HTTPClient *http.Client
}

// OAuth2TokenManager obtains and refreshes OAuth2 tokens. Grant selection:
// refresh_token when one is available, then client_credentials for
// application-only access, then the password grant. Refreshes are
// single-flight: concurrent callers finding an expired token perform one
// token request between them.
type OAuth2TokenManager struct {
	config *OAuth2Config
	store  TokenKeeper
	client *http.Client

	refreshMu sync.Mutex
}

// NewOAuth2TokenManager creates a token manager from config.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	store := config.Store
	if store == nil {
		store = NewTokenStore()
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	manager := &OAuth2TokenManager{
		config: config,
		store:  store,
		client: client,
	}

	if config.AccessToken != "" && store.Get() == nil {
		store.Set(&Token{
			AccessToken:  config.AccessToken,
			TokenType:    "bearer",
			RefreshToken: config.RefreshToken,
		})
	}

	return manager
}

// NewPasswordTokenManager creates a manager for the password grant against
// tokenURL, trimming a trailing slash.
func NewPasswordTokenManager(tokenURL, clientID, clientSecret, username, password string) *OAuth2TokenManager {
	return NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     strings.TrimSuffix(tokenURL, "/"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
	})
}

// GetToken returns a valid access token, refreshing if necessary.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	err := m.refresh(ctx)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken forces a token refresh.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	return m.requestNewToken(ctx)
}

// SetToken manually sets the access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

// Store exposes the underlying token store, for persistence wiring.
func (m *OAuth2TokenManager) Store() TokenKeeper {
	return m.store
}

// refresh obtains a new token unless a concurrent caller already did.
func (m *OAuth2TokenManager) refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if m.store.Get().Valid() {
		return nil
	}

	return m.requestNewToken(ctx)
}

// requestNewToken performs the token request using the best available grant.
func (m *OAuth2TokenManager) requestNewToken(ctx context.Context) error {
	refreshToken := m.config.RefreshToken
	if current := m.store.Get(); current != nil && current.RefreshToken != "" {
		refreshToken = current.RefreshToken
	}

	switch {
	case refreshToken != "":
		return m.doTokenRequest(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {refreshToken},
		}, false)

	case m.config.ClientID != "" && m.config.ClientSecret != "" && m.config.Username == "":
		return m.doTokenRequest(ctx, url.Values{
			"grant_type": {"client_credentials"},
		}, true)

	case m.config.Username != "" && m.config.Password != "":
		form := url.Values{
			"grant_type": {"password"},
			"username":   {m.config.Username},
			"password":   {m.config.Password},
		}

		// The provider requires application credentials alongside the
		// resource owner's.
		if m.config.ClientID != "" {
			form.Set("client_id", m.config.ClientID)
			form.Set("client_secret", m.config.ClientSecret)
		}

		return m.doTokenRequest(ctx, form, false)

	default:
		return ErrNoValidCredentials
	}
}

// tokenError is the error body of a failed token request.
type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// doTokenRequest POSTs the grant form to the token endpoint and stores the
// resulting token.
func (m *OAuth2TokenManager) doTokenRequest(ctx context.Context, form url.Values, basicAuth bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if basicAuth {
		req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var te tokenError
		if json.Unmarshal(body, &te) == nil && te.Error != "" {
			return fmt.Errorf("token request failed: %s: %s", te.Error, te.Description)
		}

		return fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var token Token

	err = json.Unmarshal(body, &token)
	if err != nil {
		return fmt.Errorf("parsing token response: %w", err)
	}

	if token.ExpiresAt.IsZero() {
		if token.ExpiresIn > 0 {
			token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		} else {
			// The provider's access tokens last a day when no lifetime is
			// reported.
			token.ExpiresAt = time.Now().Add(constants.DefaultTokenTTL)
		}
	}

	m.store.Set(&token)

	return nil
}

// StaticTokenManager serves a fixed token and never refreshes.
type StaticTokenManager struct {
	token string
}

// NewStaticTokenManager creates a manager around a pre-issued token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// GetToken returns the static token.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	if m.token == "" {
		return "", ErrNoValidCredentials
	}

	return m.token, nil
}

// RefreshToken always fails: a pre-issued token has no grant behind it.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenNoRefresh
}
