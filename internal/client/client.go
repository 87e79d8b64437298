// Package client implements the inat.Client interface on top of the
// request executor.
package client

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/fieldnotes-io/inat/internal/auth"
	"github.com/fieldnotes-io/inat/internal/constants"
	"github.com/fieldnotes-io/inat/internal/http"
	"github.com/fieldnotes-io/inat/pkg/inat"
)

// Static errors for err113 compliance.
var (
	ErrAPIEndpointRequired = errors.New("API endpoint is required")
)

// Client implements the inat.Client interface.
type Client struct {
	httpClient   *http.Client
	tokenManager auth.TokenManager
	baseURL      string
	logger       inat.Logger
	cache        *inat.CacheManager

	// Resource clients
	observations    inat.ObservationsClient
	taxa            inat.TaxaClient
	users           inat.UsersClient
	places          inat.PlacesClient
	projects        inat.ProjectsClient
	identifications inat.IdentificationsClient
}

// createTokenManager creates the appropriate token manager for the
// configured credentials, applying the documented precedence.
func createTokenManager(config *inat.Config) auth.TokenManager {
	if config.APIToken != "" {
		return auth.NewStaticTokenManager(config.APIToken)
	}

	if config.Username != "" && config.Password != "" {
		return auth.NewPasswordTokenManager(
			getTokenURL(config),
			config.ClientID,
			config.ClientSecret,
			config.Username,
			config.Password,
		)
	}

	if config.ClientID != "" && config.ClientSecret != "" {
		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     getTokenURL(config),
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
		})
	}

	return nil // No authentication
}

// getTokenURL returns the token URL from config or the provider default.
func getTokenURL(config *inat.Config) string {
	if config.TokenURL != "" {
		return config.TokenURL
	}

	return constants.DefaultTokenURL
}

// createRateLimiter builds a limiter matching the configured or published
// quotas.
func createRateLimiter(config *inat.Config) *inat.RateLimiter {
	perSecond := config.PerSecond
	if perSecond <= 0 {
		perSecond = constants.DefaultPerSecond
	}

	perDay := config.PerDay
	if perDay <= 0 {
		perDay = constants.DefaultPerDay
	}

	limiter := inat.NewRateLimiter()
	limiter.AddScope(inat.ScopeGlobal, constants.DefaultPerSecondBurst, time.Second/time.Duration(perSecond))
	limiter.AddScope(inat.ScopeDaily, perDay, 24*time.Hour/time.Duration(perDay))

	return limiter
}

// createCacheManager builds the response cache from config.
func createCacheManager(config *inat.Config) (*inat.CacheManager, error) {
	cacheConfig := config.CacheConfig
	if cacheConfig == nil {
		cacheConfig = inat.DefaultCacheConfig()
	}

	if cacheConfig.Type == inat.CacheTypeNone {
		return inat.NewCacheManager(nil, nil), nil
	}

	backend, err := inat.NewCacheFromConfig(cacheConfig)
	if err != nil {
		return nil, err
	}

	options := cacheConfig.Options
	if options == nil {
		options = inat.DefaultCacheOptions()
	}

	if config.CacheTTL > 0 {
		options.TTL = config.CacheTTL
	}

	manager := inat.NewCacheManager(backend, options)
	manager.SetIdentity(cacheIdentity(config))

	return manager, nil
}

// cacheIdentity derives a key namespace from the configured credentials so
// shared persistent backends never serve one account's responses to
// another. Raw tokens are hashed rather than embedded in keys.
func cacheIdentity(config *inat.Config) string {
	switch {
	case config.Username != "":
		return config.Username
	case config.ClientID != "":
		return config.ClientID
	case config.APIToken != "":
		sum := sha256.Sum256([]byte(config.APIToken))

		return hex.EncodeToString(sum[:6])
	default:
		return ""
	}
}

// createHTTPClientOptions builds executor options from config.
func createHTTPClientOptions(config *inat.Config, cache *inat.CacheManager) []http.Option {
	httpOpts := []http.Option{
		http.WithRateLimiter(createRateLimiter(config)),
		http.WithCacheManager(cache),
	}

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "inat-go"
	}

	httpOpts = append(httpOpts, http.WithUserAgent(userAgent))

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithHTTPTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	if config.DryRun {
		httpOpts = append(httpOpts, http.WithDryRun(true))
	}

	interceptors := inat.NewInterceptorChain()
	interceptors.AddRequestInterceptor(inat.RequestIDInterceptor())
	httpOpts = append(httpOpts, http.WithInterceptors(interceptors))

	return httpOpts
}

// New creates a new API client.
func New(config *inat.Config) (*Client, error) {
	if config.APIEndpoint == "" {
		return nil, ErrAPIEndpointRequired
	}

	tokenManager := createTokenManager(config)

	cache, err := createCacheManager(config)
	if err != nil {
		return nil, err
	}

	httpOpts := createHTTPClientOptions(config, cache)
	httpClient := http.NewClient(config.APIEndpoint, tokenManager, httpOpts...)

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      config.APIEndpoint,
		logger:       config.Logger,
		cache:        cache,
	}

	client.initializeResourceClients()

	return client, nil
}

// NewWithTokenManager creates a client with a custom token manager, e.g. a
// file-persisted one.
func NewWithTokenManager(config *inat.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config.APIEndpoint == "" {
		return nil, ErrAPIEndpointRequired
	}

	cache, err := createCacheManager(config)
	if err != nil {
		return nil, err
	}

	httpOpts := createHTTPClientOptions(config, cache)
	httpClient := http.NewClient(config.APIEndpoint, tokenManager, httpOpts...)

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      config.APIEndpoint,
		logger:       config.Logger,
		cache:        cache,
	}

	client.initializeResourceClients()

	return client, nil
}

// initializeResourceClients wires the per-resource clients.
func (c *Client) initializeResourceClients() {
	c.observations = NewObservationsClient(c.httpClient)
	c.taxa = NewTaxaClient(c.httpClient)
	c.users = NewUsersClient(c.httpClient)
	c.places = NewPlacesClient(c.httpClient)
	c.projects = NewProjectsClient(c.httpClient)
	c.identifications = NewIdentificationsClient(c.httpClient)
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// CacheStats returns a snapshot of the response cache counters.
func (c *Client) CacheStats() *inat.CacheStats {
	return c.cache.GetStats()
}

// Observations returns the observations client.
func (c *Client) Observations() inat.ObservationsClient {
	return c.observations
}

// Taxa returns the taxa client.
func (c *Client) Taxa() inat.TaxaClient {
	return c.taxa
}

// Users returns the users client.
func (c *Client) Users() inat.UsersClient {
	return c.users
}

// Places returns the places client.
func (c *Client) Places() inat.PlacesClient {
	return c.places
}

// Projects returns the projects client.
func (c *Client) Projects() inat.ProjectsClient {
	return c.projects
}

// Identifications returns the identifications client.
func (c *Client) Identifications() inat.IdentificationsClient {
	return c.identifications
}
