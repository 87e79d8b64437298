// Package http implements the request executor behind the resource
// clients: one pipeline that applies caching, rate limiting,
// authentication, retries and error classification to every API call.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fieldnotes-io/inat/internal/constants"
	"github.com/fieldnotes-io/inat/pkg/inat"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// TokenManager provides access tokens for authenticated requests.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
}

// Request represents an API request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body    interface{}
	Headers map[string]string
	// Idempotent marks a write the API documents as safe to retry.
	// Reads are always treated as idempotent.
	Idempotent bool
	// CacheTTL overrides the cache manager's freshness window for this
	// request.
	CacheTTL time.Duration
}

// Response represents an API response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client executes API requests. Every call runs the same pipeline: cache
// lookup, rate limit permits, token attachment, the retrying round trip,
// error classification, and cache maintenance.
type Client struct {
	baseURL      string
	tokenManager TokenManager
	retryClient  *retryablehttp.Client
	policy       *inat.RetryPolicy
	limiter      *inat.RateLimiter
	cache        *inat.CacheManager
	interceptors *inat.InterceptorChain
	logger       inat.Logger
	userAgent    string
	debug        bool
	dryRun       bool
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger inat.Logger) Option {
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

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig tunes the retry policy.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.policy.RetryMax = retryMax
		c.policy.RetryWaitMin = waitMin
		c.policy.RetryWaitMax = waitMax
	}
}

// WithRetryPolicy replaces the retry policy entirely.
func WithRetryPolicy(policy *inat.RetryPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithRateLimiter sets the client-side rate limiter.
func WithRateLimiter(limiter *inat.RateLimiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithCacheManager sets the response cache.
func WithCacheManager(cache *inat.CacheManager) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithInterceptors sets the interceptor chain.
func WithInterceptors(chain *inat.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.retryClient.HTTPClient = httpClient
	}
}

// WithHTTPTimeout bounds each attempt's full round trip, from connection
// to body read.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.retryClient.HTTPClient.Timeout = timeout
	}
}

// WithDryRun short-circuits write requests before they reach the network.
func WithDryRun(dryRun bool) Option {
	return func(c *Client) {
		c.dryRun = dryRun
	}
}

// NewClient creates a request executor for the API at baseURL. A nil
// tokenManager sends unauthenticated requests.
func NewClient(baseURL string, tokenManager TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.HTTPClient = &http.Client{Timeout: constants.DefaultHTTPTimeout}

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		tokenManager: tokenManager,
		retryClient:  retryClient,
		policy:       inat.DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(client)
	}

	retryClient.RetryMax = client.policy.RetryMax
	retryClient.RetryWaitMin = client.policy.RetryWaitMin
	retryClient.RetryWaitMax = client.policy.RetryWaitMax
	retryClient.CheckRetry = client.checkRetry
	retryClient.Backoff = client.backoff
	retryClient.ErrorHandler = retriesExhaustedHandler

	return client
}

// ctxKey marks per-request values carried to the retry hooks.
type ctxKey int

const idempotentKey ctxKey = iota

// checkRetry bridges the retry policy into the transport. Non-idempotent
// writes are never replayed: a timed-out POST may have been applied.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if idempotent, ok := ctx.Value(idempotentKey).(bool); ok && !idempotent {
		return false, err
	}

	return c.policy.ShouldRetry(ctx, resp, err)
}

// backoff bridges the backoff schedule into the transport. attemptNum is
// zero-based for the first retry.
func (c *Client) backoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	return c.policy.Backoff(attemptNum, resp)
}

// retriesExhaustedHandler converts the transport's give-up into a typed
// error. A final response, even an error status, is passed through so the
// caller can classify it; only responseless failures become terminal here.
func retriesExhaustedHandler(resp *http.Response, err error, numTries int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}

	if err == nil {
		err = errors.New("no response received")
	}

	return nil, fmt.Errorf("request failed after %d attempts: %v: %w", numTries, err, inat.ErrRetriesExhausted)
}

// Do executes the request through the full pipeline.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	cacheKey := ""
	cacheable := false

	var staleEntry *inat.CacheEntry

	if c.cache != nil && c.cache.ShouldCache(req.Method, req.Path, http.StatusOK) {
		cacheable = true
		cacheKey = c.cache.GetCacheKey(req.Method, req.Path, flattenQuery(req.Query))

		entry, err := c.cache.GetEntry(ctx, cacheKey)

		switch {
		case err == nil:
			// Fresh hit, no network.
			return &Response{StatusCode: http.StatusOK, Body: entry.Data}, nil

		case errors.Is(err, inat.ErrCacheEntryExpired) && entry != nil && entry.HasValidator():
			// Stale but revalidatable; carry the validators along.
			staleEntry = entry
		}
	}

	if c.dryRun && isWrite(req.Method) {
		if c.logger != nil {
			c.logger.Info("Dry run, request not sent", map[string]interface{}{
				"method": req.Method,
				"path":   req.Path,
			})
		}

		return &Response{StatusCode: http.StatusOK, Body: []byte("{}")}, nil
	}

	if c.limiter != nil {
		err := c.limiter.Acquire(ctx, inat.ScopeGlobal, inat.ScopeDaily)
		if err != nil {
			return nil, err
		}
	}

	ctx = context.WithValue(ctx, idempotentKey, !isWrite(req.Method) || req.Idempotent)

	resp, err := c.roundTrip(ctx, req, staleEntry, false)
	if err != nil {
		return nil, err
	}

	return c.finish(ctx, req, resp, cacheable, cacheKey, staleEntry)
}

// roundTrip performs one authenticated attempt set. On a 401 with a token
// manager present the token is refreshed and the request replayed exactly
// once; a second 401 is surfaced to the caller.
func (c *Client) roundTrip(ctx context.Context, req *Request, staleEntry *inat.CacheEntry, retried bool) (*Response, error) {
	httpReq, intercepted, err := c.buildRequest(ctx, req, staleEntry)
	if err != nil {
		return nil, err
	}

	c.logRequest(req)

	httpResp, err := c.retryClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request aborted: %w", ctx.Err())
		}

		return nil, err
	}

	body, err := io.ReadAll(httpResp.Body)
	_ = httpResp.Body.Close()

	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}

	c.logResponse(req, resp)

	if c.interceptors != nil {
		interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, intercepted, &inat.Response{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       resp.Body,
		})
		if interceptErr != nil {
			return nil, interceptErr
		}
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokenManager != nil && !retried {
		refreshErr := c.tokenManager.RefreshToken(ctx)
		if refreshErr != nil {
			return resp, fmt.Errorf("token refresh after 401: %v: %w", refreshErr, inat.ErrAuthFailed)
		}

		return c.roundTrip(ctx, req, staleEntry, true)
	}

	return resp, nil
}

// buildRequest assembles the outbound HTTP request, running the request
// interceptors first so they can adjust headers.
func (c *Client) buildRequest(ctx context.Context, req *Request, staleEntry *inat.CacheEntry) (*retryablehttp.Request, *inat.Request, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var rawBody []byte

	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request body: %w", err)
		}

		rawBody = encoded
	}

	intercepted := &inat.Request{
		Method:  req.Method,
		Path:    req.Path,
		Headers: make(http.Header),
		Body:    rawBody,
	}

	intercepted.Headers.Set("Accept", "application/json")

	if rawBody != nil {
		intercepted.Headers.Set("Content-Type", "application/json")
	}

	if c.userAgent != "" {
		intercepted.Headers.Set("User-Agent", c.userAgent)
	}

	for key, value := range req.Headers {
		intercepted.Headers.Set(key, value)
	}

	if staleEntry != nil {
		if staleEntry.ETag != "" {
			intercepted.Headers.Set("If-None-Match", staleEntry.ETag)
		}

		if staleEntry.LastModified != "" {
			intercepted.Headers.Set("If-Modified-Since", staleEntry.LastModified)
		}
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("getting token: %v: %w", err, inat.ErrAuthFailed)
		}

		intercepted.Headers.Set("Authorization", "Bearer "+token)
	}

	if c.interceptors != nil {
		err := c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
		if err != nil {
			return nil, nil, err
		}
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, rawBody)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	for key, values := range intercepted.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	return httpReq, intercepted, nil
}

// finish applies cache maintenance and error classification to the final
// response.
func (c *Client) finish(ctx context.Context, req *Request, resp *Response, cacheable bool, cacheKey string, staleEntry *inat.CacheEntry) (*Response, error) {
	if resp.StatusCode == http.StatusNotModified && staleEntry != nil {
		// Revalidated: the stale body is current again.
		_ = c.cache.Refresh(ctx, cacheKey, c.cache.TTL(req.CacheTTL))

		return &Response{StatusCode: http.StatusOK, Body: staleEntry.Data}, nil
	}

	if resp.StatusCode >= 400 {
		return resp, c.classifyError(req, resp)
	}

	if cacheable && c.cache.ShouldCache(req.Method, req.Path, resp.StatusCode) {
		entry := &inat.CacheEntry{
			Data:         resp.Body,
			ExpiresAt:    time.Now().Add(c.cache.TTL(req.CacheTTL)),
			ETag:         resp.Headers.Get("ETag"),
			LastModified: resp.Headers.Get("Last-Modified"),
		}
		_ = c.cache.SetEntry(ctx, cacheKey, entry)
	}

	if c.cache != nil && isWrite(req.Method) {
		// A successful write makes cached reads under the same resource
		// stale.
		_ = c.cache.InvalidatePrefix(ctx, "GET:"+resourcePrefix(req.Path))
	}

	return resp, nil
}

// apiErrorBody covers both error envelopes the API uses.
type apiErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// classifyError converts an error response into a typed APIError. When the
// final status is one the policy retries, the retry budget was exhausted
// getting here and the error says so.
func (c *Client) classifyError(req *Request, resp *Response) error {
	apiErr := &inat.APIError{
		Kind:       inat.ClassifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Title:      http.StatusText(resp.StatusCode),
	}

	var body apiErrorBody
	if json.Unmarshal(resp.Body, &body) == nil {
		if body.Error != "" {
			apiErr.Detail = body.Error
		} else if len(body.Errors) > 0 {
			apiErr.Detail = body.Errors[0].Message
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = inat.ParseRetryAfter(resp.Headers.Get("Retry-After"))
	}

	retriable, _ := c.policy.ShouldRetry(context.Background(), &http.Response{StatusCode: resp.StatusCode}, nil)
	if retriable {
		return fmt.Errorf("%w: %w", apiErr, inat.ErrRetriesExhausted)
	}

	return fmt.Errorf("%s %s: %w", req.Method, req.Path, apiErr)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body, Idempotent: true})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Idempotent: true})
}

// logRequest logs the outbound request when debug logging is on.
func (c *Client) logRequest(req *Request) {
	if !c.debug || c.logger == nil {
		return
	}

	c.logger.Debug("HTTP Request", map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
	})
}

// logResponse logs the response when debug logging is on.
func (c *Client) logResponse(req *Request, resp *Response) {
	if !c.debug || c.logger == nil {
		return
	}

	c.logger.Debug("HTTP Response", map[string]interface{}{
		"method":      req.Method,
		"path":        req.Path,
		"status_code": resp.StatusCode,
		"body_bytes":  len(resp.Body),
	})
}

// isWrite reports whether the method mutates server state.
func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// resourcePrefix returns the top-level collection of a path, e.g.
// "/observations" for "/observations/12345/fave".
func resourcePrefix(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[:idx]
	}

	return "/" + trimmed
}

// flattenQuery collapses multi-valued parameters into the comma-joined form
// the API accepts, for cache key derivation.
func flattenQuery(query url.Values) map[string]string {
	if len(query) == 0 {
		return nil
	}

	flat := make(map[string]string, len(query))
	for key, values := range query {
		flat[key] = strings.Join(values, ",")
	}

	return flat
}

// JSON decodes a JSON response body into out.
func JSON(resp *Response, out interface{}) error {
	if len(resp.Body) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(resp.Body))

	err := decoder.Decode(out)
	if err != nil {
		return fmt.Errorf("decoding response: %v: %w", err, inat.ErrSchemaMismatch)
	}

	return nil
}
