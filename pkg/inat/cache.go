package inat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldnotes-io/inat/internal/constants"
)

// CacheEntry is a stored response together with the freshness metadata
// needed for TTL expiry and conditional revalidation.
type CacheEntry struct {
	Data []byte `json:"data"`
	// ExpiresAt is the freshness deadline. An entry past this time is
	// stale but may still be revalidated via its validators.
	ExpiresAt time.Time `json:"expires_at"`
	// ETag is the server-supplied validator, empty when absent.
	ETag string `json:"etag,omitempty"`
	// LastModified is the Last-Modified validator, empty when absent.
	LastModified string `json:"last_modified,omitempty"`
}

// Expired reports whether the entry is past its freshness deadline.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// HasValidator reports whether the entry can be revalidated with a
// conditional request instead of a full refetch.
func (e *CacheEntry) HasValidator() bool {
	return e.ETag != "" || e.LastModified != ""
}

// Cache is the interface for response cache backends.
type Cache interface {
	// Get retrieves an entry. It returns ErrCacheMiss for absent keys.
	// Stale entries carrying a validator are returned wrapped in
	// ErrCacheEntryExpired so the executor can revalidate.
	Get(ctx context.Context, key string) (*CacheEntry, error)
	// Set stores an entry under key, last-write-wins.
	Set(ctx context.Context, key string, entry *CacheEntry) error
	// Delete removes a single entry.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every entry whose key starts with prefix. Used
	// to invalidate a resource collection after a successful write.
	DeletePrefix(ctx context.Context, prefix string) error
	// Clear removes all entries.
	Clear(ctx context.Context) error
	// Has reports whether a fresh entry exists for key.
	Has(ctx context.Context, key string) bool
}

// MemoryCache is an in-memory Cache with a bounded entry count. It is safe
// for concurrent use. When full, the entry closest to expiry is evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
	}
}

// Get implements Cache.Get.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("key not found: %w", ErrCacheMiss)
	}

	if entry.Expired() {
		if entry.HasValidator() {
			return entry, fmt.Errorf("entry expired: %w", ErrCacheEntryExpired)
		}

		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()

		return nil, fmt.Errorf("entry expired: %w", ErrCacheEntryExpired)
	}

	return entry, nil
}

// Set implements Cache.Set.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry

	return nil
}

// evictOldest removes the entry with the earliest expiry. Caller holds the
// write lock.
func (c *MemoryCache) evictOldest() {
	var oldestKey string

	var oldestExpiry time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Delete implements Cache.Delete.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

// DeletePrefix implements Cache.DeletePrefix.
func (c *MemoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}

	return nil
}

// Clear implements Cache.Clear.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry)

	return nil
}

// Has implements Cache.Has.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]

	return ok && !entry.Expired()
}

// Cleanup removes all expired entries. Callers may run this periodically;
// expired entries are otherwise dropped lazily on access.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.Expired() {
			delete(c.entries, key)
		}
	}
}

// CachingPolicy decides which requests are cacheable.
type CachingPolicy struct {
	// CacheGET enables caching of GET responses.
	CacheGET bool
	// CacheErrors enables caching of non-2xx responses.
	CacheErrors bool
	// IncludePaths restricts caching to the listed path prefixes when
	// non-empty.
	IncludePaths []string
	// ExcludePaths disables caching for the listed path prefixes.
	ExcludePaths []string
}

// DefaultCachingPolicy returns the default policy: successful GETs only.
func DefaultCachingPolicy() *CachingPolicy {
	return &CachingPolicy{
		CacheGET: true,
	}
}

// ShouldCache reports whether a response for the given method, path and
// status may be stored.
func (p *CachingPolicy) ShouldCache(method, path string, statusCode int) bool {
	if method != "GET" || !p.CacheGET {
		return false
	}

	if !p.CacheErrors && (statusCode < 200 || statusCode >= 300) {
		return false
	}

	for _, excluded := range p.ExcludePaths {
		if strings.HasPrefix(path, excluded) {
			return false
		}
	}

	if len(p.IncludePaths) > 0 {
		for _, included := range p.IncludePaths {
			if strings.HasPrefix(path, included) {
				return true
			}
		}

		return false
	}

	return true
}

// CacheOptions holds common options applied to any cache backend.
type CacheOptions struct {
	// TTL is the freshness window applied to new entries.
	TTL time.Duration
	// Policy decides cacheability per request.
	Policy *CachingPolicy
}

// DefaultCacheOptions returns the default TTL and policy.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		TTL:    constants.DefaultCacheTTL,
		Policy: DefaultCachingPolicy(),
	}
}

// CacheStats tracks cache effectiveness counters.
type CacheStats struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// GetHitRate returns the fraction of lookups served from cache.
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// CacheManager wraps a Cache backend with key derivation, TTL policy and
// hit/miss accounting. It is the single component the executor talks to.
type CacheManager struct {
	cache    Cache
	options  *CacheOptions
	identity string

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewCacheManager creates a cache manager. A nil cache disables caching; a
// nil options uses DefaultCacheOptions.
func NewCacheManager(cache Cache, options *CacheOptions) *CacheManager {
	if options == nil {
		options = DefaultCacheOptions()
	}

	if options.Policy == nil {
		options.Policy = DefaultCachingPolicy()
	}

	return &CacheManager{
		cache:   cache,
		options: options,
	}
}

// Enabled reports whether a backend is configured.
func (m *CacheManager) Enabled() bool {
	return m.cache != nil
}

// TTL returns the freshness window for new entries, preferring override
// when positive.
func (m *CacheManager) TTL(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}

	return m.options.TTL
}

// ShouldCache applies the configured caching policy.
func (m *CacheManager) ShouldCache(method, path string, statusCode int) bool {
	return m.cache != nil && m.options.Policy.ShouldCache(method, path, statusCode)
}

// SetIdentity namespaces derived keys to a credential identity. Required
// when a persistent backend is shared between differently-authenticated
// clients, so entries never leak across accounts.
func (m *CacheManager) SetIdentity(identity string) {
	m.identity = identity
}

func (m *CacheManager) scopeKey(key string) string {
	if m.identity == "" {
		return key
	}

	return m.identity + "|" + key
}

// GetCacheKey derives a deterministic cache key from method, path and
// params. Parameters are sorted by key so two semantically equal requests
// always produce the same key regardless of insertion order. When an
// identity is set, keys carry it as a namespace prefix.
func (m *CacheManager) GetCacheKey(method, path string, params map[string]string) string {
	if len(params) == 0 {
		return m.scopeKey(method + ":" + path)
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var builder strings.Builder

	builder.WriteString(method)
	builder.WriteString(":")
	builder.WriteString(path)
	builder.WriteString(":")

	for i, key := range keys {
		if i > 0 {
			builder.WriteString("&")
		}

		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(params[key])
	}

	return m.scopeKey(builder.String())
}

// Get retrieves the body stored under key, counting hits and misses.
func (m *CacheManager) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := m.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}

	return entry.Data, nil
}

// GetEntry retrieves the full entry stored under key. Stale entries with a
// validator are returned alongside ErrCacheEntryExpired.
func (m *CacheManager) GetEntry(ctx context.Context, key string) (*CacheEntry, error) {
	if m.cache == nil {
		return nil, ErrCacheDisabled
	}

	entry, err := m.cache.Get(ctx, key)
	if err != nil {
		m.misses.Add(1)

		return entry, err
	}

	m.hits.Add(1)

	return entry, nil
}

// Set stores a body under key with the given TTL.
func (m *CacheManager) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return m.SetEntry(ctx, key, &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// SetWithETag stores a body along with its ETag validator.
func (m *CacheManager) SetWithETag(ctx context.Context, key string, data []byte, etag string, ttl time.Duration) error {
	return m.SetEntry(ctx, key, &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
		ETag:      etag,
	})
}

// SetEntry stores a prepared entry.
func (m *CacheManager) SetEntry(ctx context.Context, key string, entry *CacheEntry) error {
	if m.cache == nil {
		return nil
	}

	err := m.cache.Set(ctx, key, entry)
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}

	m.sets.Add(1)

	return nil
}

// Refresh extends the freshness deadline of an existing entry without
// touching its body, for use after a 304 Not Modified revalidation.
func (m *CacheManager) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	if m.cache == nil {
		return ErrCacheDisabled
	}

	entry, err := m.cache.Get(ctx, key)
	if entry == nil {
		return err
	}

	entry.ExpiresAt = time.Now().Add(ttl)

	return m.cache.Set(ctx, key, entry)
}

// Invalidate removes a single entry.
func (m *CacheManager) Invalidate(ctx context.Context, key string) error {
	if m.cache == nil {
		return nil
	}

	return m.cache.Delete(ctx, key)
}

// InvalidatePrefix removes every entry under a key prefix. The executor
// calls this with the collection path after a successful write so
// subsequent reads do not observe stale listings. The prefix is scoped to
// the manager's identity the same way derived keys are.
func (m *CacheManager) InvalidatePrefix(ctx context.Context, prefix string) error {
	if m.cache == nil {
		return nil
	}

	return m.cache.DeletePrefix(ctx, m.scopeKey(prefix))
}

// Clear removes all entries.
func (m *CacheManager) Clear(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}

	return m.cache.Clear(ctx)
}

// GetStats returns a snapshot of the hit/miss/set counters.
func (m *CacheManager) GetStats() *CacheStats {
	return &CacheStats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Sets:   m.sets.Load(),
	}
}
