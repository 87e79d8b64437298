package inat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time interface check.
var _ Cache = (*SQLiteCache)(nil)

// SQLiteCache is a persistent Cache backed by SQLite, surviving process
// restarts. Use ":memory:" as the DSN for an ephemeral database. The store
// is opaque to callers and can be deleted and rebuilt at any time.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (or creates) a SQLite database at the given path and
// initialises the schema.
func NewSQLiteCache(dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite cache: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS inat_cache (
			key           TEXT PRIMARY KEY,
			data          BLOB NOT NULL,
			etag          TEXT NOT NULL DEFAULT '',
			last_modified TEXT NOT NULL DEFAULT '',
			expires_at    INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return &SQLiteCache{db: db}, nil
}

// Get implements Cache.Get.
func (c *SQLiteCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	var (
		entry     CacheEntry
		expiresAt int64
	)

	err := c.db.QueryRowContext(ctx,
		`SELECT data, etag, last_modified, expires_at FROM inat_cache WHERE key = ?`, key,
	).Scan(&entry.Data, &entry.ETag, &entry.LastModified, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("key not found: %w", ErrCacheMiss)
	}

	if err != nil {
		return nil, fmt.Errorf("reading cache row: %w", err)
	}

	entry.ExpiresAt = time.Unix(0, expiresAt)

	if entry.Expired() {
		if entry.HasValidator() {
			return &entry, fmt.Errorf("entry expired: %w", ErrCacheEntryExpired)
		}

		_, _ = c.db.ExecContext(ctx, `DELETE FROM inat_cache WHERE key = ?`, key)

		return nil, fmt.Errorf("entry expired: %w", ErrCacheEntryExpired)
	}

	return &entry, nil
}

// Set implements Cache.Set.
func (c *SQLiteCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO inat_cache (key, data, etag, last_modified, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, etag = excluded.etag,
		 last_modified = excluded.last_modified, expires_at = excluded.expires_at`,
		key, entry.Data, entry.ETag, entry.LastModified, entry.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("writing cache row: %w", err)
	}

	return nil
}

// Delete implements Cache.Delete.
func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM inat_cache WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting cache row: %w", err)
	}

	return nil
}

// DeletePrefix implements Cache.DeletePrefix.
func (c *SQLiteCache) DeletePrefix(ctx context.Context, prefix string) error {
	// ESCAPE so user-controlled prefixes cannot act as LIKE wildcards.
	escaped := escapeLike(prefix)

	_, err := c.db.ExecContext(ctx,
		`DELETE FROM inat_cache WHERE key LIKE ? ESCAPE '\'`, escaped+"%",
	)
	if err != nil {
		return fmt.Errorf("deleting cache rows by prefix: %w", err)
	}

	return nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}

		out = append(out, s[i])
	}

	return string(out)
}

// Clear implements Cache.Clear.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM inat_cache`)
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	return nil
}

// Has implements Cache.Has.
func (c *SQLiteCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
