package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fieldnotes-io/inat/internal/constants"
)

// Token represents an OAuth2 token response.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// Valid reports whether the token can still be used. Tokens within the
// expiration buffer are treated as already expired so a request started now
// does not arrive with a dead token.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// TokenKeeper stores the current token for a client. Implementations must be
// safe for concurrent use.
type TokenKeeper interface {
	Get() *Token
	Set(token *Token)
	Clear()
}

// TokenStore is an in-memory token store.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token, or nil.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set stores a token, deriving ExpiresAt from ExpiresIn when the server
// returned only a relative lifetime.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != nil && token.ExpiresAt.IsZero() && token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	s.token = token
}

// Clear removes the stored token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}

// FileTokenStore persists the token as JSON on disk so it survives process
// restarts. The file is written with owner-only permissions. Reads are
// served from memory after the initial load.
type FileTokenStore struct {
	mu    sync.RWMutex
	path  string
	token *Token
}

// NewFileTokenStore creates a file-backed token store at path, loading any
// previously persisted token. A missing file is not an error.
func NewFileTokenStore(path string) (*FileTokenStore, error) {
	store := &FileTokenStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}

		return nil, fmt.Errorf("reading credential file: %w", err)
	}

	var token Token

	err = json.Unmarshal(data, &token)
	if err != nil {
		return nil, fmt.Errorf("parsing credential file %s: %w", path, err)
	}

	store.token = &token

	return store, nil
}

// DefaultCredentialPath returns the standard location for persisted
// credentials under the user's config directory.
func DefaultCredentialPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config directory: %w", err)
	}

	return filepath.Join(configDir, "inat", "credentials.json"), nil
}

// Get returns the stored token, or nil.
func (s *FileTokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set stores a token in memory and persists it to disk. Persistence is best
// effort: a write failure leaves the in-memory token usable.
func (s *FileTokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != nil && token.ExpiresAt.IsZero() && token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	s.token = token

	if token == nil {
		_ = os.Remove(s.path)

		return
	}

	err := s.persist(token)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to persist token: %v\n", err)
	}
}

// Clear removes the stored token from memory and disk.
func (s *FileTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	_ = os.Remove(s.path)
}

// persist writes the token to the credential file with owner-only
// permissions.
func (s *FileTokenStore) persist(token *Token) error {
	err := os.MkdirAll(filepath.Dir(s.path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	err = os.WriteFile(s.path, data, constants.CredentialFilePerm)
	if err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}

	return nil
}
