// Package gauth implements the Google OAuth flow and token persistence
// used by the Drive upload path.
package gauth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StoredToken is the persisted shape of a Google OAuth token. The refresh
// token survives across runs; the access token is replaced on refresh.
type StoredToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past, or within margin of,
// its expiry.
func (t *StoredToken) Expired(margin time.Duration) bool {
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// TokenStore reads and writes the token file under the user config dir.
type TokenStore struct {
	path string
}

// NewTokenStore creates a store at the default location,
// <user-config-dir>/renotion/google_token.json.
func NewTokenStore() (*TokenStore, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	return &TokenStore{path: filepath.Join(configDir, "renotion", "google_token.json")}, nil
}

// NewTokenStoreAt creates a store at an explicit path.
func NewTokenStoreAt(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load reads the stored token. os.ErrNotExist means no auth has happened
// yet; callers should direct the user to the auth command.
func (s *TokenStore) Load() (*StoredToken, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", s.path, err)
	}
	return &token, nil
}

// Save writes the token with owner-only permissions.
func (s *TokenStore) Save(token *StoredToken) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// Path returns the token file location, for log messages.
func (s *TokenStore) Path() string {
	return s.path
}
