package gauth

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestTokenStore_RoundTrip(t *testing.T) {
	store := NewTokenStoreAt(filepath.Join(t.TempDir(), "sub", "google_token.json"))

	saved := &StoredToken{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		ExpiresAt:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.AccessToken != saved.AccessToken || loaded.RefreshToken != saved.RefreshToken {
		t.Errorf("loaded token differs: %+v", loaded)
	}
	if !loaded.ExpiresAt.Equal(saved.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.ExpiresAt, saved.ExpiresAt)
	}
}

func TestTokenStore_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	store := NewTokenStoreAt(filepath.Join(t.TempDir(), "google_token.json"))
	if err := store.Save(&StoredToken{AccessToken: "x"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}
}

func TestTokenStore_LoadMissing(t *testing.T) {
	store := NewTokenStoreAt(filepath.Join(t.TempDir(), "nope.json"))

	_, err := store.Load()
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestStoredToken_Expired(t *testing.T) {
	tests := []struct {
		name      string
		expiresIn time.Duration
		want      bool
	}{
		{"plenty of time left", time.Hour, false},
		{"inside the refresh margin", 2 * time.Minute, true},
		{"already expired", -time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &StoredToken{ExpiresAt: time.Now().Add(tt.expiresIn)}
			if got := token.Expired(refreshMargin); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name     string
		state    string
		code     string
		errParam string
		wantErr  bool
	}{
		{"valid callback", "s1", "code-abc", "", false},
		{"state mismatch", "evil", "code-abc", "", true},
		{"user denied", "s1", "", "access_denied", true},
		{"missing code", "s1", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := parseCallback(tt.state, tt.code, tt.errParam, "s1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if !tt.wantErr && code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}
