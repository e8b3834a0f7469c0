package gauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

// The loopback redirect must match the one registered on the OAuth
// client. drive.file scopes access to files this app created.
const (
	redirectURL = "http://localhost:8085"
	driveScope  = "https://www.googleapis.com/auth/drive.file"
)

// refreshMargin triggers a refresh slightly before actual expiry so an
// upload doesn't start with a token about to die mid-flight.
const refreshMargin = 5 * time.Minute

// Client drives the OAuth dance and hands out valid access tokens.
type Client struct {
	config *oauth2.Config
	store  *TokenStore
	logger *slog.Logger
}

// NewClient creates an OAuth client for the given app credentials.
func NewClient(clientID, clientSecret string, store *TokenStore, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{driveScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		store:  store,
		logger: logger,
	}
}

// Authorize runs the interactive flow: open the consent page in a
// browser, catch the redirect on a loopback listener, exchange the code,
// and persist the resulting token.
func (c *Client) Authorize(ctx context.Context) error {
	state := uuid.NewString()

	listener, err := net.Listen("tcp", "localhost:8085")
	if err != nil {
		return fmt.Errorf("starting callback listener: %w", err)
	}
	defer listener.Close()

	authURL := c.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	c.logger.Info("opening browser for Google authorization")
	if err := browser.OpenURL(authURL); err != nil {
		c.logger.Warn("could not open browser, visit the URL manually", "url", authURL)
	}

	code, err := waitForCallback(ctx, listener, state)
	if err != nil {
		return fmt.Errorf("waiting for authorization: %w", err)
	}

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return errors.New("no refresh token granted, revoke access and retry")
	}

	stored := &StoredToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if err := c.store.Save(stored); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	c.logger.Info("Google authorization complete", "token_file", c.store.Path())
	return nil
}

// waitForCallback serves exactly one request on the listener and returns
// the authorization code from it.
func waitForCallback(ctx context.Context, listener net.Listener, wantState string) (string, error) {
	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code, err := parseCallback(r.URL.Query().Get("state"), r.URL.Query().Get("code"), r.URL.Query().Get("error"), wantState)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
			} else {
				fmt.Fprintln(w, "Authorization complete. You can close this tab.")
			}
			select {
			case results <- result{code, err}:
			default:
			}
		}),
	}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// parseCallback validates the redirect query parameters.
func parseCallback(state, code, errParam, wantState string) (string, error) {
	if errParam != "" {
		return "", fmt.Errorf("authorization denied: %s", errParam)
	}
	if state != wantState {
		return "", errors.New("state mismatch in OAuth callback")
	}
	if code == "" {
		return "", errors.New("no authorization code in callback")
	}
	return code, nil
}

// Load returns the stored token, refreshing it first when it is near
// expiry. A missing token file bootstraps the full Authorize flow.
// Satisfies the token source the Drive client consumes.
func (c *Client) Load(ctx context.Context) (*StoredToken, error) {
	token, err := c.store.Load()
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Info("no stored Google token, starting authorization")
		if authErr := c.Authorize(ctx); authErr != nil {
			return nil, authErr
		}
		token, err = c.store.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading Google token: %w", err)
	}

	if token.Expired(refreshMargin) {
		c.logger.Debug("access token near expiry, refreshing")
		return c.Refresh(ctx, token)
	}
	return token, nil
}

// Refresh exchanges the refresh token for a fresh access token and
// persists it. Google may omit the refresh token in the response; the old
// one is kept in that case.
func (c *Client) Refresh(ctx context.Context, old *StoredToken) (*StoredToken, error) {
	source := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: old.RefreshToken})

	fresh, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}

	stored := &StoredToken{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		ExpiresAt:    fresh.Expiry,
	}
	if stored.RefreshToken == "" {
		stored.RefreshToken = old.RefreshToken
	}

	if err := c.store.Save(stored); err != nil {
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}

	c.logger.Debug("access token refreshed", "expires_at", stored.ExpiresAt)
	return stored, nil
}
