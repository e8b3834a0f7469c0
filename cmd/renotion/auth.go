package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpetrov/renotion/internal/config"
	"github.com/mpetrov/renotion/internal/gauth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Google Drive access",
	Long: `Auth runs the Google OAuth flow for Drive uploads: it opens a browser
for consent, catches the redirect on localhost:8085, and stores the
resulting token for later sync runs.`,
	RunE: runAuth,
}

func runAuth(_ *cobra.Command, _ []string) error {
	logger := setupLogger(nil, verbose)

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.DriveEnabled() {
		return errors.New("set GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET to use Drive upload")
	}

	store, err := gauth.NewTokenStore()
	if err != nil {
		return err
	}

	client := gauth.NewClient(cfg.OAuthClientID, cfg.OAuthClientSecret, store, logger)
	return client.Authorize(ctx)
}
