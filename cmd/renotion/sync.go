package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mpetrov/renotion/internal/config"
	"github.com/mpetrov/renotion/internal/gauth"
	"github.com/mpetrov/renotion/internal/gdrive"
	"github.com/mpetrov/renotion/internal/notion"
	"github.com/mpetrov/renotion/internal/ocr"
	"github.com/mpetrov/renotion/internal/remarkable"
	"github.com/mpetrov/renotion/internal/sync"
)

var dryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync notebooks from the tablet to Notion",
	Long: `Sync exports all notebooks from a USB-connected reMarkable tablet,
runs OCR over each one, and creates or updates a page per notebook in
the configured Notion database.

When Google OAuth credentials are configured, each notebook's PDF is
also uploaded to Google Drive and linked from its page.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list notebooks without writing to Notion")
}

func runSync(_ *cobra.Command, _ []string) error {
	logger := setupLogger(nil, verbose)

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	if !dryRun {
		if err := engine.VerifyPrerequisites(ctx); err != nil {
			return fmt.Errorf("prerequisites check failed: %w", err)
		}
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	// Per-notebook failures are reported but don't fail the process: the
	// run itself completed and the rest of the notebooks are synced.
	for _, nbErr := range result.Errors {
		logger.Error("failed notebook", "name", nbErr.Name, "error", nbErr.Err)
	}
	return nil
}

// buildEngine wires the full pipeline from config.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*sync.Engine, error) {
	device, err := remarkable.NewClient(cfg.Device.BackupDir, cfg.RemarkablePassword, logger)
	if err != nil {
		return nil, err
	}

	extractor := ocr.NewExtractor(
		ocr.NewRasterizer(logger),
		ocr.NewVisionClient(cfg.VisionAPIKey, logger),
		cfg.TempDir,
		logger,
	)

	notionClient := notion.NewClient(cfg.NotionToken, cfg.NotionDatabaseID, logger)

	var uploader sync.Uploader
	if cfg.DriveEnabled() {
		store, err := gauth.NewTokenStore()
		if err != nil {
			return nil, err
		}
		authClient := gauth.NewClient(cfg.OAuthClientID, cfg.OAuthClientSecret, store, logger)
		uploader = gdrive.NewClient(authClient, cfg.Drive.FolderID, logger)
	} else {
		logger.Debug("Google Drive upload not configured, PDFs will be referenced locally")
	}

	engine := sync.NewEngine(device, extractor, notionClient, uploader, cfg.TempDir, sync.Options{
		DryRun:      dryRun,
		SkipTrashed: cfg.Options.ShouldSkipTrashed(),
	}, logger)

	return engine, nil
}
