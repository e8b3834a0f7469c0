package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpetrov/renotion/internal/config"
	"github.com/mpetrov/renotion/internal/gauth"
	"github.com/mpetrov/renotion/internal/notion"
	"github.com/mpetrov/renotion/internal/ocr"
	"github.com/mpetrov/renotion/internal/remarkable"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and prerequisites",
	Long: `Check verifies everything a sync run needs:

1. Config and required environment variables are present
2. The device export tool is installed
3. pdftoppm (poppler) is installed
4. The Notion token can access the configured database
5. A Google token is stored, when Drive upload is configured`,
	RunE: runCheck,
}

// checkResult holds the outcome of a single prerequisite check.
type checkResult struct {
	name    string
	passed  bool
	message string
}

func runCheck(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(nil, verbose)

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	var results []checkResult

	cfg, err := config.Load(configPath)
	if err != nil {
		results = append(results, checkResult{"Configuration", false, err.Error()})
		printResults(cmd.OutOrStdout(), results)
		return errors.New("check failed")
	}
	results = append(results, checkResult{"Configuration", true, ""})

	device, err := remarkable.NewClient(cfg.Device.BackupDir, cfg.RemarkablePassword, logger)
	if err != nil {
		results = append(results, checkResult{"Backup directory", false, err.Error()})
	} else if err := device.CheckInstallation(ctx); err != nil {
		results = append(results, checkResult{"Export tool installed", false, err.Error()})
	} else {
		results = append(results, checkResult{"Export tool installed", true, ""})
	}

	if err := ocr.NewRasterizer(logger).CheckInstallation(); err != nil {
		results = append(results, checkResult{"pdftoppm installed", false, err.Error()})
	} else {
		results = append(results, checkResult{"pdftoppm installed", true, ""})
	}

	notionClient := notion.NewClient(cfg.NotionToken, cfg.NotionDatabaseID, logger)
	if err := notionClient.VerifyConnection(ctx); err != nil {
		results = append(results, checkResult{"Notion database accessible", false, err.Error()})
	} else {
		results = append(results, checkResult{"Notion database accessible", true, ""})
	}

	if cfg.DriveEnabled() {
		store, err := gauth.NewTokenStore()
		if err == nil {
			_, err = store.Load()
		}
		if err != nil {
			results = append(results, checkResult{"Google token stored", false, "run `renotion auth` first"})
		} else {
			results = append(results, checkResult{"Google token stored", true, ""})
		}
	} else {
		results = append(results, checkResult{"Google Drive", true, "not configured, PDFs will be referenced locally"})
	}

	printResults(cmd.OutOrStdout(), results)

	for _, r := range results {
		if !r.passed {
			return errors.New("check failed")
		}
	}
	return nil
}

func printResults(w io.Writer, results []checkResult) {
	for _, r := range results {
		mark := "✓"
		if !r.passed {
			mark = "✗"
		}
		if r.message != "" {
			fmt.Fprintf(w, "%s %s: %s\n", mark, r.name, r.message)
		} else {
			fmt.Fprintf(w, "%s %s\n", mark, r.name)
		}
	}
}
