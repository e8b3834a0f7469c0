// Package config handles loading and validation of renotion configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DeviceConfig specifies where the device export lands.
type DeviceConfig struct {
	// BackupDir is where the export tool writes PDFs and sidecar metadata.
	// Defaults to ./remarkable_backup when empty.
	BackupDir string `yaml:"backup_dir"`
}

// DriveConfig holds optional Google Drive settings.
// OAuth client credentials come from the environment, not from the config file.
type DriveConfig struct {
	// FolderID is the Drive folder PDFs are uploaded into. Empty means Drive root.
	FolderID string `yaml:"folder_id,omitempty"`
}

// Options contains optional sync behavior settings.
type Options struct {
	// SkipTrashed controls whether notebooks sitting in the device trash are
	// skipped. Defaults to true if not specified.
	SkipTrashed *bool `yaml:"skip_trashed"`
}

// ShouldSkipTrashed returns whether trashed notebooks are skipped.
// Defaults to true if not explicitly set.
func (o *Options) ShouldSkipTrashed() bool {
	if o.SkipTrashed == nil {
		return true
	}
	return *o.SkipTrashed
}

// Config is the top-level configuration structure.
type Config struct {
	Device  DeviceConfig `yaml:"device"`
	Drive   DriveConfig  `yaml:"drive"`
	Options Options      `yaml:"options"`

	// TempDir is where copied PDFs and generated page images live for the
	// duration of one notebook's processing.
	TempDir string `yaml:"temp_dir,omitempty"`

	// Secrets are loaded from environment only, never from the config file.
	NotionToken        string `yaml:"-"`
	NotionDatabaseID   string `yaml:"-"`
	VisionAPIKey       string `yaml:"-"`
	OAuthClientID      string `yaml:"-"`
	OAuthClientSecret  string `yaml:"-"`
	RemarkablePassword string `yaml:"-"`
}

// Load reads configuration from a YAML file and environment variables.
// The config file is optional: a missing file yields defaults, and all
// secrets come from the environment anyway. If a .env file exists in the
// current directory, it is loaded first.
func Load(path string) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.NotionToken = os.Getenv("NOTION_TOKEN")
	cfg.NotionDatabaseID = os.Getenv("NOTION_DATABASE_ID")
	cfg.VisionAPIKey = os.Getenv("GOOGLE_VISION_API_KEY")
	cfg.OAuthClientID = os.Getenv("GOOGLE_OAUTH_CLIENT_ID")
	cfg.OAuthClientSecret = os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET")
	cfg.RemarkablePassword = os.Getenv("REMARKABLE_PASSWORD")

	// Env overrides for paths, matching what the export tool itself reads.
	if dir := os.Getenv("REMARKABLE_BACKUP_DIR"); dir != "" {
		cfg.Device.BackupDir = dir
	}
	if id := os.Getenv("GOOGLE_DRIVE_FOLDER_ID"); id != "" {
		cfg.Drive.FolderID = id
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device.BackupDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.Device.BackupDir = filepath.Join(cwd, "remarkable_backup")
		} else {
			c.Device.BackupDir = "remarkable_backup"
		}
	}
	if c.TempDir == "" {
		c.TempDir = filepath.Join(os.TempDir(), "renotion")
	}
}

// Validate checks that the configuration has all required fields.
func (c *Config) Validate() error {
	var errs []error

	if c.NotionToken == "" {
		errs = append(errs, errors.New("NOTION_TOKEN environment variable is required"))
	}
	if c.NotionDatabaseID == "" {
		errs = append(errs, errors.New("NOTION_DATABASE_ID environment variable is required"))
	}
	if c.VisionAPIKey == "" {
		errs = append(errs, errors.New("GOOGLE_VISION_API_KEY environment variable is required"))
	}

	// Drive is optional, but a half-configured client is a misconfiguration.
	if (c.OAuthClientID == "") != (c.OAuthClientSecret == "") {
		errs = append(errs, errors.New("GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET must be set together"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// DriveEnabled reports whether the optional Google Drive upload path is configured.
func (c *Config) DriveEnabled() bool {
	return c.OAuthClientID != "" && c.OAuthClientSecret != ""
}

// EnsureDirs creates the backup and temp directories if they do not exist.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.Device.BackupDir, 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	if err := os.MkdirAll(c.TempDir, 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	return nil
}
