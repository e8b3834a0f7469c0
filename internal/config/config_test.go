package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NOTION_TOKEN", "secret-token")
	t.Setenv("NOTION_DATABASE_ID", "db-123")
	t.Setenv("GOOGLE_VISION_API_KEY", "vision-key")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	configContent := `
device:
  backup_dir: "/data/backup"
drive:
  folder_id: "folder-abc"
options:
  skip_trashed: false
temp_dir: "/tmp/renotion-test"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	setRequiredEnv(t)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.BackupDir != "/data/backup" {
		t.Errorf("expected backup_dir '/data/backup', got %q", cfg.Device.BackupDir)
	}
	if cfg.Drive.FolderID != "folder-abc" {
		t.Errorf("expected folder_id 'folder-abc', got %q", cfg.Drive.FolderID)
	}
	if cfg.Options.ShouldSkipTrashed() {
		t.Error("expected skip_trashed to be false")
	}
	if cfg.TempDir != "/tmp/renotion-test" {
		t.Errorf("expected temp_dir '/tmp/renotion-test', got %q", cfg.TempDir)
	}
	if cfg.NotionToken != "secret-token" {
		t.Errorf("expected NotionToken 'secret-token', got %q", cfg.NotionToken)
	}
	if cfg.NotionDatabaseID != "db-123" {
		t.Errorf("expected NotionDatabaseID 'db-123', got %q", cfg.NotionDatabaseID)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.BackupDir == "" {
		t.Error("expected a default backup dir")
	}
	if cfg.TempDir == "" {
		t.Error("expected a default temp dir")
	}
	if !cfg.Options.ShouldSkipTrashed() {
		t.Error("expected skip_trashed to default to true")
	}
	if cfg.DriveEnabled() {
		t.Error("expected Drive to be disabled without OAuth credentials")
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("NOTION_DATABASE_ID", "")
	t.Setenv("GOOGLE_VISION_API_KEY", "")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected validation error for missing secrets")
	}
	for _, want := range []string{"NOTION_TOKEN", "NOTION_DATABASE_ID", "GOOGLE_VISION_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_HalfConfiguredDrive(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GOOGLE_OAUTH_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_OAUTH_CLIENT_SECRET", "")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected validation error for half-configured Drive credentials")
	}
}

func TestLoad_EnvOverridesBackupDir(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REMARKABLE_BACKUP_DIR", "/env/backup")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.BackupDir != "/env/backup" {
		t.Errorf("expected env override '/env/backup', got %q", cfg.Device.BackupDir)
	}
}
