package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docflow/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", resolved)
	}
	if cfg.Workflow.QueuePollInterval != 10 {
		t.Fatalf("expected default poll interval 10, got %d", cfg.Workflow.QueuePollInterval)
	}
	if cfg.Workflow.TaskCooldown != 5 {
		t.Fatalf("expected default task cooldown 5, got %d", cfg.Workflow.TaskCooldown)
	}
	if cfg.Delivery.Mode != "json" {
		t.Fatalf("expected default delivery mode json, got %q", cfg.Delivery.Mode)
	}
	if cfg.Delivery.RetryCount != 3 || cfg.Delivery.RetryDelay != 5 {
		t.Fatalf("unexpected retry defaults: %d/%d", cfg.Delivery.RetryCount, cfg.Delivery.RetryDelay)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
[paths]
data_dir = "~/docflow-data"

[delivery]
enabled = true
url = " https://example.com/resultat "
mode = "MULTIPART"
`)
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if strings.HasPrefix(cfg.Paths.DataDir, "~") {
		t.Fatalf("expected expanded data dir, got %q", cfg.Paths.DataDir)
	}
	if cfg.Delivery.URL != "https://example.com/resultat" {
		t.Fatalf("expected trimmed URL, got %q", cfg.Delivery.URL)
	}
	if cfg.Delivery.Mode != "multipart" {
		t.Fatalf("expected lowercased mode, got %q", cfg.Delivery.Mode)
	}
}

func TestLoadRejectsUnknownDeliveryMode(t *testing.T) {
	path := writeConfig(t, `
[delivery]
enabled = false
mode = "carrier-pigeon"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown delivery mode")
	}
}

func TestLoadRequiresURLWhenDeliveryEnabled(t *testing.T) {
	path := writeConfig(t, `
[delivery]
enabled = true
url = ""
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error when delivery enabled without URL")
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	t.Setenv("DOCFLOW_DELIVERY_AUTH_TOKEN", "Bearer from-env")
	path := writeConfig(t, `
[delivery]
enabled = true
url = "https://example.com/resultat"
auth_token = "Bearer from-file"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Delivery.AuthToken != "Bearer from-env" {
		t.Fatalf("expected env override, got %q", cfg.Delivery.AuthToken)
	}
}

func TestDeliveryHeadersDropEmptyValues(t *testing.T) {
	cfg := config.Default()
	cfg.Delivery.AuthToken = "Bearer abc"
	cfg.Delivery.APIKey = "   "

	headers := cfg.DeliveryHeaders()
	if headers["Authorization"] != "Bearer abc" {
		t.Fatalf("expected Authorization header, got %#v", headers)
	}
	if _, ok := headers["X-API-Key"]; ok {
		t.Fatal("expected blank X-API-Key to be dropped")
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ReportDir = filepath.Join(base, "reports")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.ReportDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist", dir)
		}
	}
}
