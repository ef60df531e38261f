package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"docflow/internal/config"
	"docflow/internal/queue"
)

// NewConfig returns a validated config rooted in a per-test temp
// directory, with timings tightened for tests.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.ReportDir = filepath.Join(dir, "reports")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Driver.BaseURL = "http://127.0.0.1:1"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.TaskCooldown = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Maintenance.Enabled = false

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// MustOpenStore opens the queue store for the config and closes it
// when the test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// WriteCSV writes an input file into a temp directory and returns its
// path.
func WriteCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}
