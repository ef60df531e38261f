package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	ReportDir string `toml:"report_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Driver contains connection settings for the UI automation driver that
// performs remote-interface actions against the line-of-business application.
type Driver struct {
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Environment    string `toml:"environment"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Delivery contains configuration for publishing pipeline results to a
// remote endpoint.
type Delivery struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	Mode          string `toml:"mode"`
	IncludeReport bool   `toml:"include_report"`
	Timeout       int    `toml:"timeout"`
	RetryCount    int    `toml:"retry_count"`
	RetryDelay    int    `toml:"retry_delay"`
	AuthToken     string `toml:"auth_token"`
	APIKey        string `toml:"api_key"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Tasks          bool   `toml:"tasks"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for worker timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	TaskCooldown       int `toml:"task_cooldown"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Maintenance contains configuration for scheduled housekeeping.
type Maintenance struct {
	Enabled       bool   `toml:"enabled"`
	Schedule      string `toml:"schedule"`
	RetentionDays int    `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for docflow.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Driver: UI automation driver connection settings
//   - Delivery: result publishing endpoint, transport mode, and retry policy
//   - Notifications: ntfy push notification settings
//   - Workflow: worker polling intervals and cooldowns
//   - Maintenance: scheduled purge of terminal tasks and old reports
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Driver        Driver        `toml:"driver"`
	Delivery      Delivery      `toml:"delivery"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Maintenance   Maintenance   `toml:"maintenance"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/docflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. Secrets may be supplied through
// a .env file or the process environment; they override file values.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// Best-effort: a missing .env file is not an error.
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"DOCFLOW_DELIVERY_URL", &c.Delivery.URL},
		{"DOCFLOW_DELIVERY_AUTH_TOKEN", &c.Delivery.AuthToken},
		{"DOCFLOW_DELIVERY_API_KEY", &c.Delivery.APIKey},
		{"DOCFLOW_DRIVER_USERNAME", &c.Driver.Username},
		{"DOCFLOW_DRIVER_PASSWORD", &c.Driver.Password},
		{"DOCFLOW_API_TOKEN", &c.Paths.APIToken},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("docflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ReportDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// DeliveryHeaders returns the static headers merged into every delivery
// request. Empty values are dropped.
func (c *Config) DeliveryHeaders() map[string]string {
	headers := make(map[string]string, 2)
	if token := strings.TrimSpace(c.Delivery.AuthToken); token != "" {
		headers["Authorization"] = token
	}
	if key := strings.TrimSpace(c.Delivery.APIKey); key != "" {
		headers["X-API-Key"] = key
	}
	return headers
}
