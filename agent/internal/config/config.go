package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultContainer      = "quilibrium"
	DefaultListenAddr     = ":5001"
	DefaultSelfAddr       = ":8000"
	DefaultDockerPath     = "docker"
	DefaultLogWindow      = 5 * time.Minute
	DefaultLogStream      = "stderr"
	DefaultCommandTimeout = 10 * time.Second
	DefaultLogLevel       = "info"
	DefaultAuthHeader     = "X-API-Key"
)

// Environment variables that override the file.
const (
	EnvContainer  = "QUILMON_CONTAINER"
	EnvListenAddr = "QUILMON_LISTEN_ADDR"
	EnvSelfAddr   = "QUILMON_SELF_METRICS_ADDR"
	EnvHostname   = "QUILMON_HOSTNAME"
	EnvDockerPath = "QUILMON_DOCKER_PATH"

	// envLegacyContainer is honoured for deployments of the older exporter.
	envLegacyContainer = "service_name"
)

// DefaultStatusCommand prints the node's peer id, score, frame and balance.
var DefaultStatusCommand = []string{"node", "-node-info"}

// Config is the top-level configuration file.
type Config struct {
	Exporter ExporterConfig `yaml:"exporter"`
}

// ExporterConfig holds all exporter settings.
type ExporterConfig struct {
	// Container is the name filter of the node container.
	Container string `yaml:"container"`

	// ListenAddr is the HTTP address serving /metrics.
	ListenAddr string `yaml:"listen_addr"`

	// SelfMetricsAddr serves the exporter's own Go and process metrics.
	// Empty disables the listener.
	SelfMetricsAddr string `yaml:"self_metrics_addr"`

	// DockerPath is the docker CLI binary.
	DockerPath string `yaml:"docker_path"`

	// StatusCommand runs inside the container and prints node info.
	StatusCommand []string `yaml:"status_command"`

	// LogWindow is how much recent log history each scrape reads.
	LogWindow time.Duration `yaml:"log_window"`

	// LogStream is the docker logs stream scanned: stderr | stdout | both.
	LogStream string `yaml:"log_stream"`

	// CommandTimeout bounds each docker invocation.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// Hostname overrides the hostname label. Empty uses os.Hostname.
	Hostname string `yaml:"hostname"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Auth protects the HTTP endpoints.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures HTTP API key authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the request header carrying the key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// SlogLevel maps LogLevel onto slog. Unknown values read as info.
func (c ExporterConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path. An empty path skips the
// file. A .env file in the working directory is loaded first, then
// environment overrides are applied on top of the file values.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads path into the process environment when it exists.
// Variables already set are left alone.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Exporter: ExporterConfig{
			Container:       DefaultContainer,
			ListenAddr:      DefaultListenAddr,
			SelfMetricsAddr: DefaultSelfAddr,
			DockerPath:      DefaultDockerPath,
			StatusCommand:   append([]string(nil), DefaultStatusCommand...),
			LogWindow:       DefaultLogWindow,
			LogStream:       DefaultLogStream,
			CommandTimeout:  DefaultCommandTimeout,
			LogLevel:        DefaultLogLevel,
			Auth: AuthConfig{
				Mode:   "none",
				Header: DefaultAuthHeader,
			},
		},
	}
}

func applyEnv(cfg *Config) {
	e := &cfg.Exporter
	if v := os.Getenv(envLegacyContainer); v != "" {
		e.Container = v
	}
	if v := os.Getenv(EnvContainer); v != "" {
		e.Container = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		e.ListenAddr = v
	}
	if v, ok := os.LookupEnv(EnvSelfAddr); ok {
		e.SelfMetricsAddr = v
	}
	if v := os.Getenv(EnvHostname); v != "" {
		e.Hostname = v
	}
	if v := os.Getenv(EnvDockerPath); v != "" {
		e.DockerPath = v
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	e := cfg.Exporter
	if e.Container == "" {
		return fmt.Errorf("exporter.container is required")
	}
	if e.ListenAddr == "" {
		return fmt.Errorf("exporter.listen_addr is required")
	}
	if e.DockerPath == "" {
		return fmt.Errorf("exporter.docker_path is required")
	}
	if len(e.StatusCommand) == 0 {
		return fmt.Errorf("exporter.status_command must not be empty")
	}
	if e.LogWindow <= 0 {
		return fmt.Errorf("exporter.log_window must be positive")
	}
	if e.CommandTimeout <= 0 {
		return fmt.Errorf("exporter.command_timeout must be positive")
	}
	switch e.LogStream {
	case "stderr", "stdout", "both":
	default:
		return fmt.Errorf("exporter.log_stream: unknown stream %q", e.LogStream)
	}
	switch strings.ToLower(e.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("exporter.log_level: unknown level %q", e.LogLevel)
	}
	switch e.Auth.Mode {
	case "apikey":
		if e.Auth.Header == "" {
			return fmt.Errorf("exporter.auth.header is required for apikey mode")
		}
	case "none", "":
	default:
		return fmt.Errorf("exporter.auth: unknown mode %q", e.Auth.Mode)
	}
	return nil
}
