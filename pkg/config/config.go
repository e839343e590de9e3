// Package config loads server configuration from config.yaml with
// environment variable overrides. Environment variables always win for
// fields that support both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the taskhive server.
type Config struct {
	// Version of the config document format.
	ConfigVersion string `yaml:"version" env-default:"2.0.0"`

	// Server transport configuration.
	Server ServerConfig `yaml:"server"`

	// Database configuration (embedded SQLite).
	Database DatabaseConfig `yaml:"database"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Workflow points at the status workflow document.
	Workflow WorkflowFileConfig `yaml:"workflow"`

	// Version is the build version, injected at load time.
	Version string `yaml:"-"`
}

// ServerConfig selects the MCP transport.
type ServerConfig struct {
	// Transport is "stdio" or "http".
	Transport string `yaml:"transport" env:"TASKHIVE_TRANSPORT" env-default:"stdio"`
	BindAddr  string `yaml:"bind_addr" env:"TASKHIVE_BIND_ADDR" env-default:"127.0.0.1"`
	Port      string `yaml:"port" env:"TASKHIVE_PORT" env-default:"8930"`

	// RequestTimeoutSeconds bounds each database call made on behalf of a
	// tool request.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" env:"TASKHIVE_REQUEST_TIMEOUT" env-default:"30"`
}

// DatabaseConfig holds embedded database settings.
type DatabaseConfig struct {
	// Path to the SQLite file. ":memory:" is accepted for ephemeral runs.
	Path string `yaml:"path" env:"TASKHIVE_DB_PATH" env-default:"taskhive.db"`
	// BusyTimeoutMS is handed to SQLite's busy handler.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" env:"TASKHIVE_DB_BUSY_TIMEOUT_MS" env-default:"5000"`
	// MaxOpenConns bounds the pool. SQLite is effectively single-writer,
	// so this mostly governs concurrent readers.
	MaxOpenConns int `yaml:"max_open_conns" env:"TASKHIVE_DB_MAX_OPEN_CONNS" env-default:"8"`
}

// LoggingConfig mirrors logging.Options.
type LoggingConfig struct {
	Level       string `yaml:"level" env:"TASKHIVE_LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"TASKHIVE_LOG_DEV" env-default:"false"`
	File        string `yaml:"file" env:"TASKHIVE_LOG_FILE" env-default:""`
	MaxSizeMB   int    `yaml:"max_size_mb" env-default:"50"`
	MaxBackups  int    `yaml:"max_backups" env-default:"3"`
	MaxAgeDays  int    `yaml:"max_age_days" env-default:"28"`
}

// WorkflowFileConfig points at the declarative workflow documents.
type WorkflowFileConfig struct {
	// Path to status-workflow-config.yaml. Missing file means built-in
	// defaults apply.
	Path string `yaml:"path" env:"TASKHIVE_WORKFLOW_CONFIG" env-default:"status-workflow-config.yaml"`
	// AgentMappingPath points at the advisory tag-to-role mapping.
	AgentMappingPath string `yaml:"agent_mapping_path" env:"TASKHIVE_AGENT_MAPPING" env-default:"agent-mapping.yaml"`
	// Watch enables hot reload on file change.
	Watch bool `yaml:"watch" env:"TASKHIVE_WORKFLOW_WATCH" env-default:"true"`
}

// Load reads configuration from the given file with environment overrides.
// A missing config file is not an error: defaults plus environment apply.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	err := cleanenv.ReadConfig(path, cfg)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.Server.Transport != "stdio" && cfg.Server.Transport != "http" {
		return nil, fmt.Errorf("invalid server.transport %q: must be stdio or http", cfg.Server.Transport)
	}

	// Workflow paths are resolved relative to the config file directory so
	// the server can be launched from anywhere.
	if path != "" && !filepath.IsAbs(cfg.Workflow.Path) {
		cfg.Workflow.Path = filepath.Join(filepath.Dir(path), cfg.Workflow.Path)
	}

	return cfg, nil
}
