// Package config loads tasklist settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tasklist/store"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const (
	EnvDataDir = "TASKLIST_DATA_DIR"
	EnvBackend = "TASKLIST_BACKEND"
)

type Config struct {
	Storage    StorageConfig `yaml:"storage"`
	Categories []string      `yaml:"categories"`
	UI         UIConfig      `yaml:"ui"`
	Logging    LoggingConfig `yaml:"logging"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // file, sqlite, memory
	DataDir string `yaml:"data_dir"`
	Key     string `yaml:"key"`
	ViewKey string `yaml:"view_key"`
	// Watch reloads the task list when another process rewrites it. File
	// backend only.
	Watch bool `yaml:"watch"`
}

type UIConfig struct {
	ErrorDismiss time.Duration `yaml:"error_dismiss"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendFile,
			DataDir: DefaultDataDir(),
			Key:     store.DefaultKey,
			ViewKey: store.DefaultViewKey,
			Watch:   true,
		},
		Categories: []string{"personal", "work", "shopping", "health"},
		UI: UIConfig{
			ErrorDismiss: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/tasklist/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".tasklist", "config.yaml")
	}
	return filepath.Join(dir, "tasklist", "config.yaml")
}

// DefaultDataDir is where task data lives when nothing else is configured.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "tasklist")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tasklist"
	}
	return filepath.Join(home, ".local", "share", "tasklist")
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q (want file, sqlite or memory)", c.Storage.Backend)
	}
	if c.UI.ErrorDismiss < 0 {
		return fmt.Errorf("ui.error_dismiss must not be negative")
	}
	return nil
}

// LogFile is the log destination for the interactive UI.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Storage.DataDir, "tasklist.log")
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		c.Storage.DataDir = dir
	}
	if backend := os.Getenv(EnvBackend); backend != "" {
		c.Storage.Backend = backend
	}
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = def.Storage.DataDir
	}
	if c.Storage.Key == "" {
		c.Storage.Key = def.Storage.Key
	}
	if c.Storage.ViewKey == "" {
		c.Storage.ViewKey = def.Storage.ViewKey
	}
	if c.UI.ErrorDismiss == 0 {
		c.UI.ErrorDismiss = def.UI.ErrorDismiss
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}
