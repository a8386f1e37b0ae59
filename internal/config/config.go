// Package config loads relay's ambient settings: logging, registry scan
// roots, and router defaults, merged from a JSON settings file over
// built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Config is the fully-resolved, in-memory configuration.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Registry RegistryConfig `json:"registry"`
	Router   RouterConfig   `json:"router"`
	TempFile TempFileConfig `json:"tempfile"`
}

// LoggingConfig controls internal/logger.SetupLogger.
type LoggingConfig struct {
	Level      string   `json:"level"`
	Format     string   `json:"format"`
	Output     []string `json:"output"`
	TimeFormat string   `json:"time_format"`
	Dir        string   `json:"dir"`
	MaxSizeMB  int      `json:"max_size_mb"`
	MaxBackups int      `json:"max_backups"`
}

// RegistryConfig controls pkg/registry scanning and persistence.
type RegistryConfig struct {
	Roots      []string `json:"roots"`
	TTLSeconds int      `json:"ttl_seconds"`
	StateDir   string   `json:"state_dir"`
}

// RouterConfig controls pkg/router backend resolution defaults.
type RouterConfig struct {
	DefaultBackend string `json:"default_backend"`
	AdaptersPath   string `json:"adapters_path"`
}

// TempFileConfig controls internal/tempfile scoping and cleanup.
type TempFileConfig struct {
	Root       string `json:"root"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// FileConfig mirrors Config with every field optional, for partial
// overrides read from settings.json.
type FileConfig struct {
	Logging  *LoggingFileConfig  `json:"logging,omitempty"`
	Registry *RegistryFileConfig `json:"registry,omitempty"`
	Router   *RouterFileConfig   `json:"router,omitempty"`
	TempFile *TempFileFileConfig `json:"tempfile,omitempty"`
}

// LoggingFileConfig is the settings.json shape for LoggingConfig.
type LoggingFileConfig struct {
	Level      *string  `json:"level,omitempty"`
	Format     *string  `json:"format,omitempty"`
	Output     []string `json:"output,omitempty"`
	TimeFormat *string  `json:"time_format,omitempty"`
	Dir        *string  `json:"dir,omitempty"`
	MaxSizeMB  *int     `json:"max_size_mb,omitempty"`
	MaxBackups *int     `json:"max_backups,omitempty"`
}

// RegistryFileConfig is the settings.json shape for RegistryConfig.
type RegistryFileConfig struct {
	Roots      []string `json:"roots,omitempty"`
	TTLSeconds *int     `json:"ttl_seconds,omitempty"`
	StateDir   *string  `json:"state_dir,omitempty"`
}

// RouterFileConfig is the settings.json shape for RouterConfig.
type RouterFileConfig struct {
	DefaultBackend *string `json:"default_backend,omitempty"`
	AdaptersPath   *string `json:"adapters_path,omitempty"`
}

// TempFileFileConfig is the settings.json shape for TempFileConfig.
type TempFileFileConfig struct {
	Root       *string `json:"root,omitempty"`
	TTLSeconds *int    `json:"ttl_seconds,omitempty"`
}

// DefaultConfig returns the built-in configuration used when no
// settings.json is present or a field is left unset.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"console"},
			TimeFormat: "15:04:05.000",
			Dir:        filepath.Join(dataDir, "logs"),
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
		Registry: RegistryConfig{
			Roots:      []string{".relay"},
			TTLSeconds: 300,
			StateDir:   filepath.Join(dataDir, "registry"),
		},
		Router: RouterConfig{
			DefaultBackend: "A",
			AdaptersPath:   filepath.Join(dataDir, "adapters.toml"),
		},
		TempFile: TempFileConfig{
			Root:       filepath.Join(dataDir, "tmp"),
			TTLSeconds: 3600,
		},
	}
}

// DefaultDataDir returns the platform-appropriate data directory for
// relay's own state (logs, registry cache, scratch files).
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "relay")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "relay")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "relay")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "relay")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".relay")
	}
}

// Load reads <dir>/.relay/settings.json if present and merges it over
// DefaultConfig. A missing file is not an error.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ".relay", "settings.json")
	return LoadFile(path)
}

// LoadFile reads a specific settings.json path and merges it over
// DefaultConfig. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var file FileConfig
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	mergeConfig(cfg, &file)
	return cfg, nil
}

// Save writes cfg to path as indented JSON, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func mergeConfig(cfg *Config, file *FileConfig) {
	if file.Logging != nil {
		l := file.Logging
		if l.Level != nil {
			cfg.Logging.Level = *l.Level
		}
		if l.Format != nil {
			cfg.Logging.Format = *l.Format
		}
		if len(l.Output) > 0 {
			cfg.Logging.Output = l.Output
		}
		if l.TimeFormat != nil {
			cfg.Logging.TimeFormat = *l.TimeFormat
		}
		if l.Dir != nil {
			cfg.Logging.Dir = *l.Dir
		}
		if l.MaxSizeMB != nil {
			cfg.Logging.MaxSizeMB = *l.MaxSizeMB
		}
		if l.MaxBackups != nil {
			cfg.Logging.MaxBackups = *l.MaxBackups
		}
	}

	if file.Registry != nil {
		r := file.Registry
		if len(r.Roots) > 0 {
			cfg.Registry.Roots = r.Roots
		}
		if r.TTLSeconds != nil {
			cfg.Registry.TTLSeconds = *r.TTLSeconds
		}
		if r.StateDir != nil {
			cfg.Registry.StateDir = *r.StateDir
		}
	}

	if file.Router != nil {
		if file.Router.DefaultBackend != nil {
			cfg.Router.DefaultBackend = *file.Router.DefaultBackend
		}
		if file.Router.AdaptersPath != nil {
			cfg.Router.AdaptersPath = *file.Router.AdaptersPath
		}
	}

	if file.TempFile != nil {
		tf := file.TempFile
		if tf.Root != nil {
			cfg.TempFile.Root = *tf.Root
		}
		if tf.TTLSeconds != nil {
			cfg.TempFile.TTLSeconds = *tf.TTLSeconds
		}
	}
}
