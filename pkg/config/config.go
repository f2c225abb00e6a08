// Package config handles loading and saving sv configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/sv/config.yaml
//   - State:   ~/.local/state/sv/ (tree open state, event logs)
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "sv"

// ServerConfig describes the viewsheet server events are sent to.
type ServerConfig struct {
	BaseURL    string        `yaml:"base_url,omitempty"`
	SessionID  string        `yaml:"session_id,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	QueueDepth int           `yaml:"queue_depth,omitempty"` // Events waiting to be sent
}

// SourceConfig describes where assembly models are loaded from.
type SourceConfig struct {
	Path     string        `yaml:"path,omitempty"`     // viewsheet.json, viewsheet.db or a directory holding one
	Watch    bool          `yaml:"watch"`              // Reload when the source changes
	Debounce time.Duration `yaml:"debounce,omitempty"` // Coalescing window for file events
}

// SelectionConfig holds selection widget preferences.
type SelectionConfig struct {
	SearchDebounce time.Duration `yaml:"search_debounce,omitempty"`
	ShowAll        bool          `yaml:"show_all,omitempty"` // Start with excluded values visible
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	PersistTreeState bool `yaml:"persist_tree_state"`
	HelpWidth        int  `yaml:"help_width,omitempty"`
}

// Config is the top-level configuration for sv.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Source    SourceConfig    `yaml:"source,omitempty"`
	Selection SelectionConfig `yaml:"selection,omitempty"`
	UI        UIConfig        `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Timeout:    10 * time.Second,
			QueueDepth: 256,
		},
		Source: SourceConfig{
			Watch:    true,
			Debounce: 200 * time.Millisecond,
		},
		Selection: SelectionConfig{
			SearchDebounce: 500 * time.Millisecond,
		},
		UI: UIConfig{
			PersistTreeState: true,
			HelpWidth:        80,
		},
	}
}

// ConfigDir returns the XDG config directory for sv.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for sv.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Source.Path = expandHome(cfg.Source.Path)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be corrected silently.
func (c Config) Validate() error {
	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil {
			return fmt.Errorf("server.base_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("server.base_url must be http or https, got %q", u.Scheme)
		}
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout cannot be negative")
	}
	if c.Server.QueueDepth < 0 {
		return fmt.Errorf("server.queue_depth cannot be negative")
	}
	if c.Source.Debounce < 0 || c.Selection.SearchDebounce < 0 {
		return fmt.Errorf("debounce windows cannot be negative")
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// TreeStatePath returns where the open state of tree assemblies is kept for
// the given source, or "" when no state directory is available.
func TreeStatePath(source string) string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(filepath.Clean(source))
	name = strings.TrimLeft(name, "_.")
	if name == "" {
		name = "default"
	}
	return filepath.Join(dir, "tree-state", name+".json")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
