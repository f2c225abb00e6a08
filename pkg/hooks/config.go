// Package hooks runs user commands around snapshot exports.
//
// Hooks live in .sv/hooks.yaml, in the snapshot's directory or any directory
// above it (the nearest file wins):
//
//	hooks:
//	  pre-export:
//	    - name: lint
//	      command: ./check-snapshot "$SV_SOURCE_PATH"
//	      assemblies: ["Sales.*"]
//	  post-export:
//	    - command: cp "$SV_EXPORT_PATH" /backups/
//	      timeout: 60
//
// Pre-export hooks gate the export, post-export hooks only report.
package hooks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HookPhase represents when a hook runs
type HookPhase string

const (
	// PreExport runs before the export is written. Failure cancels the export.
	PreExport HookPhase = "pre-export"
	// PostExport runs after the export is written. Failure is reported but the export stays.
	PostExport HookPhase = "post-export"
)

// ErrorPolicy decides what a failing hook does to the rest of its phase.
type ErrorPolicy string

const (
	PolicyFail     ErrorPolicy = "fail"
	PolicyContinue ErrorPolicy = "continue"
)

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second

// Hook is one configured command.
type Hook struct {
	Name    string
	Command string // run with sh -c
	Timeout time.Duration
	Env     map[string]string // values are expanded against the process env
	OnError ErrorPolicy
	// Assemblies limits the hook to exports containing a matching assembly.
	// Entries are filepath.Match patterns; empty means every export.
	Assemblies []string
}

// RunsFor reports whether h applies to the export described by ctx.
func (h Hook) RunsFor(ctx ExportContext) bool {
	if len(h.Assemblies) == 0 {
		return true
	}
	for _, pattern := range h.Assemblies {
		for _, name := range ctx.Assemblies {
			if ok, _ := filepath.Match(pattern, name); ok {
				return true
			}
		}
	}
	return false
}

// UnmarshalYAML accepts timeouts as durations ("5s") or bare seconds (30).
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name       string            `yaml:"name"`
		Command    string            `yaml:"command"`
		Timeout    yaml.Node         `yaml:"timeout"`
		Env        map[string]string `yaml:"env"`
		OnError    ErrorPolicy       `yaml:"on_error"`
		Assemblies []string          `yaml:"assemblies"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	timeout, err := parseTimeout(raw.Timeout)
	if err != nil {
		return err
	}
	*h = Hook{
		Name:       raw.Name,
		Command:    raw.Command,
		Timeout:    timeout,
		Env:        raw.Env,
		OnError:    raw.OnError,
		Assemblies: raw.Assemblies,
	}
	return nil
}

func parseTimeout(node yaml.Node) (time.Duration, error) {
	if node.Kind == 0 || node.Value == "" {
		return 0, nil
	}
	switch node.Tag {
	case "!!int", "!!float":
		seconds, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout %q: %w", node.Value, err)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(node.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", node.Value, err)
	}
	return d, nil
}

// Config is a parsed hooks file.
type Config struct {
	Hooks HooksByPhase `yaml:"hooks"`

	path     string
	warnings []string
}

// HooksByPhase organizes hooks by their execution phase
type HooksByPhase struct {
	PreExport  []Hook `yaml:"pre-export"`
	PostExport []Hook `yaml:"post-export"`
}

// Phase returns the hooks configured for phase.
func (c *Config) Phase(phase HookPhase) []Hook {
	if c == nil {
		return nil
	}
	switch phase {
	case PreExport:
		return c.Hooks.PreExport
	case PostExport:
		return c.Hooks.PostExport
	}
	return nil
}

// Empty reports whether no hook is configured.
func (c *Config) Empty() bool {
	return len(c.Phase(PreExport)) == 0 && len(c.Phase(PostExport)) == 0
}

// Path is the file the config was read from, or "" when none exists.
func (c *Config) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Warnings lists hooks that were skipped while loading.
func (c *Config) Warnings() []string {
	if c == nil {
		return nil
	}
	return c.warnings
}

// ExportContext describes the export and is passed to hooks as environment
// variables.
type ExportContext struct {
	ExportPath string    // SV_EXPORT_PATH
	SourcePath string    // SV_SOURCE_PATH
	Viewsheet  string    // SV_VIEWSHEET
	Assemblies []string  // SV_ASSEMBLIES (comma separated), SV_ASSEMBLY_COUNT
	Timestamp  time.Time // SV_TIMESTAMP (RFC3339)
}

// ToEnv converts export context to environment variables
func (c ExportContext) ToEnv() []string {
	return []string{
		"SV_EXPORT_PATH=" + c.ExportPath,
		"SV_SOURCE_PATH=" + c.SourcePath,
		"SV_VIEWSHEET=" + c.Viewsheet,
		"SV_ASSEMBLIES=" + strings.Join(c.Assemblies, ","),
		"SV_ASSEMBLY_COUNT=" + strconv.Itoa(len(c.Assemblies)),
		"SV_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// Find returns the nearest .sv/hooks.yaml at or above dir, or "".
func Find(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".sv", "hooks.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load reads the hooks file governing dir. No file means an empty Config.
func Load(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		return &Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile parses one hooks file and fills in defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.path = path
	if cfg.Hooks.PreExport, err = cfg.normalize(PreExport, cfg.Hooks.PreExport); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Hooks.PostExport, err = cfg.normalize(PostExport, cfg.Hooks.PostExport); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// normalize applies per-phase defaults and drops hooks without a command.
func (c *Config) normalize(phase HookPhase, hooks []Hook) ([]Hook, error) {
	var out []Hook
	for i, hook := range hooks {
		if strings.TrimSpace(hook.Command) == "" {
			c.warnings = append(c.warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if hook.Name == "" {
			hook.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		if hook.Timeout <= 0 {
			hook.Timeout = DefaultTimeout
		}
		switch hook.OnError {
		case "":
			hook.OnError = PolicyContinue
			if phase == PreExport {
				hook.OnError = PolicyFail
			}
		case PolicyFail, PolicyContinue:
		default:
			return nil, fmt.Errorf("hook %q: on_error must be %q or %q, got %q", hook.Name, PolicyFail, PolicyContinue, hook.OnError)
		}
		for _, pattern := range hook.Assemblies {
			if _, err := filepath.Match(pattern, ""); err != nil {
				return nil, fmt.Errorf("hook %q: bad assembly pattern %q: %w", hook.Name, pattern, err)
			}
		}
		out = append(out, hook)
	}
	return out, nil
}
