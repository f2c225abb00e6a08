// Package datasource discovers, validates, and loads viewsheet snapshots. A
// snapshot is either a JSON document or a SQLite database holding one row per
// selection assembly; when a directory holds several, the freshest valid one
// wins.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite snapshot (*.db)
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSON is a JSON viewsheet document (*.json)
	SourceTypeJSON SourceType = "json"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityJSON   = 50
)

// EnvSourceDir overrides the directory searched for snapshots.
const EnvSourceDir = "SV_SOURCE_DIR"

var (
	// ErrNoValidSource is returned when discovery found nothing loadable.
	ErrNoValidSource = errors.New("no valid viewsheet source")
	// ErrUnknownSourceType is returned for paths that are neither JSON nor SQLite.
	ErrUnknownSourceType = errors.New("unknown source type")
)

// DataSource is a candidate viewsheet snapshot.
type DataSource struct {
	Type SourceType `json:"type"`
	// Path is the absolute path to the source file
	Path string `json:"path"`
	// Priority breaks ties between sources with equal mod times
	Priority int       `json:"priority"`
	ModTime  time.Time `json:"mod_time"`
	Size     int64     `json:"size"`

	Valid           bool   `json:"valid"`
	ValidationError string `json:"validation_error,omitempty"`
	// AssemblyCount is set during validation
	AssemblyCount int `json:"assembly_count"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, assemblies=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.AssemblyCount, status)
}

// SourceFromPath classifies a single file by extension.
func SourceFromPath(path string) (DataSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return DataSource{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	src := DataSource{Path: abs}
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".db", ".sqlite", ".sqlite3":
		src.Type, src.Priority = SourceTypeSQLite, PrioritySQLite
	case ".json":
		src.Type, src.Priority = SourceTypeJSON, PriorityJSON
	default:
		return DataSource{}, fmt.Errorf("%s: %w", path, ErrUnknownSourceType)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return DataSource{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return DataSource{}, fmt.Errorf("%s is a directory", path)
	}
	src.ModTime = info.ModTime()
	src.Size = info.Size()
	return src, nil
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// Dir is searched for snapshots; SV_SOURCE_DIR or the working directory when empty
	Dir string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid keeps sources that failed validation in results
	IncludeInvalid bool
	// Verbose enables detailed logging during discovery
	Verbose bool
	// Logger receives log messages when Verbose is true
	Logger func(msg string)
}

// DiscoverSources finds candidate snapshots in a directory, freshest first.
func DiscoverSources(ctx context.Context, opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	dir := opts.Dir
	if dir == "" {
		if envDir := os.Getenv(EnvSourceDir); envDir != "" {
			dir = envDir
		} else {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			dir = wd
		}
	}
	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovering sources in: %s", dir))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() || skipName(e.Name()) {
			continue
		}
		src, err := SourceFromPath(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		sources = append(sources, src)
		if opts.Verbose {
			opts.Logger(fmt.Sprintf("Found %s: %s (mod=%s)", src.Type, src.Path, src.ModTime.Format(time.RFC3339)))
		}
	}

	if opts.ValidateAfterDiscovery {
		if err := ValidateSources(ctx, sources); err != nil {
			return nil, err
		}
		if opts.Verbose {
			for _, s := range sources {
				if !s.Valid {
					opts.Logger(fmt.Sprintf("Validation failed for %s: %s", s.Path, s.ValidationError))
				}
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sortSources(sources)

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	}
	return sources, nil
}

// skipName filters backups, temp files, and SQLite sidecars.
func skipName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, marker := range []string{".backup", ".bak", ".orig", ".tmp", "-wal", "-shm", "-journal"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func sortSources(sources []DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
}

// ValidateSources validates every source concurrently, recording the outcome
// on each element. It only fails when ctx is cancelled.
func ValidateSources(ctx context.Context, sources []DataSource) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_ = ValidateSource(&sources[i])
			return nil
		})
	}
	return g.Wait()
}

// ValidateSource opens the source and counts its assemblies. The result is
// recorded on s and returned.
func ValidateSource(s *DataSource) error {
	s.Valid = false
	s.ValidationError = ""
	s.AssemblyCount = 0

	vs, err := LoadFromSource(*s)
	if err != nil {
		s.ValidationError = err.Error()
		return err
	}
	if len(vs.Assemblies) == 0 {
		err := fmt.Errorf("%s: no assemblies", s.Path)
		s.ValidationError = "no assemblies"
		return err
	}
	s.Valid = true
	s.AssemblyCount = len(vs.Assemblies)
	return nil
}

// SelectBestSource returns the freshest valid source; priority breaks ties.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var valid []DataSource
	for _, s := range sources {
		if s.Valid {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return DataSource{}, ErrNoValidSource
	}
	sortSources(valid)
	return valid[0], nil
}
