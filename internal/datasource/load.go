package datasource

import (
	"context"
	"fmt"
	"os"

	"github.com/vanderheijden86/sheetview/pkg/metrics"
	"github.com/vanderheijden86/sheetview/pkg/model"
)

// Load resolves path to a viewsheet. A file is loaded directly; a directory
// (or an empty path) goes through discovery and freshest-source selection.
func Load(ctx context.Context, path string) (*model.Viewsheet, DataSource, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, DataSource{}, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			src, err := SourceFromPath(path)
			if err != nil {
				return nil, DataSource{}, err
			}
			vs, err := LoadFromSource(src)
			if err != nil {
				return nil, src, err
			}
			return vs, src, nil
		}
	}
	return LoadDir(ctx, path)
}

// LoadDir discovers sources in dir, validates them, and loads the best one.
func LoadDir(ctx context.Context, dir string) (*model.Viewsheet, DataSource, error) {
	sources, err := DiscoverSources(ctx, DiscoveryOptions{
		Dir:                    dir,
		ValidateAfterDiscovery: true,
	})
	if err != nil {
		return nil, DataSource{}, err
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, DataSource{}, err
	}
	vs, err := LoadFromSource(best)
	if err != nil {
		return nil, best, err
	}
	return vs, best, nil
}

// LoadFromSource loads a viewsheet, dispatching on the source type.
func LoadFromSource(source DataSource) (*model.Viewsheet, error) {
	defer metrics.Timer(metrics.SourceLoad)()

	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadViewsheet()

	case SourceTypeJSON:
		return LoadJSON(source.Path)

	default:
		return nil, fmt.Errorf("%s: %w", source.Type, ErrUnknownSourceType)
	}
}

// LoadJSON reads a JSON viewsheet document.
func LoadJSON(path string) (*model.Viewsheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	vs, err := model.DecodeViewsheet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vs, nil
}

// LoadAssembly loads one named assembly from the source at path.
func LoadAssembly(ctx context.Context, path, name string) (*model.Assembly, error) {
	vs, src, err := Load(ctx, path)
	if err != nil {
		return nil, err
	}
	a := vs.Find(name)
	if a == nil {
		return nil, fmt.Errorf("assembly %q not found in %s", name, src.Path)
	}
	return a, nil
}
