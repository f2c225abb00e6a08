package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/vanderheijden86/sheetview/internal/datasource"
	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/model"
)

// assemblyFetcher fetches one assembly from the viewsheet server.
type assemblyFetcher interface {
	FetchAssembly(ctx context.Context, name string) (*model.Assembly, error)
}

// snapshot keeps the last loaded viewsheet so reloads can tell whether the
// viewed assembly changed.
type snapshot struct {
	mu      sync.Mutex
	path    string
	current *model.Viewsheet
	source  datasource.DataSource
	server  assemblyFetcher
}

func openSnapshot(ctx context.Context, path string) (*snapshot, error) {
	vs, src, err := datasource.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return &snapshot{path: path, current: vs, source: src}, nil
}

func (s *snapshot) viewsheet() *model.Viewsheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// reload implements ui.ReloadFunc. With a server the assembly is fetched
// from it; otherwise the snapshot is reloaded from disk and diffed against
// the previous one.
func (s *snapshot) reload(ctx context.Context, name string, force bool) (*model.Assembly, error) {
	if s.server != nil {
		return s.server.FetchAssembly(ctx, name)
	}

	vs, src, err := datasource.Load(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("reloading %s: %w", s.path, err)
	}

	s.mu.Lock()
	prev := s.current
	s.current = vs
	s.source = src
	s.mu.Unlock()

	diff := datasource.DiffViewsheets(prev, vs)
	debug.Log("sv: reloaded %s: %s", src.Path, diff.Summary())

	a := vs.Find(name)
	if a == nil {
		return nil, fmt.Errorf("assembly %q is no longer in %s", name, src.Path)
	}
	if !force && !diff.Touches(name) {
		return nil, nil
	}
	return a, nil
}
