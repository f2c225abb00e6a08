package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goccy/go-json"

	"github.com/vanderheijden86/sheetview/internal/datasource"
	"github.com/vanderheijden86/sheetview/pkg/config"
	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/hooks"
	"github.com/vanderheijden86/sheetview/pkg/metrics"
	"github.com/vanderheijden86/sheetview/pkg/model"
	"github.com/vanderheijden86/sheetview/pkg/selection"
	"github.com/vanderheijden86/sheetview/pkg/transport"
	"github.com/vanderheijden86/sheetview/pkg/ui"
	"github.com/vanderheijden86/sheetview/pkg/version"
	"github.com/vanderheijden86/sheetview/pkg/watcher"
)

type options struct {
	configPath   string
	source       string
	assembly     string
	server       string
	session      string
	dryRun       string
	noWatch      bool
	showAll      bool
	printMetrics bool
	version      bool
	cpuProfile   string
	robotVisible bool
	checkSources bool
	exportDB     string
	noHooks      bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("sv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Config file (default ~/.config/sv/config.yaml)")
	fs.StringVar(&o.source, "source", "", "Snapshot file (viewsheet.json, viewsheet.db) or directory holding one")
	fs.StringVar(&o.assembly, "assembly", "", "Qualified name of the selection to view")
	fs.StringVar(&o.server, "server", "", "Viewsheet server base URL; events are posted there")
	fs.StringVar(&o.session, "session", "", "Session id sent with every event")
	fs.StringVar(&o.dryRun, "dry-run", "", "Write events as JSON lines to this file ('-' for stderr) instead of sending them")
	fs.BoolVar(&o.noWatch, "no-watch", false, "Do not reload when the snapshot changes on disk")
	fs.BoolVar(&o.showAll, "show-all", false, "Start with excluded values visible")
	fs.BoolVar(&o.printMetrics, "metrics", false, "Print a JSON metrics snapshot on exit")
	fs.BoolVar(&o.version, "version", false, "Show version")
	fs.StringVar(&o.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.BoolVar(&o.robotVisible, "robot-visible", false, "Print the visible values of the assembly as JSON and exit")
	fs.BoolVar(&o.checkSources, "check-sources", false, "Check that every snapshot in the source directory agrees and exit")
	fs.StringVar(&o.exportDB, "export-db", "", "Write the loaded snapshot to a SQLite file and exit")
	fs.BoolVar(&o.noHooks, "no-hooks", false, "Skip .sv/hooks.yaml hooks around --export-db")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: sv [options]")
		fmt.Fprintln(stderr, "\nA terminal viewer for dashboard selection lists and trees.")
		fs.PrintDefaults()
	}
	err := fs.Parse(args)
	return o, err
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "sv %s\n", version.String())
		return 0
	}

	// CPU profiling support
	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	if opts.printMetrics {
		metrics.SetEnabled(true)
		defer writeMetrics(stdout)
	}

	cfg := loadConfig(opts, stderr)
	ctx := context.Background()

	if opts.checkSources {
		return checkSources(ctx, cfg.Source.Path, stdout, stderr)
	}

	serverOnly := cfg.Server.BaseURL != "" && cfg.Source.Path == "" && opts.assembly != ""
	var snap *snapshot
	if !serverOnly {
		snap, err = openSnapshot(ctx, cfg.Source.Path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		debug.Log("sv: loaded %s", snap.source)
	}

	if opts.exportDB != "" {
		if snap == nil {
			fmt.Fprintln(stderr, "Error: --export-db needs a local snapshot")
			return 1
		}
		return exportDB(snap, opts, stdout, stderr)
	}

	var program atomic.Pointer[tea.Program]
	sender, client, closeSender, err := newTransport(cfg, opts, func(path string, err error) {
		if p := program.Load(); p != nil {
			p.Send(ui.TransportErrorMsg{Path: path, Err: err})
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeSender()

	var a *model.Assembly
	if serverOnly {
		snap = &snapshot{server: client}
		timeout := cfg.Server.Timeout
		if timeout <= 0 {
			timeout = config.DefaultConfig().Server.Timeout
		}
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		a, err = client.FetchAssembly(fetchCtx, opts.assembly)
		cancel()
	} else {
		if client != nil {
			snap.server = client
		}
		a, err = chooseAssembly(snap.viewsheet(), opts.assembly, isTerminal() && !opts.robotVisible)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.robotVisible {
		if err := writeVisible(stdout, a, cfg.Selection.ShowAll); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	var w *watcher.Watcher
	if cfg.Source.Watch && !opts.noWatch && snap.server == nil && snap.source.Path != "" {
		w, err = watcher.NewWatcher(snap.source.Path,
			watcher.WithDebounceDuration(cfg.Source.Debounce),
			watcher.WithOnError(func(err error) {
				debug.Log("sv: watching %s: %v", snap.source.Path, err)
			}),
		)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			fmt.Fprintf(stderr, "warning: live reload disabled: %v\n", err)
			w = nil
		} else {
			defer w.Stop()
		}
	}

	var treeStatePath string
	if cfg.UI.PersistTreeState {
		key := snap.source.Path
		if key == "" {
			key = cfg.Server.BaseURL
		}
		treeStatePath = config.TreeStatePath(key)
	}

	m, err := ui.NewModel(a, selection.Deps{
		Transport: sender,
		Guard:     selection.CleanForm{},
		SessionID: cfg.Server.SessionID,
	}, ui.Options{
		Reload:         snap.reload,
		Watcher:        w,
		TreeStatePath:  treeStatePath,
		SearchDebounce: cfg.Selection.SearchDebounce,
		ShowAll:        cfg.Selection.ShowAll,
		HelpWidth:      cfg.UI.HelpWidth,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := runTUIProgram(m, &program); err != nil {
		fmt.Fprintf(stderr, "Error running sheet viewer: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads the config file and applies flag overrides. A broken
// config file is reported and replaced by defaults.
func loadConfig(opts options, stderr io.Writer) config.Config {
	var (
		cfg config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}

	if opts.source != "" {
		cfg.Source.Path = opts.source
	}
	if opts.server != "" {
		cfg.Server.BaseURL = opts.server
	}
	if opts.session != "" {
		cfg.Server.SessionID = opts.session
	}
	if opts.showAll {
		cfg.Selection.ShowAll = true
	}
	return cfg
}

// newTransport picks where events go: a dry-run log, the server, or the
// local event log under the state directory. client is non-nil whenever a
// server is configured, so models can still be fetched during a dry run.
func newTransport(cfg config.Config, opts options, onError func(string, error)) (selection.Transport, *transport.Client, func(), error) {
	var client *transport.Client
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Server.BaseURL != "" {
		c, err := transport.NewClient(transport.Options{
			BaseURL:    cfg.Server.BaseURL,
			SessionID:  cfg.Server.SessionID,
			Timeout:    cfg.Server.Timeout,
			QueueDepth: cfg.Server.QueueDepth,
			OnError:    onError,
		})
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("connecting to server: %w", err)
		}
		client = c
		closers = append(closers, func() { _ = c.Close() })
	}

	switch {
	case opts.dryRun == "-":
		return transport.NewLog(os.Stderr), client, closeAll, nil
	case opts.dryRun != "":
		f, err := os.OpenFile(opts.dryRun, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			closeAll()
			return nil, nil, func() {}, fmt.Errorf("opening event log: %w", err)
		}
		closers = append(closers, func() { _ = f.Close() })
		return transport.NewLog(f), client, closeAll, nil
	case client != nil:
		return client, client, closeAll, nil
	}

	dir := config.StateDir()
	if dir == "" {
		return transport.NewLog(io.Discard), nil, closeAll, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, closeAll, fmt.Errorf("creating state directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, closeAll, fmt.Errorf("opening event log: %w", err)
	}
	closers = append(closers, func() { _ = f.Close() })
	return transport.NewLog(f), nil, closeAll, nil
}

// exportDB writes the snapshot to SQLite, running any hooks configured next
// to the source.
func exportDB(snap *snapshot, opts options, stdout, stderr io.Writer) int {
	vs := snap.viewsheet()
	executor, err := hooks.RunHooks(filepath.Dir(snap.source.Path), hooks.ExportContext{
		ExportPath: opts.exportDB,
		SourcePath: snap.source.Path,
		Viewsheet:  vs.Name,
		Assemblies: vs.Names(),
		Timestamp:  time.Now(),
	}, opts.noHooks)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading hooks: %v\n", err)
		return 1
	}

	if executor != nil {
		if err := executor.RunPreExport(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			fmt.Fprintln(stderr, executor.Summary())
			return 1
		}
	}

	if err := datasource.WriteSQLite(opts.exportDB, vs, snap.source.ModTime); err != nil {
		fmt.Fprintf(stderr, "Error exporting: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Exported %d assemblies to %s\n", len(vs.Assemblies), opts.exportDB)

	if executor != nil {
		if err := executor.RunPostExport(); err != nil {
			fmt.Fprintf(stderr, "warning: %v\n", err)
		}
		if summary := executor.Summary(); summary != "" {
			fmt.Fprintln(stderr, summary)
		}
	}
	return 0
}

// checkSources reports snapshots in dir that disagree with each other.
func checkSources(ctx context.Context, dir string, stdout, stderr io.Writer) int {
	sources, err := datasource.DiscoverSources(ctx, datasource.DiscoveryOptions{
		Dir:                    dir,
		ValidateAfterDiscovery: true,
		IncludeInvalid:         true,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(sources) == 0 {
		fmt.Fprintln(stderr, "Error: no snapshot found")
		return 1
	}

	failed := false
	for _, s := range sources {
		if !s.Valid {
			failed = true
			fmt.Fprintf(stdout, "INVALID  %s: %v\n", s.Path, s.ValidationError)
			continue
		}
		fmt.Fprintf(stdout, "ok       %s (%d assemblies)\n", s.Path, s.AssemblyCount)
	}
	for _, inc := range datasource.CheckAllSourcesConsistent(sources) {
		failed = true
		fmt.Fprintf(stdout, "MISMATCH %s vs %s: %s\n", inc.SourceA, inc.SourceB, inc.Diff.Summary())
	}
	if failed {
		return 1
	}
	return 0
}

// visibleRow is one value in --robot-visible output.
type visibleRow struct {
	Label    string   `json:"label"`
	Value    string   `json:"value"`
	State    string   `json:"state"`
	Level    int      `json:"level"`
	Path     string   `json:"path,omitempty"`
	Measure  *float64 `json:"measure,omitempty"`
	Excluded bool     `json:"excluded,omitempty"`
}

type visibleOutput struct {
	Assembly   string       `json:"assembly"`
	Kind       string       `json:"kind"`
	ShowAll    bool         `json:"show_all"`
	ShowOthers bool         `json:"show_others"`
	Values     []visibleRow `json:"values"`
}

// writeVisible binds a throwaway controller and prints what it would show.
func writeVisible(w io.Writer, a *model.Assembly, showAll bool) error {
	ctrl, err := selection.New(a, selection.Deps{})
	if err != nil {
		return err
	}
	if showAll {
		ctrl.ShowAllValues()
	}
	out := visibleOutput{
		Assembly:   ctrl.Name(),
		Kind:       string(ctrl.Kind()),
		ShowAll:    ctrl.ShowAll(),
		ShowOthers: ctrl.ShowOthers(),
		Values:     []visibleRow{},
	}
	tc, isTree := ctrl.(*selection.TreeController)
	for _, v := range ctrl.VisibleValues() {
		row := visibleRow{
			Label:    v.DisplayLabel(),
			Value:    v.Value,
			State:    v.State.Display().String(),
			Level:    v.Level,
			Measure:  v.MeasureValue,
			Excluded: v.Excluded,
		}
		if isTree {
			row.Path = tc.Path(v)
		}
		out.Values = append(out.Values, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeMetrics(w io.Writer) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(metrics.TakeSnapshot()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: writing metrics: %v\n", err)
	}
}

func runTUIProgram(m ui.Model, program *atomic.Pointer[tea.Program]) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	program.Store(p)
	defer program.Store(nil)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set SV_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("SV_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
