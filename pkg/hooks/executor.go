package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vanderheijden86/sheetview/pkg/debug"
)

// stderrSummaryLimit caps how much hook stderr ends up in Summary.
const stderrSummaryLimit = 200

// HookResult is the outcome of one hook run.
type HookResult struct {
	Hook     Hook
	Phase    HookPhase
	Success  bool
	Stdout   string
	Stderr   string
	Error    error
	Duration time.Duration
}

// Executor runs the hooks of a Config for one export.
type Executor struct {
	config  *Config
	context ExportContext
	results []HookResult
}

// NewExecutor creates an executor for cfg.
func NewExecutor(cfg *Config, ctx ExportContext) *Executor {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Executor{config: cfg, context: ctx}
}

// RunPreExport runs pre-export hooks in order and stops at the first
// failure whose on_error is "fail".
func (e *Executor) RunPreExport() error {
	for _, hook := range e.applicable(PreExport) {
		res := e.run(hook, PreExport)
		if !res.Success && hook.OnError != PolicyContinue {
			return fmt.Errorf("pre-export hook %q failed: %w", hook.Name, res.Error)
		}
	}
	return nil
}

// RunPostExport runs every post-export hook. The first failure whose
// on_error is "fail" is returned after all hooks ran.
func (e *Executor) RunPostExport() error {
	var first error
	for _, hook := range e.applicable(PostExport) {
		res := e.run(hook, PostExport)
		if !res.Success && hook.OnError == PolicyFail && first == nil {
			first = fmt.Errorf("post-export hook %q failed: %w", hook.Name, res.Error)
		}
	}
	return first
}

// applicable filters the phase down to hooks scoped to this export.
func (e *Executor) applicable(phase HookPhase) []Hook {
	var out []Hook
	for _, hook := range e.config.Phase(phase) {
		if !hook.RunsFor(e.context) {
			debug.Log("hooks: skipping %s %q, no matching assembly", phase, hook.Name)
			continue
		}
		out = append(out, hook)
	}
	return out
}

// Results returns the results of every hook run so far.
func (e *Executor) Results() []HookResult {
	return e.results
}

func (e *Executor) run(hook Hook, phase HookPhase) HookResult {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", hook.Command)
	cmd.Env = append(os.Environ(), e.context.ToEnv()...)
	for k, v := range hook.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	// sh may leave children holding the pipes after it is killed.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := HookResult{
		Hook:     hook,
		Phase:    phase,
		Success:  err == nil,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v", timeout)
		}
		res.Error = err
	}
	debug.Log("hooks: %s %q finished in %v (ok=%v)", phase, hook.Name, res.Duration, res.Success)

	e.results = append(e.results, res)
	return res
}

// Summary describes the hook runs, listing failures with their stderr.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok, failed int
	for _, r := range e.results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Hooks: %d succeeded, %d failed", ok, failed)
	for _, r := range e.results {
		if r.Success {
			continue
		}
		fmt.Fprintf(&sb, "\n  ✗ %s (%s): %v", r.Hook.Name, r.Phase, r.Error)
		if r.Stderr != "" {
			fmt.Fprintf(&sb, "\n    stderr: %s", truncate(r.Stderr, stderrSummaryLimit))
		}
	}
	return sb.String()
}

// RunHooks loads the hooks governing dir. It returns nil when noHooks is set
// or nothing is configured.
func RunHooks(dir string, ctx ExportContext, noHooks bool) (*Executor, error) {
	if noHooks {
		return nil, nil
	}
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		debug.Log("hooks: %s: %s", cfg.Path(), w)
	}
	if cfg.Empty() {
		return nil, nil
	}
	return NewExecutor(cfg, ctx), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
