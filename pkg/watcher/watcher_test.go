package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 callback, got %d", n)
	}
	if d.Pending() {
		t.Error("nothing should be pending after the callback ran")
	}
}

func TestDebouncer_LastCallbackWins(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var got atomic.Value
	for _, q := range []string{"n", "ne", "new"} {
		q := q
		d.Trigger(func() { got.Store(q) })
	}
	if !waitFor(t, time.Second, func() bool { return got.Load() != nil }) {
		t.Fatal("callback never ran")
	}
	if q := got.Load().(string); q != "new" {
		t.Errorf("expected last query, got %q", q)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() { called.Store(true) })
	if !d.Pending() {
		t.Fatal("expected a pending callback")
	}
	d.Cancel()

	time.Sleep(100 * time.Millisecond)
	if called.Load() {
		t.Error("callback ran after Cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func TestWatcher_DetectsSourceChange(t *testing.T) {
	path := writeSource(t, "viewsheet.json", `{"assemblies":[]}`)

	var changed atomic.Bool
	w, err := NewWatcher(path,
		WithDebounceDuration(30*time.Millisecond),
		WithOnChange(func() { changed.Store(true) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"assemblies":[{"name":"Region"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, changed.Load) {
		t.Error("expected change to be detected")
	}
}

func TestWatcher_SQLiteSidecarCountsAsChange(t *testing.T) {
	path := writeSource(t, "viewsheet.db", "db")

	w, err := NewWatcher(path, WithDebounceDuration(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"viewsheet.db", "viewsheet.db-wal", "viewsheet.db-journal"} {
		if !w.concerns(filepath.Join(filepath.Dir(path), name)) {
			t.Errorf("%s should concern the watcher", name)
		}
	}
	for _, name := range []string{"other.db", "viewsheet.json", "viewsheet.db.bak"} {
		if w.concerns(filepath.Join(filepath.Dir(path), name)) {
			t.Errorf("%s should not concern the watcher", name)
		}
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	path := writeSource(t, "viewsheet.json", "initial")

	var changed atomic.Bool
	w, err := NewWatcher(path,
		WithForcePoll(true),
		WithPollInterval(25*time.Millisecond),
		WithDebounceDuration(10*time.Millisecond),
		WithOnChange(func() { changed.Store(true) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("modified and longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, changed.Load) {
		t.Error("expected change to be detected by polling")
	}
}

func TestWatcher_ChangedChannel(t *testing.T) {
	path := writeSource(t, "viewsheet.json", "initial")

	w, err := NewWatcher(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithDebounceDuration(10*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(40 * time.Millisecond)
	if err := os.WriteFile(path, []byte("modified content"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Error("expected a signal on Changed")
	}
}

func TestWatcher_EnvForcePoll(t *testing.T) {
	t.Setenv("SV_FORCE_POLL", "1")
	path := writeSource(t, "viewsheet.json", "initial")

	w, err := NewWatcher(path, WithPollInterval(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling mode when SV_FORCE_POLL is set")
	}
}

func TestWatcher_RemoteFilesystemUsesPolling(t *testing.T) {
	path := writeSource(t, "viewsheet.json", "initial")

	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeNFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	w, err := NewWatcher(path, WithPollInterval(25*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling on a remote filesystem")
	}
	if got := w.FilesystemType(); got != FSTypeNFS {
		t.Fatalf("expected %v, got %v", FSTypeNFS, got)
	}
}

func TestWatcher_PollingSeesWALCommit(t *testing.T) {
	path := writeSource(t, "viewsheet.db", "db")

	var changes atomic.Int32
	w, err := NewWatcher(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithDebounceDuration(10*time.Millisecond),
		WithOnChange(func() { changes.Add(1) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if changes.Load() != 0 {
		t.Fatal("no change expected before the WAL is written")
	}
	if err := os.WriteFile(path+"-wal", []byte("frame"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return changes.Load() > 0 }) {
		t.Error("a write to the -wal sidecar alone should count as a change")
	}
}

func TestWatcher_PollingSourceReappears(t *testing.T) {
	path := writeSource(t, "viewsheet.json", "initial")

	var changed atomic.Bool
	var removed atomic.Int32
	w, err := NewWatcher(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithDebounceDuration(10*time.Millisecond),
		WithOnChange(func() { changed.Store(true) }),
		WithOnError(func(err error) {
			if errors.Is(err, ErrSourceRemoved) {
				removed.Add(1)
			}
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if n := removed.Load(); n != 1 {
		t.Errorf("removal should be reported once, got %d", n)
	}

	if err := os.WriteFile(path, []byte("restored"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, changed.Load) {
		t.Error("a recreated source should count as a change")
	}
}

func TestWatcher_SourceRemoved(t *testing.T) {
	path := writeSource(t, "viewsheet.json", "initial")

	errCh := make(chan error, 4)
	w, err := NewWatcher(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithOnError(func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSourceRemoved) {
			t.Errorf("expected ErrSourceRemoved, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("expected a removal error")
	}
}

func TestWatcher_MissingSourceStarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewsheet.db")
	w, err := NewWatcher(path, WithForcePoll(true), WithPollInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("missing source should not fail Start: %v", err)
	}
	w.Stop()
}

func TestWatcher_StartStop(t *testing.T) {
	path := writeSource(t, "viewsheet.json", "initial")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if !w.IsStarted() {
		t.Error("expected started")
	}
	if err := w.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start: expected ErrAlreadyStarted, got %v", err)
	}

	w.Stop()
	w.Stop()
	if w.IsStarted() {
		t.Error("expected stopped")
	}
	if err := w.Start(); err != nil {
		t.Errorf("restart after Stop: %v", err)
	}
	w.Stop()
}

func TestWatcher_PathIsAbsolute(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile("viewsheet.json", []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher("viewsheet.json", WithPollInterval(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(w.Path()) {
		t.Errorf("expected absolute path, got %q", w.Path())
	}
	if filepath.Base(w.Path()) != "viewsheet.json" {
		t.Errorf("unexpected path %q", w.Path())
	}
	if w.PollInterval() != time.Second {
		t.Errorf("expected poll interval 1s, got %v", w.PollInterval())
	}
}

func TestFilesystemType_String(t *testing.T) {
	tests := []struct {
		fsType FilesystemType
		want   string
	}{
		{FSTypeUnknown, "unknown"},
		{FSTypeLocal, "local"},
		{FSTypeNFS, "nfs"},
		{FSTypeSMB, "smb"},
		{FSTypeFUSE, "fuse"},
		{FSType9P, "9p"},
		{FilesystemType(99), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.fsType.String(); got != tc.want {
			t.Errorf("FilesystemType(%d).String() = %q, want %q", tc.fsType, got, tc.want)
		}
	}
}

func TestIsRemoteFilesystem(t *testing.T) {
	for _, ft := range []FilesystemType{FSTypeNFS, FSTypeSMB, FSTypeFUSE, FSType9P} {
		if !isRemoteFilesystem(ft) {
			t.Errorf("%v should be remote", ft)
		}
	}
	for _, ft := range []FilesystemType{FSTypeUnknown, FSTypeLocal} {
		if isRemoteFilesystem(ft) {
			t.Errorf("%v should not be remote", ft)
		}
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"y", true},
		{"on", true},
		{" on ", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"invalid", false},
	}
	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("SV_TEST_ENV_BOOL", tc.value)
			if got := envBool("SV_TEST_ENV_BOOL"); got != tc.want {
				t.Errorf("envBool(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestDetectFilesystemType_EmptyPath(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("DetectFilesystemType(\"\") = %v, want unknown", got)
	}
}

func TestDetectFilesystemType_NonExistentPath(t *testing.T) {
	// Falls back to the parent directory; must not panic.
	_ = DetectFilesystemType(filepath.Join(t.TempDir(), "missing.db"))
}
