package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

// fakeReloader records the registry calls the watcher makes.
type fakeReloader struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeReloader) ReloadScript(name string) { f.record("reload:" + name) }
func (f *fakeReloader) ReloadScripts()           { f.record("reload-all") }
func (f *fakeReloader) UnloadScript(name string) { f.record("unload:" + name) }

func (f *fakeReloader) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeReloader) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestWatcher(t *testing.T, reg Reloader, root string) *Watcher {
	t.Helper()
	log, _ := test.NewNullLogger()
	// A long debounce keeps timers from firing on their own; tests drive
	// delivery through Flush.
	w, err := New(reg, root, WithLogger(log), WithDebounce(time.Minute))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

// waitForCalls polls Flush until the reloader has recorded want calls.
// fsnotify delivery is asynchronous, so arrival has to be awaited.
func waitForCalls(t *testing.T, w *Watcher, f *fakeReloader, want int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w.Flush()
		if calls := f.all(); len(calls) >= want {
			return calls
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d calls, got %v", want, f.all())
	return nil
}

func TestWatcherReloadOnSourceChange(t *testing.T) {
	root := t.TempDir()

	f := &fakeReloader{}
	w := newTestWatcher(t, f, root)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "Tool.lua"), []byte("-- v1"), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	calls := waitForCalls(t, w, f, 1)
	if calls[0] != "reload:tool" {
		t.Errorf("calls = %v, want reload:tool first", calls)
	}
}

func TestWatcherUnloadOnRemove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.lua")
	if err := os.WriteFile(path, []byte("-- v1"), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	f := &fakeReloader{}
	w := newTestWatcher(t, f, root)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove error = %v", err)
	}

	calls := waitForCalls(t, w, f, 1)
	if calls[0] != "unload:gone" {
		t.Errorf("calls = %v, want unload:gone", calls)
	}
}

func TestWatcherLibraryChangeReloadsAll(t *testing.T) {
	root := t.TempDir()
	libs := filepath.Join(root, "Libs")
	if err := os.Mkdir(libs, 0o755); err != nil {
		t.Fatalf("Mkdir error = %v", err)
	}

	f := &fakeReloader{}
	w := newTestWatcher(t, f, root)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(libs, "util.lua"), []byte("return {}"), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	calls := waitForCalls(t, w, f, 1)
	if calls[0] != "reload-all" {
		t.Errorf("calls = %v, want reload-all", calls)
	}
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	root := t.TempDir()

	f := &fakeReloader{}
	w := newTestWatcher(t, f, root)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "real.lua"), []byte("-- v1"), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	calls := waitForCalls(t, w, f, 1)
	for _, c := range calls {
		if c == "reload:notes" {
			t.Errorf("irrelevant file triggered a reload: %v", calls)
		}
	}
}

func TestWatcherDebounceCoalesces(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "busy.lua")

	f := &fakeReloader{}
	w := newTestWatcher(t, f, root)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("-- rev"), 0o644); err != nil {
			t.Fatalf("WriteFile error = %v", err)
		}
	}

	calls := waitForCalls(t, w, f, 1)
	// One coalesced reload, regardless of how many writes landed.
	for i := 1; i < len(calls); i++ {
		if calls[i] == calls[0] {
			t.Errorf("calls = %v, want writes coalesced into one reload", calls)
		}
	}
}

func TestWatcherCloseDropsPending(t *testing.T) {
	root := t.TempDir()

	f := &fakeReloader{}
	w := newTestWatcher(t, f, root)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestWatcherRelevant(t *testing.T) {
	root := t.TempDir()
	log, _ := test.NewNullLogger()
	w, err := New(&fakeReloader{}, root, WithLogger(log))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "a.lua"), true},
		{filepath.Join(root, "A.LUA"), true},
		{filepath.Join(root, "a.txt"), false},
		{filepath.Join(root, "Libs", "helper.txt"), true},
		{filepath.Join(root, "sub", "corelibs", "x.dat"), true},
		{filepath.Join(root, "sub", "deep", "b.lua"), true},
	}
	for _, tt := range tests {
		if got := w.relevant(tt.path); got != tt.want {
			t.Errorf("relevant(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcherInReservedDir(t *testing.T) {
	root := t.TempDir()
	log, _ := test.NewNullLogger()
	w, err := New(&fakeReloader{}, root, WithLogger(log))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "a.lua"), false},
		{filepath.Join(root, "Libs", "util.lua"), true},
		{filepath.Join(root, "sub", "libs-v2", "util.lua"), true},
		{filepath.Join(root, "sub", "other", "util.lua"), false},
	}
	for _, tt := range tests {
		if got := w.inReservedDir(tt.path); got != tt.want {
			t.Errorf("inReservedDir(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
