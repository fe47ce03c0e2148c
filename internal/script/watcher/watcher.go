// Package watcher drives hot reload of guest scripts: it watches the
// registry's root tree and reloads scripts when their sources change on
// disk.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/match"
)

// Reloader is the registry surface the watcher drives.
type Reloader interface {
	ReloadScript(name string)
	ReloadScripts()
	UnloadScript(name string)
}

// DefaultDebounce coalesces rapid successive writes to one reload.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads scripts on filesystem changes. A change to a script
// source reloads that script; a change inside a reserved library
// directory reloads everything, since any script may depend on it;
// removing a source unloads its script.
type Watcher struct {
	reg      Reloader
	root     string
	ext      string
	debounce time.Duration
	log      logrus.FieldLogger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingChange
	closed  bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// pendingChange tracks a debounced filesystem change.
type pendingChange struct {
	op    fsnotify.Op
	timer *time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the coalescing window for rapid changes.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// WithExtension sets the source-file extension, ".lua" by default.
func WithExtension(ext string) Option {
	return func(w *Watcher) {
		w.ext = ext
	}
}

// New creates a watcher over root driving reg. Call Start to begin.
func New(reg Reloader, root string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		reg:      reg,
		root:     root,
		ext:      ".lua",
		debounce: DefaultDebounce,
		log:      logrus.StandardLogger(),
		fsw:      fsw,
		pending:  make(map[string]*pendingChange),
		closeCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start watches the root tree recursively and begins processing events.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if d.IsDir() {
			if addErr := w.fsw.Add(p); addErr != nil {
				w.log.Warnf("watch %s: %v", p, addErr)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go w.processLoop()
	return nil
}

// processLoop handles incoming fsnotify events until Close.
func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnf("watch error: %v", err)
		}
	}
}

// handleEvent debounces a filesystem event per path, merging operations
// within the window.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	// New directories join the watch set immediately.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.log.Warnf("watch %s: %v", ev.Name, err)
			}
			return
		}
	}

	if !w.relevant(ev.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if p, exists := w.pending[ev.Name]; exists {
		p.op |= ev.Op
		p.timer.Reset(w.debounce)
		return
	}

	p := &pendingChange{op: ev.Op}
	p.timer = time.AfterFunc(w.debounce, func() {
		w.fire(ev.Name)
	})
	w.pending[ev.Name] = p
}

// relevant reports whether a path concerns the registry: a source file,
// or anything inside a reserved library directory.
func (w *Watcher) relevant(path string) bool {
	if w.inReservedDir(path) {
		return true
	}
	return strings.EqualFold(filepath.Ext(path), w.ext)
}

// inReservedDir reports whether any directory between the root and path
// carries the reserved "libs" marker.
func (w *Watcher) inReservedDir(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return false
	}
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		if match.Match(strings.ToLower(part), "*libs*") {
			return true
		}
	}
	return false
}

// fire applies one debounced change.
func (w *Watcher) fire(path string) {
	w.mu.Lock()
	p, exists := w.pending[path]
	if !exists {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	op := p.op
	w.mu.Unlock()

	if w.inReservedDir(path) {
		w.log.Infof("library change %s, reloading all scripts", path)
		w.reg.ReloadScripts()
		return
	}

	base := filepath.Base(path)
	name := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	switch {
	case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
		w.log.Infof("source removed, unloading %q", name)
		w.reg.UnloadScript(name)
	default:
		w.log.Infof("source changed, reloading %q", name)
		w.reg.ReloadScript(name)
	}
}

// Flush immediately applies all pending changes. Intended for tests.
func (w *Watcher) Flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path, p := range w.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	w.mu.Unlock()

	for _, path := range paths {
		w.fire(path)
	}
}

// Close stops the watcher. Pending debounced changes are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}
