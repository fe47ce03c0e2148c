package script

import (
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultExtension is the source-file extension discovery looks for.
const DefaultExtension = ".lua"

// Factory constructs an unloaded script for a discovered source file.
type Factory[S Script] func(sourcePath string) S

// NotificationType identifies a registry lifecycle notification.
type NotificationType int

const (
	// ScriptLoaded is fired after a script is compiled and registered.
	ScriptLoaded NotificationType = iota

	// ScriptUnloaded is fired after a script is removed from the registry.
	ScriptUnloaded
)

// String returns the notification type name.
func (t NotificationType) String() string {
	switch t {
	case ScriptLoaded:
		return "loaded"
	case ScriptUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// Notification describes a registry lifecycle change.
type Notification[S Script] struct {
	Type   NotificationType
	Script S
}

// NotificationHandler receives registry notifications. Handlers run
// outside registry locks and must not call back into the registry.
type NotificationHandler[S Script] func(Notification[S])

// Config configures a Registry.
type Config struct {
	// Extension is the source-file extension, DefaultExtension if empty.
	Extension string

	// Logger is the host logging sink, logrus.StandardLogger if nil.
	Logger logrus.FieldLogger

	// BeforeCall, if set, may augment the argument table before an event
	// call is dispatched to its instance.
	BeforeCall func(scriptName, eventName string, args Args)
}

// Registry owns a root directory and the canonical-name to instance map
// for the scripts discovered below it. Keys are lowercase and unique; a
// name maps to at most one live instance at any time.
type Registry[S Script] struct {
	root    string
	ext     string
	factory Factory[S]
	log     logrus.FieldLogger

	beforeCall func(scriptName, eventName string, args Args)

	mu       sync.RWMutex
	scripts  map[string]S
	handlers []NotificationHandler[S]
}

// NewRegistryOf creates a registry producing scripts via factory. Host
// applications with extended script types use this directly.
func NewRegistryOf[S Script](root string, factory Factory[S], cfg Config) *Registry[S] {
	ext := cfg.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Registry[S]{
		root:       root,
		ext:        ext,
		factory:    factory,
		log:        log,
		beforeCall: cfg.BeforeCall,
		scripts:    make(map[string]S),
	}
}

// NewRegistry creates a registry of plain instances rooted at root.
func NewRegistry(root string, cfg Config) *Registry[*Instance] {
	var opts []InstanceOption
	if cfg.Logger != nil {
		opts = append(opts, WithLogger(cfg.Logger))
	}
	factory := func(sourcePath string) *Instance {
		return NewInstance(sourcePath, opts...)
	}
	return NewRegistryOf(root, factory, cfg)
}

// Root returns the registry's root directory.
func (r *Registry[S]) Root() string { return r.root }

// LoadScript searches the tree for "<name><ext>" and loads it. The name
// is canonicalized to lowercase. Loading an already-present name logs a
// warning and leaves the existing instance untouched. Search scope starts
// at the root; reserved library directories are skipped as scripts but
// contribute module paths along the search path.
func (r *Registry[S]) LoadScript(name string) {
	if name == "" {
		return
	}
	key := strings.ToLower(name)

	r.mu.RLock()
	_, exists := r.scripts[key]
	r.mu.RUnlock()
	if exists {
		r.log.Warnf("script %q is already loaded", key)
		return
	}

	sourcePath, modPaths, found := findScript(r.root, key, r.ext, nil)
	if !found {
		r.log.Errorf("script %q not found under %s", key, r.root)
		return
	}

	r.loadFile(sourcePath, modPaths)
}

// LoadScripts performs a full recursive discovery pass, compiling and
// registering every qualifying source file keyed by its canonical name.
// A script that fails to compile is logged and skipped; the pass
// continues.
func (r *Registry[S]) LoadScripts() {
	err := walkScripts(r.root, r.ext, nil, func(sourcePath string, modPaths []string) {
		r.loadFile(sourcePath, modPaths)
	})
	if err != nil {
		r.log.Errorf("discovery failed for %s: %v", r.root, err)
	}
}

// loadFile compiles one source file and registers the instance under its
// canonical name. On any failure the registry is left unchanged.
func (r *Registry[S]) loadFile(sourcePath string, modPaths []string) {
	inst := r.factory(sourcePath)
	key := inst.Name()

	r.mu.RLock()
	_, exists := r.scripts[key]
	r.mu.RUnlock()
	if exists {
		r.log.Warnf("script %q is already loaded, skipping %s", key, sourcePath)
		return
	}

	if !inst.Load(modPaths) {
		// The instance logged the specific failure.
		return
	}

	r.mu.Lock()
	if _, exists := r.scripts[key]; exists {
		r.mu.Unlock()
		r.log.Warnf("script %q is already loaded, skipping %s", key, sourcePath)
		inst.Close()
		return
	}
	r.scripts[key] = inst
	r.mu.Unlock()

	r.notify(Notification[S]{Type: ScriptLoaded, Script: inst})
}

// UnloadScript removes a script and fires the unloaded notification.
// Unknown names log a warning and fire nothing.
func (r *Registry[S]) UnloadScript(name string) {
	key := strings.ToLower(name)

	r.mu.Lock()
	inst, exists := r.scripts[key]
	if !exists {
		r.mu.Unlock()
		r.log.Warnf("script %q is not loaded", key)
		return
	}
	delete(r.scripts, key)
	r.mu.Unlock()

	r.notify(Notification[S]{Type: ScriptUnloaded, Script: inst})
	inst.Close()
}

// ReloadScript unloads then loads a script. A name that was never loaded
// behaves as a plain load.
func (r *Registry[S]) ReloadScript(name string) {
	key := strings.ToLower(name)

	r.mu.RLock()
	_, exists := r.scripts[key]
	r.mu.RUnlock()

	if exists {
		r.UnloadScript(key)
	}
	r.LoadScript(key)
}

// ReloadScripts fires the unloaded notification for every current entry,
// clears the registry, then performs a full discovery pass. All unloaded
// notifications precede any loaded notification.
func (r *Registry[S]) ReloadScripts() {
	r.mu.Lock()
	old := r.scripts
	r.scripts = make(map[string]S)
	r.mu.Unlock()

	for _, name := range sortedKeys(old) {
		inst := old[name]
		r.notify(Notification[S]{Type: ScriptUnloaded, Script: inst})
		inst.Close()
	}

	r.LoadScripts()
}

// TryCallEvent routes an event call to the named script. A nil args is
// replaced by a freshly allocated empty table, so concurrent no-argument
// calls never share state. Fails closed when the script is absent.
func (r *Registry[S]) TryCallEvent(scriptName, eventName string, args Args) (any, bool) {
	inst, ok := r.TryGetScript(scriptName)
	if !ok {
		r.log.Warnf("call %s.%s: script not loaded", strings.ToLower(scriptName), eventName)
		return nil, false
	}

	if args == nil {
		args = Args{}
	}
	if r.beforeCall != nil {
		r.beforeCall(inst.Name(), eventName, args)
	}

	return inst.TryCallEvent(eventName, args)
}

// TryGetScript looks up a script by canonical name.
func (r *Registry[S]) TryGetScript(name string) (S, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.scripts[strings.ToLower(name)]
	return inst, ok
}

// Scripts returns a snapshot of the loaded scripts keyed by canonical
// name. Mutating the snapshot does not affect the registry.
func (r *Registry[S]) Scripts() map[string]S {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]S, len(r.scripts))
	for k, v := range r.scripts {
		out[k] = v
	}
	return out
}

// Names returns the canonical names of all loaded scripts, sorted.
func (r *Registry[S]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.scripts)
}

// Len returns the number of loaded scripts.
func (r *Registry[S]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scripts)
}

// Subscribe adds a notification handler and returns an unsubscribe
// function.
func (r *Registry[S]) Subscribe(handler NotificationHandler[S]) func() {
	if handler == nil {
		return func() {}
	}

	r.mu.Lock()
	r.handlers = append(r.handlers, handler)
	index := len(r.handlers) - 1
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// Nil out instead of removing to keep other indexes stable.
		if index < len(r.handlers) {
			r.handlers[index] = nil
		}
	}
}

// notify calls handlers outside any lock with panic recovery, so a
// misbehaving handler cannot take down the registry.
func (r *Registry[S]) notify(n Notification[S]) {
	r.mu.RLock()
	handlers := make([]NotificationHandler[S], len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				recover()
			}()
			handler(n)
		}()
	}
}

func sortedKeys[S Script](m map[string]S) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
