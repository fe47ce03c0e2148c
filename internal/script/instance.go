package script

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/scripthost/internal/fileio"
	"github.com/dshills/scripthost/internal/script/api"
	slua "github.com/dshills/scripthost/internal/script/lua"
)

// Instance hosts one guest script: it exclusively owns one interpreter
// session and the capability objects injected into it, and it brokers
// host-side event calls to the callables the guest registered.
type Instance struct {
	name       string
	sourcePath string
	id         string

	log   logrus.FieldLogger
	files api.FileStore

	injectors []GlobalInjector

	mu      sync.Mutex
	session *slua.Session
	events  map[string]*lua.LFunction
}

// InstanceOption configures an Instance.
type InstanceOption func(*Instance)

// WithLogger sets the base logger. The instance scopes it to the script
// name.
func WithLogger(log logrus.FieldLogger) InstanceOption {
	return func(i *Instance) {
		i.log = log
	}
}

// WithFileStore sets the file-I/O collaborator behind the App capability.
func WithFileStore(files api.FileStore) InstanceOption {
	return func(i *Instance) {
		i.files = files
	}
}

// WithGlobals appends injectors that run after the default capabilities
// are installed and before the script's top level executes.
func WithGlobals(injectors ...GlobalInjector) InstanceOption {
	return func(i *Instance) {
		i.injectors = append(i.injectors, injectors...)
	}
}

// NewInstance creates an unloaded instance for the given source file.
// The canonical name is the file's base name, extension stripped and
// lowercased.
func NewInstance(sourcePath string, opts ...InstanceOption) *Instance {
	base := filepath.Base(sourcePath)
	name := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	i := &Instance{
		name:       name,
		sourcePath: sourcePath,
		id:         uuid.NewString(),
		log:        logrus.StandardLogger(),
		files:      fileio.Store{},
	}

	for _, opt := range opts {
		opt(i)
	}

	i.log = i.log.WithField("script", name)
	return i
}

// Name returns the canonical script name.
func (i *Instance) Name() string { return i.name }

// SourcePath returns the path the script is compiled from.
func (i *Instance) SourcePath() string { return i.sourcePath }

// ID returns the identifier of this instance generation. Reloading a
// script produces a new instance with a new ID under the same name.
func (i *Instance) ID() string { return i.id }

// Load creates a fresh interpreter session, wires the host capabilities
// and module search paths into it, and runs the source's top level. Event
// registrations the guest makes during top-level execution populate the
// event table. Returns true only if compilation and execution succeed.
func (i *Instance) Load(modulePaths []string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.sourcePath == "" {
		i.log.Error("load: empty source path")
		return false
	}
	if _, err := os.Stat(i.sourcePath); err != nil {
		i.log.Errorf("load: source file unavailable: %v", err)
		return false
	}

	session, err := slua.New(modulePaths)
	if err != nil {
		i.log.Errorf("load: session setup failed: %v", err)
		return false
	}

	i.session = session
	i.events = make(map[string]*lua.LFunction)

	if err := i.installCapabilities(); err != nil {
		i.log.Errorf("load: capability injection failed: %v", err)
		i.discardSession()
		return false
	}

	if err := session.DoFile(i.sourcePath); err != nil {
		i.logCompileFailure(err)
		i.discardSession()
		return false
	}

	i.log.Debugf("loaded %s (%d events)", i.sourcePath, len(i.events))
	return true
}

// installCapabilities injects the default host surface and any extra
// injectors. Must be called with i.mu held and a live session.
func (i *Instance) installCapabilities() error {
	L := i.session.LuaState()

	L.SetGlobal("RegisterEvent", L.NewFunction(i.registerEvent))

	modules := []api.Module{
		api.NewDebugModule(i.log),
		api.NewAppModule(i.files, i.log),
	}
	for _, mod := range modules {
		if err := mod.Register(L); err != nil {
			return err
		}
	}

	for _, inj := range i.injectors {
		if err := inj.InjectGlobals(L); err != nil {
			return err
		}
	}
	return nil
}

// registerEvent is the guest-visible RegisterEvent(name, fn) binding.
// Non-callable values are silently discarded; re-registering a name
// overwrites the prior callable.
func (i *Instance) registerEvent(L *lua.LState) int {
	name := L.CheckString(1)
	fn, ok := L.Get(2).(*lua.LFunction)
	if !ok {
		return 0
	}
	i.events[name] = fn
	return 0
}

// logCompileFailure classifies a top-level execution failure into one
// diagnostic line.
func (i *Instance) logCompileFailure(err error) {
	switch {
	case slua.IsFileError(err):
		i.log.Errorf("compile: cannot read source: %v", err)
	case slua.IsSyntaxError(err):
		if line, ok := slua.SyntaxErrorLine(err.Error()); ok {
			i.log.Errorf("compile: syntax error near line %d: %v", line, err)
			return
		}
		i.log.Errorf("compile: syntax error: %v", err)
	case slua.IsRuntimeError(err):
		i.log.Errorf("compile: top-level execution failed: %s", slua.DescribeError(err))
	default:
		i.log.Errorf("compile: unexpected failure: %v", err)
	}
}

// discardSession closes the session and clears the event table. Must be
// called with i.mu held.
func (i *Instance) discardSession() {
	if i.session != nil {
		i.session.Close()
		i.session = nil
	}
	i.events = nil
}

// TryCallEvent invokes a registered callable with the argument table.
// Guest failures are contained here: a structured guest-runtime error is
// logged with its reconstructed call stack, anything else generically,
// and in both cases the call returns (nil, false). The host and the
// instance stay fully usable afterward.
func (i *Instance) TryCallEvent(event string, args Args) (any, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.session == nil {
		return nil, false
	}
	fn, ok := i.events[event]
	if !ok {
		return nil, false
	}
	if args == nil {
		args = Args{}
	}

	tbl := slua.TableFromMap(i.session.LuaState(), args)
	out, err := i.session.CallFunction(fn, tbl)
	if err != nil {
		if slua.IsRuntimeError(err) {
			i.log.Errorf("event %q failed: %s", event, slua.DescribeError(err))
		} else {
			i.log.Errorf("event %q failed: %v", event, err)
		}
		return nil, false
	}
	return slua.ToGo(out), true
}

// HasEvent reports whether the guest registered the named event.
func (i *Instance) HasEvent(event string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.events[event]
	return ok
}

// Events returns the registered event names, sorted.
func (i *Instance) Events() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	names := make([]string, 0, len(i.events))
	for name := range i.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsLoaded reports whether the instance holds a live session.
func (i *Instance) IsLoaded() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.session != nil
}

// Close discards the interpreter session and event table. No guest
// teardown hook is invoked first.
func (i *Instance) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.discardSession()
}
