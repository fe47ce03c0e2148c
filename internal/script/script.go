package script

import lua "github.com/yuin/gopher-lua"

// Args is the string-keyed argument table passed to an event call.
// Every call gets a freshly allocated table; omitting arguments is
// equivalent to passing an empty one.
type Args map[string]any

// Script is the capability surface the registry manages. *Instance is the
// default implementation; host applications embed it to add bindings.
type Script interface {
	// Name returns the canonical (lowercased) script name.
	Name() string

	// SourcePath returns the path the script was compiled from.
	SourcePath() string

	// Load creates the interpreter session, injects host capabilities,
	// configures module resolution from the given search patterns, and
	// runs the source's top level. Returns false on any failure; the
	// failure is logged, never raised.
	Load(modulePaths []string) bool

	// TryCallEvent invokes a guest-registered event by name. The output
	// is the callable's first return value converted to a Go value.
	// ok is false when the event is unknown or the call failed.
	TryCallEvent(event string, args Args) (any, bool)

	// Close discards the interpreter session. No guest teardown hook
	// is invoked.
	Close()
}

// GlobalInjector adds host bindings into guest scope before a script's
// top level runs. Embedding types implement this to extend the default
// capability surface.
type GlobalInjector interface {
	InjectGlobals(L *lua.LState) error
}

// GlobalInjectorFunc adapts a function to the GlobalInjector interface.
type GlobalInjectorFunc func(L *lua.LState) error

// InjectGlobals calls f.
func (f GlobalInjectorFunc) InjectGlobals(L *lua.LState) error { return f(L) }

// As narrows a script to a concrete type, for registries holding an
// interface-typed script set. ok is false when the script is nil or of a
// different type.
func As[T Script](s Script) (T, bool) {
	t, ok := s.(T)
	return t, ok
}
