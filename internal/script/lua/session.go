// Package lua wraps gopher-lua sessions for the script host.
package lua

import (
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Session owns one gopher-lua interpreter state for one guest script.
//
// IMPORTANT: gopher-lua's LState is not goroutine-safe. The mutex in this
// struct serializes access from Go code; Lua execution itself is inherently
// single-threaded. Two different Sessions never share an LState and may be
// used from different goroutines independently.
type Session struct {
	L *lua.LState

	mu     sync.Mutex
	closed bool
}

// New creates a session with the safe library subset opened and the guest
// module resolver configured from the given search patterns.
//
// modulePaths are Lua-style patterns ("dir/Libs/?.lua") joined into
// package.path so that require() resolves guest-side includes. package.cpath
// is cleared: native C modules are never resolvable.
func New(modulePaths []string) (*Session, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	openGuestLibraries(L)

	s := &Session{L: L}
	if err := s.setModulePaths(modulePaths); err != nil {
		L.Close()
		return nil, err
	}
	return s, nil
}

// openGuestLibraries opens the Lua standard libraries guest scripts get.
// io and os are intentionally not opened: host file access goes through the
// injected App capability, which keeps the host/guest boundary auditable.
func openGuestLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	lua.OpenPackage(L) // require() support for module-path resolution
}

// setModulePaths seeds package.path with the session's resolution patterns.
func (s *Session) setModulePaths(patterns []string) error {
	pkg := s.L.GetGlobal("package")
	pkgTbl, ok := pkg.(*lua.LTable)
	if !ok {
		return fmt.Errorf("package table not available")
	}
	s.L.SetField(pkgTbl, "path", lua.LString(strings.Join(patterns, ";")))
	s.L.SetField(pkgTbl, "cpath", lua.LString(""))
	return nil
}

// DoFile compiles and runs a Lua source file's top level.
// Execution is synchronous and panics are converted to errors.
func (s *Session) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	return s.doWithRecovery(func() error {
		return s.L.DoFile(path)
	})
}

// doWithRecovery executes a function with panic recovery.
func (s *Session) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// CallFunction invokes a guest callable with the given arguments and
// returns its first result (LNil if the callable returns nothing).
// Guest errors and panics are returned, never propagated.
func (s *Session) CallFunction(fn *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrSessionClosed
	}
	if fn == nil {
		return lua.LNil, ErrNotCallable
	}

	stackTop := s.L.GetTop()

	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}

	var callErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("lua panic: %v", r)
			}
		}()
		callErr = s.L.PCall(len(args), lua.MultRet, nil)
	}()

	if callErr != nil {
		// Discard anything the failed call left behind.
		if top := s.L.GetTop(); top > stackTop {
			s.L.Pop(top - stackTop)
		}
		return lua.LNil, callErr
	}

	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return lua.LNil, nil
	}
	result := s.L.Get(stackTop + 1)
	s.L.Pop(nRet)
	return result, nil
}

// SetGlobal sets a global variable in guest scope.
func (s *Session) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// GetGlobal returns a global variable value from guest scope.
func (s *Session) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// LuaState returns the underlying gopher-lua state.
//
// WARNING: direct access bypasses the session mutex. Callers must not
// retain the LState past the session's lifetime.
func (s *Session) LuaState() *lua.LState {
	return s.L
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the interpreter state. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.Close()
	s.closed = true
}
