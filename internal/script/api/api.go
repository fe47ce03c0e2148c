// Package api provides the host capability modules injected into guest
// script scope: the Debug logging surface and the App bridge object.
//
// Each module follows the same shape: construct with its providers, then
// Register it into a Lua state before the script's top level runs.
package api

import lua "github.com/yuin/gopher-lua"

// Module is a host capability installable into guest scope.
type Module interface {
	// Name returns the global binding the module installs.
	Name() string

	// Register installs the module into the Lua state.
	Register(L *lua.LState) error
}

// FileStore is the file-I/O collaborator behind the App capability.
type FileStore interface {
	ReadText(path string) (string, bool)
	WriteText(path, text string) error
	AppendText(path, text string) error
	WriteJSON(path, raw string) error
	UpdateJSON(path, key string, value any) error
}
