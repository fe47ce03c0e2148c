package api

import (
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	slua "github.com/dshills/scripthost/internal/script/lua"
)

// AppModule exposes the App global: the restricted file-I/O surface guest
// scripts use for persistence. Failures are raised as Lua errors so they
// stay inside the caller's protected call.
type AppModule struct {
	files FileStore
	log   logrus.FieldLogger
}

// NewAppModule creates the bridge capability for one script.
func NewAppModule(files FileStore, log logrus.FieldLogger) *AppModule {
	return &AppModule{files: files, log: log}
}

// Name returns the module's global binding.
func (m *AppModule) Name() string { return "App" }

// Register installs the App table into the Lua state.
func (m *AppModule) Register(L *lua.LState) error {
	mod := L.NewTable()
	L.SetField(mod, "ReadText", L.NewFunction(m.readText))
	L.SetField(mod, "WriteText", L.NewFunction(m.writeText))
	L.SetField(mod, "AppendText", L.NewFunction(m.appendText))
	L.SetField(mod, "WriteJson", L.NewFunction(m.writeJSON))
	L.SetField(mod, "UpdateJson", L.NewFunction(m.updateJSON))
	L.SetGlobal(m.Name(), mod)
	return nil
}

// readText(path) -> string|nil. Returns nil when the file is absent or empty.
func (m *AppModule) readText(L *lua.LState) int {
	path := L.CheckString(1)

	text, ok := m.files.ReadText(path)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(text))
	return 1
}

func (m *AppModule) writeText(L *lua.LState) int {
	path := L.CheckString(1)
	text := L.CheckString(2)

	if err := m.files.WriteText(path, text); err != nil {
		m.log.Warnf("WriteText %s: %v", path, err)
		L.RaiseError("WriteText: %s", err.Error())
	}
	return 0
}

func (m *AppModule) appendText(L *lua.LState) int {
	path := L.CheckString(1)
	text := L.CheckString(2)

	if err := m.files.AppendText(path, text); err != nil {
		m.log.Warnf("AppendText %s: %v", path, err)
		L.RaiseError("AppendText: %s", err.Error())
	}
	return 0
}

// writeJSON(path, raw) validates raw and writes it indented.
func (m *AppModule) writeJSON(L *lua.LState) int {
	path := L.CheckString(1)
	raw := L.CheckString(2)

	if err := m.files.WriteJSON(path, raw); err != nil {
		m.log.Warnf("WriteJson %s: %v", path, err)
		L.RaiseError("WriteJson: %s", err.Error())
	}
	return 0
}

// updateJSON(path, key, value) sets one key in a JSON document on disk.
func (m *AppModule) updateJSON(L *lua.LState) int {
	path := L.CheckString(1)
	key := L.CheckString(2)
	value := slua.ToGo(L.Get(3))

	if err := m.files.UpdateJSON(path, key, value); err != nil {
		m.log.Warnf("UpdateJson %s: %v", path, err)
		L.RaiseError("UpdateJson: %s", err.Error())
	}
	return 0
}
