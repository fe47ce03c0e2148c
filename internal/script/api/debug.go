package api

import (
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// DebugModule exposes the Debug global: Log, LogWarning, and LogError,
// each tagging output with the owning script's canonical name.
type DebugModule struct {
	log logrus.FieldLogger
}

// NewDebugModule creates the logging capability for one script. The
// logger must already be scoped to the script's name.
func NewDebugModule(log logrus.FieldLogger) *DebugModule {
	return &DebugModule{log: log}
}

// Name returns the module's global binding.
func (m *DebugModule) Name() string { return "Debug" }

// Register installs the Debug table into the Lua state.
func (m *DebugModule) Register(L *lua.LState) error {
	mod := L.NewTable()
	L.SetField(mod, "Log", L.NewFunction(m.logInfo))
	L.SetField(mod, "LogWarning", L.NewFunction(m.logWarning))
	L.SetField(mod, "LogError", L.NewFunction(m.logError))
	L.SetGlobal(m.Name(), mod)
	return nil
}

func (m *DebugModule) logInfo(L *lua.LState) int {
	m.log.Info(L.CheckString(1))
	return 0
}

func (m *DebugModule) logWarning(L *lua.LState) int {
	m.log.Warn(L.CheckString(1))
	return 0
}

func (m *DebugModule) logError(L *lua.LState) int {
	m.log.Error(L.CheckString(1))
	return 0
}
