package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the engine.log and engine.dice Lua tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (a *Autopilot) RegisterModules(L *lua.LState) {
	engine := L.NewTable()

	logTbl := L.NewTable()
	for name, fn := range map[string]func(string, ...zap.Field){
		"debug": a.logger.Debug,
		"info":  a.logger.Info,
		"warn":  a.logger.Warn,
		"error": a.logger.Error,
	} {
		L.SetField(logTbl, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	L.SetField(engine, "log", logTbl)

	diceTbl := L.NewTable()
	// engine.dice.intn(n) returns an integer in [0, n).
	L.SetField(diceTbl, "intn", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n <= 0 {
			L.ArgError(1, "n must be > 0")
			return 0
		}
		L.Push(lua.LNumber(a.src.Intn(n)))
		return 1
	}))
	L.SetField(diceTbl, "float", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(a.src.Float64()))
		return 1
	}))
	L.SetField(engine, "dice", diceTbl)

	L.SetGlobal("engine", engine)
}
