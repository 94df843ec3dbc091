package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/montauban/internal/game/state"
)

// RegisterModules registers the engine.* Lua tables into L:
//   - engine.log.{debug,info,warn}(msg)
//   - engine.stats: the resource names in stable order
//   - engine.floor / engine.ceiling: the resource bounds
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()

	logTbl := L.NewTable()
	for name, logFn := range map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
	} {
		logFn := logFn
		L.SetField(logTbl, name, L.NewFunction(func(L *lua.LState) int {
			logFn("lua", zap.String("msg", L.CheckString(1)))
			return 0
		}))
	}
	L.SetField(engine, "log", logTbl)

	keys := L.NewTable()
	for _, k := range state.Keys {
		keys.Append(lua.LString(k))
	}
	L.SetField(engine, "stats", keys)
	L.SetField(engine, "floor", lua.LNumber(state.Floor))
	L.SetField(engine, "ceiling", lua.LNumber(state.Ceiling))

	L.SetGlobal("engine", engine)
}

// playerTable builds the read-only view a predicate receives:
//
//	{resources=…, moral=…, links=…, comfort=…, flags={…}, policy={…}, cross={…}}
//
// Flag tables map each held flag to true. The table is rebuilt per call so a
// script mutating it cannot affect later evaluations.
func playerTable(L *lua.LState, p *state.Player) *lua.LTable {
	t := L.NewTable()
	for _, k := range state.Keys {
		v, _ := p.Stats.Get(k)
		L.SetField(t, string(k), lua.LNumber(v))
	}
	L.SetField(t, "flags", flagTable(L, p.Local))
	L.SetField(t, "policy", flagTable(L, p.Policy))
	L.SetField(t, "cross", flagTable(L, p.Cross))
	return t
}

func flagTable(L *lua.LState, f state.Flags) *lua.LTable {
	t := L.NewTable()
	for _, name := range f.Sorted() {
		L.SetField(t, name, lua.LTrue)
	}
	return t
}
