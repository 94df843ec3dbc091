// Package scripting provides a sandboxed GopherLua execution environment for
// scripted option conditions. Scripts see a read-only snapshot of the player and
// return true when the option they guard may be taken.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes allowed per call
// when no override is configured.
const DefaultInstructionLimit = 10_000

// countingContext is a context.Context that cancels itself after Done() has
// been called limit times. GopherLua's mainLoopWithContext calls Done() once
// per opcode, making this an exact instruction-count limit.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

// Done returns the underlying cancellation channel. Each call decrements the
// remaining counter; when it reaches zero the cancel function fires,
// terminating the Lua VM on the next opcode boundary.
func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// newCountingContext returns a context that cancels after limit calls to Done().
// Precondition: limit > 0.
func newCountingContext(limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{
		Context:   base,
		cancel:    cancel,
		remaining: rem,
	}, cancel
}

// NewSandboxedState creates a GopherLua LState with:
//   - Only safe stdlib loaded: base, table, string, math
//   - Dangerous globals removed: dofile, loadfile, load, collectgarbage, require,
//     rawset, setfenv
//
// The state carries no instruction budget of its own; run code through
// WithBudget so every execution gets a fresh limit.
//
// Postcondition: Returns a non-nil LState. The caller owns it and must call L.Close().
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require", "rawset", "setfenv"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// WithBudget runs fn with at most instLimit opcodes available to L, then removes
// the limit. Each call starts from a full budget, so a predicate evaluated twice
// behaves the same both times.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: L has no context attached when WithBudget returns.
func WithBudget(L *lua.LState, instLimit int, fn func() error) error {
	limit := instLimit
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := newCountingContext(limit)
	L.SetContext(ctx)
	defer func() {
		L.RemoveContext()
		cancel()
	}()
	return fn()
}

// Freeze moves every global of L behind a protected metatable. Reads resolve
// as before; assigning any global, new or existing, raises a Lua error.
//
// Postcondition: getmetatable(_G) returns "frozen" and setmetatable(_G, ...) fails.
func Freeze(L *lua.LState) {
	globals := L.G.Global
	backing := L.NewTable()
	globals.ForEach(func(k, v lua.LValue) {
		backing.RawSet(k, v)
	})
	backing.ForEach(func(k, _ lua.LValue) {
		globals.RawSet(k, lua.LNil)
	})

	mt := L.NewTable()
	L.SetField(mt, "__index", backing)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("assignment to global %s in a frozen environment", L.CheckAny(2).String())
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("frozen"))
	L.SetMetatable(globals, mt)
}
