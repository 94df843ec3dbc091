package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/montauban/internal/scripting"
)

func TestNewSandboxedState_UnsafeLibsNil(t *testing.T) {
	L := scripting.NewSandboxedState()
	require.NotNil(t, L)
	defer L.Close()
	for _, name := range []string{"os", "io", "debug"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_DangerousGlobalsNil(t *testing.T) {
	L := scripting.NewSandboxedState()
	require.NotNil(t, L)
	defer L.Close()
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require", "rawset", "setfenv"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_SafeLibsAvailable(t *testing.T) {
	L := scripting.NewSandboxedState()
	require.NotNil(t, L)
	defer L.Close()
	err := L.DoString(`
		local x = math.sqrt(4)
		assert(x == 2.0, "math.sqrt failed")
		local s = string.upper("hello")
		assert(s == "HELLO", "string.upper failed")
	`)
	assert.NoError(t, err)
}

func TestWithBudget_InstructionLimitExceeded(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	err := scripting.WithBudget(L, 10, func() error { return L.DoString(`while true do end`) })
	assert.Error(t, err, "expected instruction limit error")
}

func TestWithBudget_ResetsBetweenCalls(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	run := func() error {
		return scripting.WithBudget(L, 500, func() error {
			return L.DoString(`local n = 0 for i = 1, 50 do n = n + i end`)
		})
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, run(), "call %d should have a full budget", i)
	}
}

func TestWithBudget_StateUsableAfterExhaustion(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	require.Error(t, scripting.WithBudget(L, 10, func() error { return L.DoString(`while true do end`) }))
	assert.NoError(t, scripting.WithBudget(L, 0, func() error { return L.DoString(`local x = 1 + 1`) }))
}

func TestProperty_InstructionLimitAlwaysErrors(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(t, "limit")
		L := scripting.NewSandboxedState()
		defer L.Close()
		err := scripting.WithBudget(L, limit, func() error { return L.DoString(`while true do end`) })
		if err == nil {
			t.Fatalf("expected error with limit=%d but got nil", limit)
		}
	})
}

func TestFreeze_ReadsKeptWritesRejected(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	require.NoError(t, L.DoString(`limit = 3`))
	scripting.Freeze(L)

	assert.NoError(t, L.DoString(`assert(limit == 3 and math.floor(2.5) == 2)`))
	assert.Error(t, L.DoString(`limit = 4`))
	assert.Error(t, L.DoString(`other = 1`))
	assert.Equal(t, lua.LNumber(3), L.GetGlobal("limit"))
	assert.Equal(t, lua.LNil, L.GetGlobal("other"))
}
