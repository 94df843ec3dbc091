package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"

	"github.com/cory-johannsen/montauban/internal/game/state"
)

// ErrUnknownPredicate is returned when Check names a function no loaded script defines.
var ErrUnknownPredicate = errors.New("scripting: unknown predicate")

// Manager holds the compiled condition scripts. Every Check runs in a fresh
// sandboxed LState built from those chunks and frozen before the predicate is
// called, so no call can observe state left behind by another.
//
// Manager is safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	chunks    []*lua.FunctionProto
	instLimit int
	logger    *zap.Logger
}

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager; instLimit <= 0 selects DefaultInstructionLimit.
func NewManager(instLimit int, logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{instLimit: instLimit, logger: logger}
}

func compile(name, src string) (*lua.FunctionProto, error) {
	stmts, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, err
	}
	return lua.Compile(stmts, name)
}

// instantiate builds a frozen LState with every chunk executed in order.
//
// Postcondition: On success the caller owns the returned LState and must close it.
func (m *Manager) instantiate(chunks []*lua.FunctionProto) (*lua.LState, error) {
	L := NewSandboxedState()
	m.RegisterModules(L)
	for _, proto := range chunks {
		fn := L.NewFunctionFromProto(proto)
		err := WithBudget(L, m.instLimit, func() error {
			L.Push(fn)
			return L.PCall(0, 0, nil)
		})
		if err != nil {
			L.Close()
			return nil, fmt.Errorf("scripting: running %q: %w", proto.SourceName, err)
		}
	}
	Freeze(L)
	return L, nil
}

// LoadDir replaces every loaded script with the *.lua files in scriptDir,
// executed in lexicographic order.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: On error the previously loaded scripts are kept unchanged.
func (m *Manager) LoadDir(scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	chunks := make([]*lua.FunctionProto, 0, len(luaFiles))
	for _, path := range luaFiles {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("scripting: reading %q: %w", path, err)
		}
		proto, err := compile(path, string(src))
		if err != nil {
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
		chunks = append(chunks, proto)
	}
	if err := m.trial(chunks); err != nil {
		return err
	}

	m.mu.Lock()
	m.chunks = chunks
	m.mu.Unlock()
	m.logger.Info("scripting: predicates loaded",
		zap.String("dir", scriptDir),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// LoadString adds src after the scripts already loaded. name is used in error messages.
//
// Postcondition: Returns an error if src fails to compile or run; the loaded
// scripts are then unchanged.
func (m *Manager) LoadString(name, src string) error {
	proto, err := compile(name, src)
	if err != nil {
		return fmt.Errorf("scripting: loading %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	chunks := make([]*lua.FunctionProto, 0, len(m.chunks)+1)
	chunks = append(append(chunks, m.chunks...), proto)
	if err := m.trial(chunks); err != nil {
		return err
	}
	m.chunks = chunks
	return nil
}

// trial executes chunks once so load errors surface at load time.
func (m *Manager) trial(chunks []*lua.FunctionProto) error {
	L, err := m.instantiate(chunks)
	if err != nil {
		return err
	}
	L.Close()
	return nil
}

// Check calls the global predicate fn with a snapshot of p and reports whether
// it returned true. Any other return value is false. A predicate assigning a
// global raises a Lua error.
//
// Precondition: p must be non-nil.
// Postcondition: Returns ErrUnknownPredicate when fn is undefined, or a wrapped
// Lua error (logged at Warn) when the call fails or exhausts its budget. The
// result depends only on fn and p.
func (m *Manager) Check(fn string, p *state.Player) (bool, error) {
	m.mu.RLock()
	chunks := m.chunks
	m.mu.RUnlock()

	L, err := m.instantiate(chunks)
	if err != nil {
		m.logger.Warn("scripting: building predicate state", zap.String("predicate", fn), zap.Error(err))
		return false, err
	}
	defer L.Close()

	f := L.GetGlobal(fn)
	if f.Type() != lua.LTFunction {
		return false, fmt.Errorf("%w: %q", ErrUnknownPredicate, fn)
	}

	err = WithBudget(L, m.instLimit, func() error {
		return L.CallByParam(lua.P{
			Fn:      f,
			NRet:    1,
			Protect: true,
		}, playerTable(L, p))
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("predicate", fn),
			zap.Error(err),
		)
		return false, fmt.Errorf("scripting: calling %q: %w", fn, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret == lua.LTrue, nil
}

// Close drops every loaded script. Check after Close reports every predicate as unknown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
}
