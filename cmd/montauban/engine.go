package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/montauban/internal/config"
	"github.com/cory-johannsen/montauban/internal/game/condition"
	"github.com/cory-johannsen/montauban/internal/game/content"
	"github.com/cory-johannsen/montauban/internal/game/council"
	"github.com/cory-johannsen/montauban/internal/game/patch"
	"github.com/cory-johannsen/montauban/internal/game/progression"
	"github.com/cory-johannsen/montauban/internal/observability"
	"github.com/cory-johannsen/montauban/internal/record"
	"github.com/cory-johannsen/montauban/internal/scripting"
	"github.com/cory-johannsen/montauban/internal/storage/postgres"
	"github.com/cory-johannsen/montauban/internal/storage/sqlite"
)

// Engine holds the shared, read-only content and services every command runs on.
type Engine struct {
	Characters *content.Registry
	Agenda     []*council.Deliberation
	Patcher    *patch.Patcher
	Scripts    *scripting.Manager
	Evaluator  *condition.Evaluator
	Emitter    record.Emitter
	Logger     *zap.Logger
}

// NewController returns a fresh playthrough controller.
func (e *Engine) NewController() *progression.Controller {
	return progression.NewController(e.Characters, e.Patcher, e.Evaluator, e.Emitter,
		observability.Component(e.Logger, "progression"))
}

// NewCouncil opens a Council session on the shipped agenda.
func (e *Engine) NewCouncil() (*council.Session, error) {
	return council.NewSession(e.Agenda, e.Emitter, observability.Component(e.Logger, "council"))
}

func provideCharacters(cfg config.Config) (*content.Registry, error) {
	reg, err := content.LoadDirectory(cfg.Content.CharactersDir, content.LoadOptions{SceneCount: cfg.Content.SceneCount})
	if err != nil {
		return nil, fmt.Errorf("loading characters: %w", err)
	}
	return reg, nil
}

func provideAgenda(cfg config.Config) ([]*council.Deliberation, error) {
	delibs, err := council.LoadDeliberations(cfg.Content.CouncilFile)
	if err != nil {
		return nil, fmt.Errorf("loading council agenda: %w", err)
	}
	return delibs, nil
}

func providePatcher(cfg config.Config) (*patch.Patcher, error) {
	rules, err := patch.LoadRules(cfg.Content.PatchRulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading patch rules: %w", err)
	}
	return patch.NewPatcher(rules), nil
}

func provideScripts(cfg config.Config, logger *zap.Logger) (*scripting.Manager, func(), error) {
	mgr := scripting.NewManager(cfg.Scripting.InstructionLimit, observability.Component(logger, "scripting"))
	if cfg.Content.ScriptsDir != "" {
		if err := mgr.LoadDir(cfg.Content.ScriptsDir); err != nil {
			mgr.Close()
			return nil, nil, err
		}
	}
	return mgr, mgr.Close, nil
}

func provideEvaluator(scripts *scripting.Manager) *condition.Evaluator {
	return condition.NewEvaluator(scripts)
}

// provideEmitter opens the configured event sink behind a Dispatcher. The
// cleanup flushes queued events before closing the sink.
func provideEmitter(ctx context.Context, cfg config.Config, logger *zap.Logger) (record.Emitter, func(), error) {
	dcfg := record.DispatcherConfig{
		QueueSize:     cfg.Events.QueueSize,
		SendTimeout:   cfg.Events.SendTimeout,
		RatePerSecond: cfg.Events.RatePerSecond,
	}
	dlog := observability.Component(logger, "record")

	switch cfg.Events.Sink {
	case config.SinkSQLite:
		store, err := sqlite.Open(cfg.Events.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		d := record.NewDispatcher(store, dcfg, dlog)
		return d, func() {
			d.Close()
			_ = store.Close()
		}, nil
	case config.SinkPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		d := record.NewDispatcher(pool.Events(), dcfg, dlog)
		return d, func() {
			d.Close()
			pool.Close()
		}, nil
	default:
		return record.Nop{}, func() {}, nil
	}
}
