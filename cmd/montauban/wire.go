//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/montauban/internal/config"
)

func initializeEngine(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Engine, func(), error) {
	wire.Build(
		provideCharacters,
		provideAgenda,
		providePatcher,
		provideScripts,
		provideEvaluator,
		provideEmitter,
		wire.Struct(new(Engine), "*"),
	)
	return nil, nil, nil
}
