package sweeper

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rezars19/rz-automedata/internal/app/service/license"
	"github.com/rezars19/rz-automedata/pkg/config"
)

// Module wires the sweeper into the application lifecycle.
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, mgr license.Manager, log *zap.SugaredLogger) *Sweeper {
		return New(cfg, mgr, log)
	}),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, s *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}
