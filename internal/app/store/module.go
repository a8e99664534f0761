package store

import "go.uber.org/fx"

// Module exposes the entitlement store via Fx.
var Module = fx.Options(
	fx.Provide(NewStore),
)
