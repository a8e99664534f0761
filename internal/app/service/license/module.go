package license

import "go.uber.org/fx"

// Module exposes the license lifecycle service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
