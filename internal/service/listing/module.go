package listing

import "go.uber.org/fx"

// Module provides the listing service to Fx.
var Module = fx.Provide(NewService)
