package buyer

import "go.uber.org/fx"

// Module provides the buyer service to Fx.
var Module = fx.Provide(NewService)
