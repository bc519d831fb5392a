package buyer

import "go.uber.org/fx"

// Module provides the buyer repository to Fx.
var Module = fx.Provide(NewRepository)
