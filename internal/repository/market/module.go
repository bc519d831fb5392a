package market

import "go.uber.org/fx"

// Module provides the market repository to Fx.
var Module = fx.Provide(NewRepository)
