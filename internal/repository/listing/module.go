package listing

import "go.uber.org/fx"

// Module provides the listing repository to Fx.
var Module = fx.Provide(NewRepository)
