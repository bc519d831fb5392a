package user

import (
	"go.uber.org/fx"

	"github.com/greenlane/marketdesk/internal/verification"
)

// Module provides the user repository to Fx, also binding it as the
// verification package's directory of notifiable users.
var Module = fx.Provide(
	NewRepository,
	func(r *Repository) verification.UserDirectory { return r },
)
