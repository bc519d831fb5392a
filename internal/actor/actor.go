package actor

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/greenlane/marketdesk/internal/presentation/http/response"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

// Actor is the already-authenticated administrative identity attached to
// every request by the upstream gateway. The core performs no
// authentication itself.
type Actor struct {
	ID   int64
	Role string
}

type ctxKey struct{}

// WithActor returns a context carrying the actor identity.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext extracts the actor identity, reporting whether one is present.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}

// Header names populated by the gateway after it validates the session.
const (
	HeaderActorID   = "X-Admin-Id"
	HeaderActorRole = "X-Admin-Role"
)

// Middleware lifts the gateway-provided identity headers into the request
// context and rejects requests that carry none.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawID := c.Request().Header.Get(HeaderActorID)
			role := c.Request().Header.Get(HeaderActorRole)
			id, err := strconv.ParseInt(rawID, 10, 64)
			if err != nil || id <= 0 || role == "" {
				return response.New(c).
					WithStatus(http.StatusForbidden).
					WithError(errorbank.Forbidden("missing actor identity")).
					Build()
			}
			ctx := WithActor(c.Request().Context(), Actor{ID: id, Role: role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
