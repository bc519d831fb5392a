package actor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{ID: 4, Role: "admin"})
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(4), got.ID)
	assert.Equal(t, "admin", got.Role)
}

func TestMiddleware(t *testing.T) {
	e := echo.New()

	handler := Middleware()(func(c echo.Context) error {
		a, ok := FromContext(c.Request().Context())
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, a)
	})

	t.Run("valid headers populate the context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderActorID, "12")
		req.Header.Set(HeaderActorRole, "admin")
		rec := httptest.NewRecorder()

		err := handler(e.NewContext(req, rec))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing headers are rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		err := handler(e.NewContext(req, rec))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("non-numeric id is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderActorID, "abc")
		req.Header.Set(HeaderActorRole, "admin")
		rec := httptest.NewRecorder()

		err := handler(e.NewContext(req, rec))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing role is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderActorID, "12")
		rec := httptest.NewRecorder()

		err := handler(e.NewContext(req, rec))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
