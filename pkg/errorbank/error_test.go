package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{BadRequest("x"), http.StatusBadRequest},
		{Conflict("x"), http.StatusConflict},
		{NotFound("x"), http.StatusNotFound},
		{Unprocessable("x"), http.StatusUnprocessableEntity},
		{DependencyBlocked("x", nil, nil), http.StatusConflict},
		{Forbidden("x"), http.StatusForbidden},
		{Internal("x"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.StatusCode())
		})
	}
}

func TestGRPCCode(t *testing.T) {
	assert.Equal(t, codes.InvalidArgument, BadRequest("x").GRPCCode())
	assert.Equal(t, codes.FailedPrecondition, DependencyBlocked("x", nil, nil).GRPCCode())
	assert.Equal(t, codes.PermissionDenied, Forbidden("x").GRPCCode())
	assert.Equal(t, codes.Internal, Internal("x").GRPCCode())
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("db down")
	err := Internal("query failed", WithCause(cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "query failed: db down", err.Error())
}

func TestWithDetail(t *testing.T) {
	err := Conflict("duplicate", WithDetail("field", "email"))
	assert.Equal(t, "email", err.Details()["field"])
}

func TestDependencyBlockedDetails(t *testing.T) {
	err := DependencyBlocked("vendor has dependents",
		map[string]int{"activeListings": 3},
		[]string{"Deactivate the listings first"},
	)

	deps, ok := err.Details()["dependencies"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, deps["activeListings"])
	assert.Equal(t, []string{"Deactivate the listings first"}, err.Details()["suggestions"])
}

func TestFrom(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, From(nil))
	})

	t.Run("app errors pass through", func(t *testing.T) {
		orig := NotFound("gone")
		assert.Same(t, orig, From(orig))
	})

	t.Run("wrapped app errors are recovered", func(t *testing.T) {
		orig := Conflict("busy")
		wrapped := fmt.Errorf("outer: %w", orig)
		assert.Same(t, orig, From(wrapped))
	})

	t.Run("plain errors become internal", func(t *testing.T) {
		err := From(errors.New("boom"))
		assert.Equal(t, KindInternal, err.Kind())
		assert.EqualError(t, err, "internal error: boom")
	})
}

func TestEmptyMessageDefaultsToKind(t *testing.T) {
	err := New(KindConflict, "")
	assert.Equal(t, "conflict", err.Message())
}
