package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenlane/marketdesk/pkg/errorbank"
)

func newTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestBuildSuccess(t *testing.T) {
	c, rec := newTestContext()

	err := New(c).
		WithData(map[string]string{"name": "Riverside"}).
		WithMeta("count", 1).
		Build()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Riverside", body["data"].(map[string]any)["name"])
	assert.Equal(t, float64(1), body["meta"].(map[string]any)["count"])
}

func TestBuildCreatedStatus(t *testing.T) {
	c, rec := newTestContext()

	err := New(c).WithStatus(http.StatusCreated).WithData(map[string]int{"id": 7}).Build()
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestBuildErrorStatusFromKind(t *testing.T) {
	c, rec := newTestContext()

	appErr := errorbank.NotFound("market not found", errorbank.WithDetail("id", 4))
	err := New(c).WithError(appErr).Build()
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "not_found", errBody["kind"])
	assert.Equal(t, "market not found", errBody["message"])
	assert.Equal(t, float64(4), errBody["details"].(map[string]any)["id"])
}

func TestBuildErrorWrapsPlainErrors(t *testing.T) {
	c, rec := newTestContext()

	err := New(c).WithError(errors.New("boom")).Build()
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "internal", body["error"].(map[string]any)["kind"])
}

func TestBuildErrorExplicitStatusWins(t *testing.T) {
	c, rec := newTestContext()

	err := New(c).
		WithStatus(http.StatusForbidden).
		WithError(errorbank.Conflict("ignored kind status")).
		Build()
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
