package market

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenlane/marketdesk/internal/dto"
	"github.com/greenlane/marketdesk/internal/presentation/http/response"
	repo "github.com/greenlane/marketdesk/internal/repository/market"
	service "github.com/greenlane/marketdesk/internal/service/market"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/greenlane/marketdesk/transport/http/market")

// Handler exposes market endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a market Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/markets")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.softDelete)
	g.POST("/:id/deactivate", h.deactivate)
	g.POST("/:id/reactivate", h.reactivate)
}

func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id")
	}
	return id, nil
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateMarketRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "markets.create")
	defer span.End()

	m, err := h.svc.Create(ctx, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(m).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	f := repo.Filter{
		Search: c.QueryParam("search"),
	}
	if v := c.QueryParam("city"); v != "" {
		f.City = &v
	}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid active filter")).Build()
		}
		f.Active = &active
	}
	f.IncludeDeleted, _ = strconv.ParseBool(c.QueryParam("include_deleted"))
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	f.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	ctx, span := httpTracer.Start(c.Request().Context(), "markets.list")
	defer span.End()

	markets, err := h.svc.List(ctx, f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(markets).WithMeta("count", len(markets)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "markets.getByID", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	m, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(m).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateMarketRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "markets.update", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	m, err := h.svc.Update(ctx, id, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(m).Build()
}

func (h *Handler) softDelete(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "markets.delete", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	if err := h.svc.SoftDelete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) deactivate(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.DeactivateRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "markets.deactivate", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	if err := h.svc.Deactivate(ctx, id, payload.Reason); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}

func (h *Handler) reactivate(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "markets.reactivate", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	if err := h.svc.Reactivate(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}
