package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenlane/marketdesk/internal/dto"
	"github.com/greenlane/marketdesk/internal/entity"
	"github.com/greenlane/marketdesk/internal/presentation/http/response"
	repo "github.com/greenlane/marketdesk/internal/repository/order"
	service "github.com/greenlane/marketdesk/internal/service/order"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/greenlane/marketdesk/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PUT("/:id/status", h.updateStatus)
	g.PUT("/:id/charges", h.updateCharges)
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

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int64("order.buyer_id", payload.BuyerID),
		attribute.Int64("order.vendor_id", payload.VendorID),
	))
	defer span.End()

	o, err := h.svc.Create(ctx, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(o).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var f repo.Filter
	if v := c.QueryParam("buyer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid buyer_id filter")).Build()
		}
		f.BuyerID = &id
	}
	if v := c.QueryParam("vendor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid vendor_id filter")).Build()
		}
		f.VendorID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		status := entity.OrderStatus(v)
		if !status.Valid() {
			return b.WithError(errorbank.BadRequest("invalid status filter")).Build()
		}
		f.Status = &status
	}
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	f.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(orders).WithMeta("count", len(orders)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	o, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(o).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.OrderStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.target_status", payload.Status),
	))
	defer span.End()

	o, err := h.svc.UpdateStatus(ctx, id, entity.OrderStatus(payload.Status))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(o).Build()
}

func (h *Handler) updateCharges(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.OrderChargesRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateCharges", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	o, err := h.svc.UpdateCharges(ctx, id, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(o).Build()
}
