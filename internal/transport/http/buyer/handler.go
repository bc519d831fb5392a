package buyer

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
	repo "github.com/greenlane/marketdesk/internal/repository/buyer"
	service "github.com/greenlane/marketdesk/internal/service/buyer"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/greenlane/marketdesk/transport/http/buyer")

// Handler exposes buyer endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a buyer Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/buyers")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.softDelete)
	g.POST("/:id/deactivate", h.deactivate)
	g.POST("/:id/reactivate", h.reactivate)
	g.PUT("/:id/verification", h.verification)
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

	var payload dto.CreateBuyerRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "buyers.create")
	defer span.End()

	buyer, err := h.svc.Create(ctx, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(buyer).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	f := repo.Filter{Search: c.QueryParam("search")}
	if v := c.QueryParam("verification_status"); v != "" {
		status := entity.VerificationStatus(v)
		if !status.Valid() {
			return b.WithError(errorbank.BadRequest("invalid verification_status filter")).Build()
		}
		f.VerificationStatus = &status
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

	ctx, span := httpTracer.Start(c.Request().Context(), "buyers.list")
	defer span.End()

	buyers, err := h.svc.List(ctx, f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(buyers).WithMeta("count", len(buyers)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "buyers.getByID", trace.WithAttributes(attribute.Int64("buyer.id", id)))
	defer span.End()

	buyer, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(buyer).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateBuyerRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "buyers.update", trace.WithAttributes(attribute.Int64("buyer.id", id)))
	defer span.End()

	buyer, err := h.svc.Update(ctx, id, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(buyer).Build()
}

func (h *Handler) softDelete(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "buyers.delete", trace.WithAttributes(attribute.Int64("buyer.id", id)))
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

	ctx, span := httpTracer.Start(c.Request().Context(), "buyers.deactivate", trace.WithAttributes(attribute.Int64("buyer.id", id)))
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

	ctx, span := httpTracer.Start(c.Request().Context(), "buyers.reactivate", trace.WithAttributes(attribute.Int64("buyer.id", id)))
	defer span.End()

	if err := h.svc.Reactivate(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}

func (h *Handler) verification(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.VerificationRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "buyers.verification", trace.WithAttributes(
		attribute.Int64("buyer.id", id),
		attribute.String("verification.target", payload.Status),
	))
	defer span.End()

	buyer, err := h.svc.ToggleVerification(ctx, id, entity.VerificationStatus(payload.Status), payload.Reason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(buyer).Build()
}
