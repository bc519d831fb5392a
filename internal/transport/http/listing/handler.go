package listing

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
	repo "github.com/greenlane/marketdesk/internal/repository/listing"
	service "github.com/greenlane/marketdesk/internal/service/listing"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/greenlane/marketdesk/transport/http/listing")

// Handler exposes listing endpoints over HTTP, including moderation.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a listing Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/listings")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.softDelete)
	g.PUT("/:id/status", h.setStatus)
	g.PUT("/:id/featured", h.setFeatured)
	g.POST("/:id/flag", h.flag)
	g.DELETE("/:id/flag", h.unflag)
	g.POST("/bulk", h.bulk)
}

func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id")
	}
	return id, nil
}

func queryInt64(c echo.Context, name string) (*int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, errorbank.BadRequest("invalid " + name + " filter")
	}
	return &id, nil
}

func queryBool(c echo.Context, name string) (*bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return nil, errorbank.BadRequest("invalid " + name + " filter")
	}
	return &parsed, nil
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateListingRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.create")
	defer span.End()

	l, err := h.svc.Create(ctx, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(l).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var f repo.Filter
	var err error
	if f.VendorID, err = queryInt64(c, "vendor_id"); err != nil {
		return b.WithError(err).Build()
	}
	if f.ProductID, err = queryInt64(c, "product_id"); err != nil {
		return b.WithError(err).Build()
	}
	if f.MarketID, err = queryInt64(c, "market_id"); err != nil {
		return b.WithError(err).Build()
	}
	if v := c.QueryParam("status"); v != "" {
		status := entity.ListingStatus(v)
		if !status.Valid() {
			return b.WithError(errorbank.BadRequest("invalid status filter")).Build()
		}
		f.Status = &status
	}
	if f.Featured, err = queryBool(c, "featured"); err != nil {
		return b.WithError(err).Build()
	}
	if f.Flagged, err = queryBool(c, "flagged"); err != nil {
		return b.WithError(err).Build()
	}
	if f.Active, err = queryBool(c, "active"); err != nil {
		return b.WithError(err).Build()
	}
	f.IncludeDeleted, _ = strconv.ParseBool(c.QueryParam("include_deleted"))
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	f.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.list")
	defer span.End()

	listings, err := h.svc.List(ctx, f)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(listings).WithMeta("count", len(listings)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.getByID", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	l, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(l).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateListingRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.update", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	l, err := h.svc.Update(ctx, id, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(l).Build()
}

func (h *Handler) softDelete(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.delete", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	if err := h.svc.SoftDelete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) setStatus(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.ListingStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.setStatus", trace.WithAttributes(
		attribute.Int64("listing.id", id),
		attribute.String("listing.status", payload.Status),
	))
	defer span.End()

	l, err := h.svc.SetStatus(ctx, id, entity.ListingStatus(payload.Status), payload.Notes)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(l).Build()
}

func (h *Handler) setFeatured(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.FeatureListingRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.setFeatured", trace.WithAttributes(
		attribute.Int64("listing.id", id),
		attribute.Bool("listing.featured", payload.Featured),
	))
	defer span.End()

	l, err := h.svc.ToggleFeatured(ctx, id, payload.Featured)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(l).Build()
}

func (h *Handler) flag(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.FlagListingRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.flag", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	l, err := h.svc.Flag(ctx, id, payload.Reason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(l).Build()
}

func (h *Handler) unflag(c echo.Context) error {
	b := response.New(c)

	id, err := paramID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.unflag", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	l, err := h.svc.Unflag(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(l).Build()
}

func (h *Handler) bulk(c echo.Context) error {
	b := response.New(c)

	var payload dto.BulkModerationRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := c.Validate(&payload); err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "listings.bulk", trace.WithAttributes(
		attribute.String("bulk.action", payload.Action),
		attribute.Int("bulk.requested", len(payload.ListingIDs)),
	))
	defer span.End()

	result, err := h.svc.Bulk(ctx, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(result).Build()
}
