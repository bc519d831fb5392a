package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/actor"
	"github.com/greenlane/marketdesk/internal/audit"
	"github.com/greenlane/marketdesk/internal/config"
	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/dto"
	"github.com/greenlane/marketdesk/internal/entity"
	"github.com/greenlane/marketdesk/internal/messaging"
	buyerrepo "github.com/greenlane/marketdesk/internal/repository/buyer"
	repo "github.com/greenlane/marketdesk/internal/repository/order"
	vendorrepo "github.com/greenlane/marketdesk/internal/repository/vendor"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/greenlane/marketdesk/service/order")

// Service encapsulates business logic around orders.
type Service struct {
	repo      *repo.Repository
	buyers    *buyerrepo.Repository
	vendors   *vendorrepo.Repository
	recorder  audit.Recorder
	tx        database.TxRunner
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Buyers     *buyerrepo.Repository
	Vendors    *vendorrepo.Repository
	Recorder   audit.Recorder
	Conns      *database.Connections
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		buyers:    p.Buyers,
		vendors:   p.Vendors,
		recorder:  p.Recorder,
		tx:        p.Conns,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.LifecycleTopic,
		},
	}
}

// Create places an order. The order number is assigned exactly once inside
// the creating transaction and never changes afterwards.
func (s *Service) Create(ctx context.Context, req dto.CreateOrderRequest) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.Int64("order.buyer_id", req.BuyerID),
		attribute.Int64("order.vendor_id", req.VendorID),
	))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}
	if len(req.Items) == 0 {
		return nil, errorbank.BadRequest("order needs at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, errorbank.BadRequest("item quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return nil, errorbank.BadRequest("item unit price must not be negative")
		}
	}
	if req.DeliveryFee.IsNegative() || req.Tax.IsNegative() || req.Discount.IsNegative() {
		return nil, errorbank.BadRequest("charges must not be negative")
	}

	b, err := s.buyers.GetByID(ctx, req.BuyerID)
	if err != nil {
		if errors.Is(err, buyerrepo.ErrNotFound) {
			return nil, errorbank.NotFound("buyer not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load buyer", errorbank.WithCause(err))
	}
	if b.IsDeleted || !b.IsActive {
		return nil, errorbank.Conflict("buyer is not active")
	}
	v, err := s.vendors.GetByID(ctx, req.VendorID)
	if err != nil {
		if errors.Is(err, vendorrepo.ErrNotFound) {
			return nil, errorbank.NotFound("vendor not found")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load vendor", errorbank.WithCause(err))
	}
	if v.IsDeleted || !v.IsActive {
		return nil, errorbank.Conflict("vendor is not active")
	}

	now := time.Now().UTC()
	o := &entity.Order{
		BuyerID:     req.BuyerID,
		VendorID:    req.VendorID,
		Status:      entity.OrderPendingApproval,
		DeliveryFee: req.DeliveryFee,
		Tax:         req.Tax,
		Discount:    req.Discount,
		PlacedBy:    act.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, item := range req.Items {
		o.Items = append(o.Items, &entity.OrderItem{
			ListingID: item.ListingID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	o.Recalculate()

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		seq, err := s.repo.NextSequence(txCtx, now)
		if err != nil {
			return err
		}
		o.OrderNumber = fmt.Sprintf("ORD-%s-%06d", now.Format("20060102"), seq)
		return s.repo.Create(txCtx, o)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "order_created",
		EntityType:  entity.TypeOrder,
		EntityID:    o.ID,
		Description: fmt.Sprintf("order %s created for buyer %d from vendor %d", o.OrderNumber, o.BuyerID, o.VendorID),
		Severity:    entity.SeverityLow,
		Impact:      entity.ImpactMinor,
		Metadata: map[string]any{
			"order_number": o.OrderNumber,
			"total_amount": o.TotalAmount.String(),
			"items":        len(o.Items),
		},
		CreatedAt: now,
	})
	s.publishEvent(ctx, o, "order_created")
	return o, nil
}

// Get retrieves an order with its items.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return o, nil
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.repo.List(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// UpdateStatus advances the order. Backward moves are rejected;
// cancelled/refunded are reachable from any non-terminal state and absorb.
func (s *Service) UpdateStatus(ctx context.Context, id int64, target entity.OrderStatus) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}
	if !target.Valid() {
		return nil, errorbank.BadRequest(fmt.Sprintf("invalid order status %q", target))
	}

	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := o.Status
	if old == target {
		return o, nil
	}
	if !old.CanTransitionTo(target) {
		return nil, errorbank.Conflict(fmt.Sprintf("order cannot move from %s to %s", old, target),
			errorbank.WithDetail("current_status", string(old)))
	}

	now := time.Now().UTC()
	o.Status = target
	o.UpdatedAt = now
	if target == entity.OrderConfirmed && o.ApprovedBy == nil {
		o.ApprovedBy = &act.ID
	}

	if err := s.repo.Update(ctx, o); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "order_status_changed",
		EntityType:  entity.TypeOrder,
		EntityID:    o.ID,
		Description: fmt.Sprintf("order %s moved from %s to %s", o.OrderNumber, old, target),
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		Metadata: map[string]any{
			"old_status": string(old),
			"new_status": string(target),
		},
		CreatedAt: now,
	})
	s.publishEvent(ctx, o, "order_status_changed")
	return o, nil
}

// UpdateCharges adjusts delivery fee, tax, or discount and re-derives the
// total. Terminal orders are immutable.
func (s *Service) UpdateCharges(ctx context.Context, id int64, req dto.OrderChargesRequest) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateCharges", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, errorbank.Conflict("cannot adjust charges on a completed order")
	}

	oldTotal := o.TotalAmount
	if req.DeliveryFee != nil {
		if req.DeliveryFee.IsNegative() {
			return nil, errorbank.BadRequest("delivery fee must not be negative")
		}
		o.DeliveryFee = *req.DeliveryFee
	}
	if req.Tax != nil {
		if req.Tax.IsNegative() {
			return nil, errorbank.BadRequest("tax must not be negative")
		}
		o.Tax = *req.Tax
	}
	if req.Discount != nil {
		if req.Discount.IsNegative() {
			return nil, errorbank.BadRequest("discount must not be negative")
		}
		o.Discount = *req.Discount
	}

	now := time.Now().UTC()
	o.Recalculate()
	o.UpdatedAt = now

	if err := s.repo.Update(ctx, o); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "order_charges_updated",
		EntityType:  entity.TypeOrder,
		EntityID:    o.ID,
		Description: fmt.Sprintf("order %s total changed from %s to %s", o.OrderNumber, oldTotal, o.TotalAmount),
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		Metadata: map[string]any{
			"old_total": oldTotal.String(),
			"new_total": o.TotalAmount.String(),
		},
		CreatedAt: now,
	})
	return o, nil
}

// Event is emitted when an order is created or changes status.
type Event struct {
	ID          int64  `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Action      string `json:"action"`
	TotalAmount string `json:"total_amount"`
}

func (s *Service) publishEvent(ctx context.Context, o *entity.Order, action string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(Event{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Action:      action,
		TotalAmount: o.TotalAmount.String(),
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal order event", zap.Error(err))
		}
		return
	}
	key := []byte(fmt.Sprintf("order-%d", o.ID))
	if err := s.publisher.Publish(ctx, s.messaging.topic, key, payload); err != nil && s.logger != nil {
		s.logger.Error("publish order event", zap.Error(err))
	}
}
