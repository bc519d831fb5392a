package product

import (
	"context"
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
	"github.com/greenlane/marketdesk/internal/dto"
	"github.com/greenlane/marketdesk/internal/entity"
	"github.com/greenlane/marketdesk/internal/guard"
	"github.com/greenlane/marketdesk/internal/lifecycle"
	repo "github.com/greenlane/marketdesk/internal/repository/product"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/greenlane/marketdesk/service/product")

// Service encapsulates business logic around catalog products.
type Service struct {
	repo     *repo.Repository
	guard    *guard.Guard
	recorder audit.Recorder
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Guard      *guard.Guard
	Recorder   audit.Recorder
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:     p.Repository,
		guard:    p.Guard,
		recorder: p.Recorder,
		logger:   p.Logger,
	}
}

// Create adds a catalog product.
func (s *Service) Create(ctx context.Context, req dto.CreateProductRequest) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Create", trace.WithAttributes(attribute.String("product.name", req.Name)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	now := time.Now().UTC()
	p := &entity.Product{
		Name:        req.Name,
		Category:    req.Category,
		Unit:        req.Unit,
		Description: req.Description,
	}
	p.IsActive = true
	p.CreatedBy = act.ID
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.repo.Create(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create product", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "product_created",
		EntityType:  entity.TypeProduct,
		EntityID:    p.ID,
		Description: fmt.Sprintf("product %q created", p.Name),
		Severity:    entity.SeverityLow,
		Impact:      entity.ImpactMinor,
		CreatedAt:   now,
	})
	return p, nil
}

// Get retrieves a product by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Get", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("product not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load product", errorbank.WithCause(err))
	}
	return p, nil
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.List")
	defer span.End()

	products, err := s.repo.List(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list products", errorbank.WithCause(err))
	}
	return products, nil
}

// Update edits a product. Deleted products are immutable.
func (s *Service) Update(ctx context.Context, id int64, req dto.UpdateProductRequest) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Update", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, errorbank.Conflict("cannot update deleted product")
	}

	var changes []lifecycle.FieldChange
	if req.Name != nil {
		changes = lifecycle.Compare(changes, "name", p.Name, *req.Name)
		p.Name = *req.Name
	}
	if req.Category != nil {
		changes = lifecycle.Compare(changes, "category", p.Category, *req.Category)
		p.Category = *req.Category
	}
	if req.Unit != nil {
		changes = lifecycle.Compare(changes, "unit", p.Unit, *req.Unit)
		p.Unit = *req.Unit
	}
	if req.Description != nil {
		p.Description = *req.Description
	}

	now := time.Now().UTC()
	lifecycle.Touch(&p.AdminMeta, act.ID, now)

	if err := s.repo.Update(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update product", errorbank.WithCause(err))
	}

	if len(changes) > 0 {
		s.recorder.BestEffort(ctx, &entity.AuditLog{
			ActorID:     act.ID,
			ActorRole:   act.Role,
			Action:      "product_updated",
			EntityType:  entity.TypeProduct,
			EntityID:    p.ID,
			Description: lifecycle.Describe(changes),
			Severity:    entity.SeverityLow,
			Impact:      entity.ImpactMinor,
			Metadata:    lifecycle.Metadata(changes),
			CreatedAt:   now,
		})
	}
	return p, nil
}

// SoftDelete marks the product deleted. Listings still offering it block
// the operation.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "ProductService.SoftDelete", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsDeleted {
		return nil
	}

	res, err := s.guard.Check(ctx, entity.TypeProduct, id, guard.OpDelete)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("dependency check failed", errorbank.WithCause(err))
	}
	if res.Blocking {
		return errorbank.DependencyBlocked("product is still offered by listings", res.Counts, res.Suggestions)
	}

	now := time.Now().UTC()
	lifecycle.MarkDeleted(&p.AdminMeta, act.ID, now)
	if err := s.repo.Update(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete product", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "product_deleted",
		EntityType:  entity.TypeProduct,
		EntityID:    p.ID,
		Description: fmt.Sprintf("product %q soft-deleted", p.Name),
		Severity:    entity.SeverityHigh,
		Impact:      entity.ImpactSignificant,
		CreatedAt:   now,
	})
	return nil
}

// Deactivate hides the product from new listings without deleting it.
func (s *Service) Deactivate(ctx context.Context, id int64, reason string) error {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Deactivate", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsDeleted {
		return errorbank.Conflict("cannot deactivate deleted product")
	}
	if !p.IsActive {
		return nil
	}

	now := time.Now().UTC()
	lifecycle.MarkDeactivated(&p.AdminMeta, act.ID, reason, now)
	if err := s.repo.Update(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to deactivate product", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "product_deactivated",
		EntityType:  entity.TypeProduct,
		EntityID:    p.ID,
		Description: fmt.Sprintf("product %q deactivated", p.Name),
		Reason:      reason,
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		CreatedAt:   now,
	})
	return nil
}

// Reactivate restores a deactivated product.
func (s *Service) Reactivate(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "ProductService.Reactivate", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsDeleted {
		return errorbank.Conflict("cannot reactivate deleted product")
	}
	if p.IsActive {
		return nil
	}

	now := time.Now().UTC()
	lifecycle.MarkReactivated(&p.AdminMeta, act.ID, now)
	if err := s.repo.Update(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to reactivate product", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "product_reactivated",
		EntityType:  entity.TypeProduct,
		EntityID:    p.ID,
		Description: fmt.Sprintf("product %q reactivated", p.Name),
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		CreatedAt:   now,
	})
	return nil
}
