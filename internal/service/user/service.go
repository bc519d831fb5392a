package user

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
	repo "github.com/greenlane/marketdesk/internal/repository/user"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/greenlane/marketdesk/service/user")

// Service encapsulates business logic around user accounts. Staff accounts
// are also mutated as cascades of vendor/buyer lifecycle operations; those
// paths live in the owning services.
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

// Create registers an account. Staff roles must reference exactly the
// entity their role implies.
func (s *Service) Create(ctx context.Context, req dto.CreateUserRequest) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.Create", trace.WithAttributes(attribute.String("user.role", req.Role)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	role := entity.UserRole(req.Role)
	if !role.Valid() {
		return nil, errorbank.BadRequest(fmt.Sprintf("invalid role %q", req.Role))
	}
	switch role {
	case entity.RoleVendorStaff:
		if req.VendorID == nil || req.BuyerID != nil {
			return nil, errorbank.BadRequest("vendor_staff must reference a vendor and nothing else")
		}
	case entity.RoleBuyerStaff:
		if req.BuyerID == nil || req.VendorID != nil {
			return nil, errorbank.BadRequest("buyer_staff must reference a buyer and nothing else")
		}
	case entity.RoleAdmin:
		if req.VendorID != nil || req.BuyerID != nil {
			return nil, errorbank.BadRequest("admin accounts are not linked to a vendor or buyer")
		}
	}

	field, err := s.repo.FindConflict(ctx, req.Email, 0)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("conflict probe failed", errorbank.WithCause(err))
	}
	if field != "" {
		return nil, errorbank.Conflict("user with this email already exists",
			errorbank.WithDetail("field", field))
	}

	now := time.Now().UTC()
	u := &entity.User{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     role,
		VendorID: req.VendorID,
		BuyerID:  req.BuyerID,
	}
	u.IsActive = true
	u.CreatedBy = act.ID
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := s.repo.Create(ctx, u); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create user", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "user_created",
		EntityType:  entity.TypeUser,
		EntityID:    u.ID,
		Description: fmt.Sprintf("user %q created with role %s", u.Name, u.Role),
		Severity:    entity.SeverityLow,
		Impact:      entity.ImpactMinor,
		CreatedAt:   now,
	})
	return u, nil
}

// Get retrieves a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.Get", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("user not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}
	return u, nil
}

// List returns users matching the filter.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.List")
	defer span.End()

	users, err := s.repo.List(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list users", errorbank.WithCause(err))
	}
	return users, nil
}

// Update edits an account's contact fields. Role and entity links are
// fixed at creation.
func (s *Service) Update(ctx context.Context, id int64, req dto.UpdateUserRequest) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.Update", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted {
		return nil, errorbank.Conflict("cannot update deleted user")
	}

	if req.Email != nil && *req.Email != u.Email {
		field, err := s.repo.FindConflict(ctx, *req.Email, id)
		if err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("conflict probe failed", errorbank.WithCause(err))
		}
		if field != "" {
			return nil, errorbank.Conflict("user with this email already exists",
				errorbank.WithDetail("field", field))
		}
	}

	var changes []lifecycle.FieldChange
	if req.Name != nil {
		changes = lifecycle.Compare(changes, "name", u.Name, *req.Name)
		u.Name = *req.Name
	}
	if req.Email != nil {
		changes = lifecycle.Compare(changes, "email", u.Email, *req.Email)
		u.Email = *req.Email
	}
	if req.Phone != nil {
		changes = lifecycle.Compare(changes, "phone", u.Phone, *req.Phone)
		u.Phone = *req.Phone
	}

	now := time.Now().UTC()
	lifecycle.Touch(&u.AdminMeta, act.ID, now)

	if err := s.repo.Update(ctx, u); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update user", errorbank.WithCause(err))
	}

	if len(changes) > 0 {
		s.recorder.BestEffort(ctx, &entity.AuditLog{
			ActorID:     act.ID,
			ActorRole:   act.Role,
			Action:      "user_updated",
			EntityType:  entity.TypeUser,
			EntityID:    u.ID,
			Description: lifecycle.Describe(changes),
			Severity:    entity.SeverityLow,
			Impact:      entity.ImpactMinor,
			Metadata:    lifecycle.Metadata(changes),
			CreatedAt:   now,
		})
	}
	return u, nil
}

// SoftDelete marks the user deleted. Open orders the user placed or
// approved block it.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "UserService.SoftDelete", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.IsDeleted {
		return nil
	}

	res, err := s.guard.Check(ctx, entity.TypeUser, id, guard.OpDelete)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("dependency check failed", errorbank.WithCause(err))
	}
	if res.Blocking {
		return errorbank.DependencyBlocked("user is involved in open orders", res.Counts, res.Suggestions)
	}

	now := time.Now().UTC()
	lifecycle.MarkDeleted(&u.AdminMeta, act.ID, now)
	if err := s.repo.Update(ctx, u); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete user", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "user_deleted",
		EntityType:  entity.TypeUser,
		EntityID:    u.ID,
		Description: fmt.Sprintf("user %q soft-deleted", u.Name),
		Severity:    entity.SeverityHigh,
		Impact:      entity.ImpactSignificant,
		CreatedAt:   now,
	})
	return nil
}

// Deactivate suspends the account.
func (s *Service) Deactivate(ctx context.Context, id int64, reason string) error {
	ctx, span := serviceTracer.Start(ctx, "UserService.Deactivate", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.IsDeleted {
		return errorbank.Conflict("cannot deactivate deleted user")
	}
	if !u.IsActive {
		return nil
	}

	now := time.Now().UTC()
	lifecycle.MarkDeactivated(&u.AdminMeta, act.ID, reason, now)
	if err := s.repo.Update(ctx, u); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to deactivate user", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "user_deactivated",
		EntityType:  entity.TypeUser,
		EntityID:    u.ID,
		Description: fmt.Sprintf("user %q deactivated", u.Name),
		Reason:      reason,
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		CreatedAt:   now,
	})
	return nil
}

// Reactivate restores a deactivated account. Soft-deleted accounts stay
// deleted.
func (s *Service) Reactivate(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "UserService.Reactivate", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.IsDeleted {
		return errorbank.Conflict("cannot reactivate deleted user")
	}
	if u.IsActive {
		return nil
	}

	now := time.Now().UTC()
	lifecycle.MarkReactivated(&u.AdminMeta, act.ID, now)
	if err := s.repo.Update(ctx, u); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to reactivate user", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "user_reactivated",
		EntityType:  entity.TypeUser,
		EntityID:    u.ID,
		Description: fmt.Sprintf("user %q reactivated", u.Name),
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		CreatedAt:   now,
	})
	return nil
}
