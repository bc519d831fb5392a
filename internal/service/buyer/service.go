package buyer

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
	"github.com/greenlane/marketdesk/internal/guard"
	"github.com/greenlane/marketdesk/internal/lifecycle"
	"github.com/greenlane/marketdesk/internal/messaging"
	repo "github.com/greenlane/marketdesk/internal/repository/buyer"
	userrepo "github.com/greenlane/marketdesk/internal/repository/user"
	"github.com/greenlane/marketdesk/internal/verification"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/greenlane/marketdesk/service/buyer")

// staffDirectory is the slice of the user repository the service needs for
// staff cascades.
type staffDirectory interface {
	Update(ctx context.Context, u *entity.User) error
	LinkedTo(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.User, error)
}

// Service encapsulates business logic around buyers.
type Service struct {
	repo      *repo.Repository
	users     staffDirectory
	guard     *guard.Guard
	recorder  audit.Recorder
	machine   *verification.Machine
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
	Users      *userrepo.Repository
	Guard      *guard.Guard
	Recorder   audit.Recorder
	Machine    *verification.Machine
	Conns      *database.Connections
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		users:     p.Users,
		guard:     p.Guard,
		recorder:  p.Recorder,
		machine:   p.Machine,
		tx:        p.Conns,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.LifecycleTopic,
		},
	}
}

// Create registers a restaurant buyer.
func (s *Service) Create(ctx context.Context, req dto.CreateBuyerRequest) (*entity.Buyer, error) {
	ctx, span := serviceTracer.Start(ctx, "BuyerService.Create", trace.WithAttributes(attribute.String("buyer.name", req.Name)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	field, err := s.repo.FindConflict(ctx, req.Email, req.Phone, req.LicenseNumber, 0)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("conflict probe failed", errorbank.WithCause(err))
	}
	if field != "" {
		return nil, errorbank.Conflict(fmt.Sprintf("buyer with this %s already exists", field),
			errorbank.WithDetail("field", field))
	}

	now := time.Now().UTC()
	b := &entity.Buyer{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		LicenseNumber: req.LicenseNumber,
		CuisineType:   req.CuisineType,
	}
	b.VerificationStatus = entity.VerificationPending
	b.IsActive = true
	b.CreatedBy = act.ID
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.repo.Create(ctx, b); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create buyer", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "buyer_created",
		EntityType:  entity.TypeBuyer,
		EntityID:    b.ID,
		Description: fmt.Sprintf("buyer %q created", b.Name),
		Severity:    entity.SeverityLow,
		Impact:      entity.ImpactMinor,
		CreatedAt:   now,
	})
	return b, nil
}

// Get retrieves a buyer by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Buyer, error) {
	ctx, span := serviceTracer.Start(ctx, "BuyerService.Get", trace.WithAttributes(attribute.Int64("buyer.id", id)))
	defer span.End()

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("buyer not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load buyer", errorbank.WithCause(err))
	}
	return b, nil
}

// List returns buyers matching the filter.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]entity.Buyer, error) {
	ctx, span := serviceTracer.Start(ctx, "BuyerService.List")
	defer span.End()

	buyers, err := s.repo.List(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list buyers", errorbank.WithCause(err))
	}
	return buyers, nil
}

// Update edits a buyer's fields. Deleted buyers are immutable.
func (s *Service) Update(ctx context.Context, id int64, req dto.UpdateBuyerRequest) (*entity.Buyer, error) {
	ctx, span := serviceTracer.Start(ctx, "BuyerService.Update", trace.WithAttributes(attribute.Int64("buyer.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.IsDeleted {
		return nil, errorbank.Conflict("cannot update deleted buyer")
	}

	email, phone, license := b.Email, b.Phone, b.LicenseNumber
	if req.Email != nil {
		email = *req.Email
	}
	if req.Phone != nil {
		phone = *req.Phone
	}
	if req.LicenseNumber != nil {
		license = *req.LicenseNumber
	}
	if email != b.Email || phone != b.Phone || license != b.LicenseNumber {
		field, err := s.repo.FindConflict(ctx, email, phone, license, id)
		if err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("conflict probe failed", errorbank.WithCause(err))
		}
		if field != "" {
			return nil, errorbank.Conflict(fmt.Sprintf("buyer with this %s already exists", field),
				errorbank.WithDetail("field", field))
		}
	}

	var changes []lifecycle.FieldChange
	if req.Name != nil {
		changes = lifecycle.Compare(changes, "name", b.Name, *req.Name)
		b.Name = *req.Name
	}
	if req.Email != nil {
		changes = lifecycle.Compare(changes, "email", b.Email, *req.Email)
		b.Email = *req.Email
	}
	if req.Phone != nil {
		changes = lifecycle.Compare(changes, "phone", b.Phone, *req.Phone)
		b.Phone = *req.Phone
	}
	if req.LicenseNumber != nil {
		changes = lifecycle.Compare(changes, "license_number", b.LicenseNumber, *req.LicenseNumber)
		b.LicenseNumber = *req.LicenseNumber
	}
	if req.CuisineType != nil {
		b.CuisineType = *req.CuisineType
	}

	now := time.Now().UTC()
	lifecycle.Touch(&b.AdminMeta, act.ID, now)

	if err := s.repo.Update(ctx, b); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update buyer", errorbank.WithCause(err))
	}

	if len(changes) > 0 {
		s.recorder.BestEffort(ctx, &entity.AuditLog{
			ActorID:     act.ID,
			ActorRole:   act.Role,
			Action:      "buyer_updated",
			EntityType:  entity.TypeBuyer,
			EntityID:    b.ID,
			Description: lifecycle.Describe(changes),
			Severity:    entity.SeverityLow,
			Impact:      entity.ImpactMinor,
			Metadata:    lifecycle.Metadata(changes),
			CreatedAt:   now,
		})
	}
	return b, nil
}

// ToggleVerification moves the buyer through the verification cycle.
func (s *Service) ToggleVerification(ctx context.Context, id int64, target entity.VerificationStatus, reason string) (*entity.Buyer, error) {
	ctx, span := serviceTracer.Start(ctx, "BuyerService.ToggleVerification", trace.WithAttributes(
		attribute.Int64("buyer.id", id),
		attribute.String("verification.target", string(target)),
	))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.machine.Transition(ctx, b, target, act, reason, func(txCtx context.Context) error {
		return s.repo.Update(txCtx, b)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return nil, err
	}
	return b, nil
}

// SoftDelete marks the buyer deleted and soft-deletes its staff accounts.
// Incomplete orders block it.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "BuyerService.SoftDelete", trace.WithAttributes(attribute.Int64("buyer.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if b.IsDeleted {
		return nil
	}

	res, err := s.guard.Check(ctx, entity.TypeBuyer, id, guard.OpDelete)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("dependency check failed", errorbank.WithCause(err))
	}
	if res.Blocking {
		return errorbank.DependencyBlocked("buyer has incomplete orders", res.Counts, res.Suggestions)
	}

	now := time.Now().UTC()
	lifecycle.MarkDeleted(&b.AdminMeta, act.ID, now)

	var staffTouched int
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, b); err != nil {
			return err
		}
		n, err := s.cascadeDelete(txCtx, b.ID, act.ID, now)
		staffTouched = n
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return errorbank.Internal("failed to delete buyer", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "buyer_deleted",
		EntityType:  entity.TypeBuyer,
		EntityID:    b.ID,
		Description: fmt.Sprintf("buyer %q soft-deleted", b.Name),
		Severity:    entity.SeverityHigh,
		Impact:      entity.ImpactSignificant,
		Metadata:    map[string]any{"staff_deleted": staffTouched},
		CreatedAt:   now,
	})
	s.publishLifecycle(ctx, b, "buyer_deleted")
	return nil
}

// Deactivate suspends the buyer and its staff accounts.
func (s *Service) Deactivate(ctx context.Context, id int64, reason string) error {
	ctx, span := serviceTracer.Start(ctx, "BuyerService.Deactivate", trace.WithAttributes(attribute.Int64("buyer.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if b.IsDeleted {
		return errorbank.Conflict("cannot deactivate deleted buyer")
	}
	if !b.IsActive {
		return nil
	}

	res, err := s.guard.Check(ctx, entity.TypeBuyer, id, guard.OpDeactivate)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("dependency check failed", errorbank.WithCause(err))
	}
	if res.Blocking {
		return errorbank.DependencyBlocked("buyer has incomplete orders", res.Counts, res.Suggestions)
	}

	now := time.Now().UTC()
	lifecycle.MarkDeactivated(&b.AdminMeta, act.ID, reason, now)

	var staffTouched int
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, b); err != nil {
			return err
		}
		n, err := s.cascadeStatus(txCtx, b.ID, false, act.ID, now)
		staffTouched = n
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deactivate failed")
		return errorbank.Internal("failed to deactivate buyer", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "buyer_deactivated",
		EntityType:  entity.TypeBuyer,
		EntityID:    b.ID,
		Description: fmt.Sprintf("buyer %q deactivated", b.Name),
		Reason:      reason,
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		Metadata:    map[string]any{"staff_deactivated": staffTouched},
		CreatedAt:   now,
	})
	s.publishLifecycle(ctx, b, "buyer_deactivated")
	return nil
}

// Reactivate restores a deactivated buyer and its non-deleted staff.
func (s *Service) Reactivate(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "BuyerService.Reactivate", trace.WithAttributes(attribute.Int64("buyer.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if b.IsDeleted {
		return errorbank.Conflict("cannot reactivate deleted buyer")
	}
	if b.IsActive {
		return nil
	}

	now := time.Now().UTC()
	lifecycle.MarkReactivated(&b.AdminMeta, act.ID, now)

	var staffTouched int
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, b); err != nil {
			return err
		}
		n, err := s.cascadeStatus(txCtx, b.ID, true, act.ID, now)
		staffTouched = n
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reactivate failed")
		return errorbank.Internal("failed to reactivate buyer", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "buyer_reactivated",
		EntityType:  entity.TypeBuyer,
		EntityID:    b.ID,
		Description: fmt.Sprintf("buyer %q reactivated", b.Name),
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		Metadata:    map[string]any{"staff_reactivated": staffTouched},
		CreatedAt:   now,
	})
	s.publishLifecycle(ctx, b, "buyer_reactivated")
	return nil
}

// cascadeDelete soft-deletes all of the buyer's remaining staff accounts
// and reports how many were touched.
func (s *Service) cascadeDelete(ctx context.Context, buyerID int64, actorID int64, now time.Time) (int, error) {
	staff, err := s.users.LinkedTo(ctx, entity.TypeBuyer, buyerID)
	if err != nil {
		return 0, err
	}
	touched := 0
	for _, u := range staff {
		if u.IsDeleted {
			continue
		}
		lifecycle.MarkDeleted(&u.AdminMeta, actorID, now)
		if err := s.users.Update(ctx, u); err != nil {
			return touched, err
		}
		touched++
	}
	return touched, nil
}

// cascadeStatus flips the active flag on all of the buyer's non-deleted
// staff accounts and reports how many were touched.
func (s *Service) cascadeStatus(ctx context.Context, buyerID int64, active bool, actorID int64, now time.Time) (int, error) {
	staff, err := s.users.LinkedTo(ctx, entity.TypeBuyer, buyerID)
	if err != nil {
		return 0, err
	}
	touched := 0
	for _, u := range staff {
		if u.IsActive == active {
			continue
		}
		if active {
			lifecycle.MarkReactivated(&u.AdminMeta, actorID, now)
		} else {
			lifecycle.MarkDeactivated(&u.AdminMeta, actorID, "", now)
		}
		if err := s.users.Update(ctx, u); err != nil {
			return touched, err
		}
		touched++
	}
	return touched, nil
}

// LifecycleEvent is emitted when a buyer changes lifecycle state.
type LifecycleEvent struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

func (s *Service) publishLifecycle(ctx context.Context, b *entity.Buyer, action string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(LifecycleEvent{ID: b.ID, Name: b.Name, Action: action})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal buyer lifecycle event", zap.Error(err))
		}
		return
	}
	key := []byte(fmt.Sprintf("buyer-%d", b.ID))
	if err := s.publisher.Publish(ctx, s.messaging.topic, key, payload); err != nil && s.logger != nil {
		s.logger.Error("publish buyer lifecycle event", zap.Error(err))
	}
}
