package market

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
	"github.com/greenlane/marketdesk/internal/cache"
	"github.com/greenlane/marketdesk/internal/config"
	"github.com/greenlane/marketdesk/internal/dto"
	"github.com/greenlane/marketdesk/internal/entity"
	"github.com/greenlane/marketdesk/internal/guard"
	"github.com/greenlane/marketdesk/internal/lifecycle"
	"github.com/greenlane/marketdesk/internal/messaging"
	repo "github.com/greenlane/marketdesk/internal/repository/market"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/greenlane/marketdesk/service/market")

// Service encapsulates business logic around markets.
type Service struct {
	repo      *repo.Repository
	guard     *guard.Guard
	recorder  audit.Recorder
	cache     cache.Store
	cacheTTL  time.Duration
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
	Guard      *guard.Guard
	Recorder   audit.Recorder
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		guard:     p.Guard,
		recorder:  p.Recorder,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.LifecycleTopic,
		},
	}
}

// Create registers a new market.
func (s *Service) Create(ctx context.Context, req dto.CreateMarketRequest) (*entity.Market, error) {
	ctx, span := serviceTracer.Start(ctx, "MarketService.Create", trace.WithAttributes(attribute.String("market.name", req.Name)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	now := time.Now().UTC()
	m := &entity.Market{
		Name:        req.Name,
		City:        req.City,
		Address:     req.Address,
		Description: req.Description,
	}
	m.IsActive = true
	m.CreatedBy = act.ID
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := s.repo.Create(ctx, m); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create market", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "market_created",
		EntityType:  entity.TypeMarket,
		EntityID:    m.ID,
		Description: fmt.Sprintf("market %q created", m.Name),
		Severity:    entity.SeverityLow,
		Impact:      entity.ImpactMinor,
		CreatedAt:   now,
	})

	return m, nil
}

// Get retrieves a market by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Market, error) {
	ctx, span := serviceTracer.Start(ctx, "MarketService.Get", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	if m, err := s.getFromCache(ctx, id); err == nil {
		return m, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("markets cache read failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("market not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load market", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, m); err != nil && s.logger != nil {
		s.logger.Warn("markets cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return m, nil
}

// List returns markets matching the filter.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]entity.Market, error) {
	ctx, span := serviceTracer.Start(ctx, "MarketService.List")
	defer span.End()

	markets, err := s.repo.List(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list markets", errorbank.WithCause(err))
	}
	return markets, nil
}

// load fetches the authoritative row, bypassing the cache: mutation paths
// must never start from a stale copy.
func (s *Service) load(ctx context.Context, id int64) (*entity.Market, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("market not found")
		}
		return nil, errorbank.Internal("failed to load market", errorbank.WithCause(err))
	}
	return m, nil
}

// Update edits a market's descriptive fields. Deleted markets are
// immutable.
func (s *Service) Update(ctx context.Context, id int64, req dto.UpdateMarketRequest) (*entity.Market, error) {
	ctx, span := serviceTracer.Start(ctx, "MarketService.Update", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, errorbank.Conflict("cannot update deleted market")
	}

	var changes []lifecycle.FieldChange
	if req.Name != nil {
		changes = lifecycle.Compare(changes, "name", m.Name, *req.Name)
		m.Name = *req.Name
	}
	if req.City != nil {
		changes = lifecycle.Compare(changes, "city", m.City, *req.City)
		m.City = *req.City
	}
	if req.Address != nil {
		changes = lifecycle.Compare(changes, "address", m.Address, *req.Address)
		m.Address = *req.Address
	}
	if req.Description != nil {
		m.Description = *req.Description
	}

	now := time.Now().UTC()
	lifecycle.Touch(&m.AdminMeta, act.ID, now)

	if err := s.repo.Update(ctx, m); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update market", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)

	if len(changes) > 0 {
		s.recorder.BestEffort(ctx, &entity.AuditLog{
			ActorID:     act.ID,
			ActorRole:   act.Role,
			Action:      "market_updated",
			EntityType:  entity.TypeMarket,
			EntityID:    m.ID,
			Description: lifecycle.Describe(changes),
			Severity:    entity.SeverityLow,
			Impact:      entity.ImpactMinor,
			Metadata:    lifecycle.Metadata(changes),
			CreatedAt:   now,
		})
	}
	return m, nil
}

// SoftDelete marks the market deleted. Deleting an already-deleted market
// is a no-op; live vendors block the operation.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "MarketService.SoftDelete", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if m.IsDeleted {
		return nil
	}

	res, err := s.guard.Check(ctx, entity.TypeMarket, id, guard.OpDelete)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("dependency check failed", errorbank.WithCause(err))
	}
	if res.Blocking {
		return errorbank.DependencyBlocked("market has vendors operating in it", res.Counts, res.Suggestions)
	}

	now := time.Now().UTC()
	lifecycle.MarkDeleted(&m.AdminMeta, act.ID, now)
	if err := s.repo.Update(ctx, m); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete market", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "market_deleted",
		EntityType:  entity.TypeMarket,
		EntityID:    m.ID,
		Description: fmt.Sprintf("market %q soft-deleted", m.Name),
		Severity:    entity.SeverityHigh,
		Impact:      entity.ImpactSignificant,
		CreatedAt:   now,
	})
	s.publishLifecycle(ctx, m, "market_deleted")
	return nil
}

// Deactivate hides the market without deleting it.
func (s *Service) Deactivate(ctx context.Context, id int64, reason string) error {
	ctx, span := serviceTracer.Start(ctx, "MarketService.Deactivate", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if m.IsDeleted {
		return errorbank.Conflict("cannot deactivate deleted market")
	}
	if !m.IsActive {
		return nil
	}

	now := time.Now().UTC()
	lifecycle.MarkDeactivated(&m.AdminMeta, act.ID, reason, now)
	if err := s.repo.Update(ctx, m); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to deactivate market", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "market_deactivated",
		EntityType:  entity.TypeMarket,
		EntityID:    m.ID,
		Description: fmt.Sprintf("market %q deactivated", m.Name),
		Reason:      reason,
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		CreatedAt:   now,
	})
	s.publishLifecycle(ctx, m, "market_deactivated")
	return nil
}

// Reactivate flips a deactivated market back to active. Soft-deleted
// markets stay deleted.
func (s *Service) Reactivate(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "MarketService.Reactivate", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	m, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if m.IsDeleted {
		return errorbank.Conflict("cannot reactivate deleted market")
	}
	if m.IsActive {
		return nil
	}

	now := time.Now().UTC()
	lifecycle.MarkReactivated(&m.AdminMeta, act.ID, now)
	if err := s.repo.Update(ctx, m); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to reactivate market", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "market_reactivated",
		EntityType:  entity.TypeMarket,
		EntityID:    m.ID,
		Description: fmt.Sprintf("market %q reactivated", m.Name),
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		CreatedAt:   now,
	})
	s.publishLifecycle(ctx, m, "market_reactivated")
	return nil
}

// LifecycleEvent is emitted when a market changes lifecycle state.
type LifecycleEvent struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

func (s *Service) publishLifecycle(ctx context.Context, m *entity.Market, action string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(LifecycleEvent{ID: m.ID, Name: m.Name, Action: action})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal market lifecycle event", zap.Error(err))
		}
		return
	}
	key := []byte(fmt.Sprintf("market-%d", m.ID))
	if err := s.publisher.Publish(ctx, s.messaging.topic, key, payload); err != nil && s.logger != nil {
		s.logger.Error("publish market lifecycle event", zap.Error(err))
	}
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("markets:%d", id)
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil && s.logger != nil {
		s.logger.Warn("markets cache invalidate failed", zap.Int64("id", id), zap.Error(err))
	}
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Market, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var m entity.Market
	if err := json.Unmarshal(bytes, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) storeInCache(ctx context.Context, m *entity.Market) error {
	if s.cache == nil || m == nil {
		return nil
	}
	bytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(m.ID), bytes, s.cacheTTL)
}
