package listing

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
	repo "github.com/greenlane/marketdesk/internal/repository/listing"
	vendorrepo "github.com/greenlane/marketdesk/internal/repository/vendor"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/greenlane/marketdesk/service/listing")

// listingStore is the slice of the listing repository the service uses.
type listingStore interface {
	Create(ctx context.Context, l *entity.Listing) error
	GetByID(ctx context.Context, id int64) (*entity.Listing, error)
	List(ctx context.Context, f repo.Filter) ([]entity.Listing, error)
	Update(ctx context.Context, l *entity.Listing) error
}

// vendorReader resolves the vendor a listing is published for.
type vendorReader interface {
	GetByID(ctx context.Context, id int64) (*entity.Vendor, error)
}

// dependencyChecker re-derives blocking dependent counts at call time.
type dependencyChecker interface {
	Check(ctx context.Context, entityType entity.EntityType, id int64, op guard.Operation) (guard.Result, error)
}

// Service encapsulates business logic around listings and their
// moderation.
type Service struct {
	repo     listingStore
	vendors  vendorReader
	guard    dependencyChecker
	recorder audit.Recorder
	cache    cache.Store
	cacheTTL time.Duration
	bulkMax  int
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Vendors    *vendorrepo.Repository
	Guard      *guard.Guard
	Recorder   audit.Recorder
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:     p.Repository,
		vendors:  p.Vendors,
		guard:    p.Guard,
		recorder: p.Recorder,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		bulkMax:  p.Config.Moderation.BulkMaxItems,
		logger:   p.Logger,
	}
}

// Create publishes a listing. Only approved, active vendors can be listed
// for.
func (s *Service) Create(ctx context.Context, req dto.CreateListingRequest) (*entity.Listing, error) {
	ctx, span := serviceTracer.Start(ctx, "ListingService.Create", trace.WithAttributes(
		attribute.Int64("listing.vendor_id", req.VendorID),
		attribute.Int64("listing.product_id", req.ProductID),
	))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
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
	if v.VerificationStatus != entity.VerificationApproved {
		return nil, errorbank.Conflict("vendor is not verified")
	}
	if req.PricePerUnit.IsNegative() {
		return nil, errorbank.BadRequest("price must not be negative")
	}

	now := time.Now().UTC()
	l := &entity.Listing{
		VendorID:          req.VendorID,
		ProductID:         req.ProductID,
		MarketID:          req.MarketID,
		Status:            entity.ListingActive,
		PricePerUnit:      req.PricePerUnit,
		QuantityAvailable: req.QuantityAvailable,
	}
	l.IsActive = true
	l.CreatedBy = act.ID
	l.CreatedAt = now
	l.UpdatedAt = now

	if err := s.repo.Create(ctx, l); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create listing", errorbank.WithCause(err))
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "listing_created",
		EntityType:  entity.TypeListing,
		EntityID:    l.ID,
		Description: fmt.Sprintf("listing created for vendor %d, product %d, market %d", l.VendorID, l.ProductID, l.MarketID),
		Severity:    entity.SeverityLow,
		Impact:      entity.ImpactMinor,
		CreatedAt:   now,
	})
	return l, nil
}

// Get retrieves a listing with its relations, consulting cache when
// available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Listing, error) {
	ctx, span := serviceTracer.Start(ctx, "ListingService.Get", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	if l, err := s.getFromCache(ctx, id); err == nil {
		return l, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("listings cache read failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	l, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.storeInCache(ctx, l); err != nil && s.logger != nil {
		s.logger.Warn("listings cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return l, nil
}

// load fetches the authoritative row, bypassing the cache.
func (s *Service) load(ctx context.Context, id int64) (*entity.Listing, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("listing not found")
		}
		return nil, errorbank.Internal("failed to load listing", errorbank.WithCause(err))
	}
	return l, nil
}

// List returns listings matching the filter.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]entity.Listing, error) {
	ctx, span := serviceTracer.Start(ctx, "ListingService.List")
	defer span.End()

	listings, err := s.repo.List(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list listings", errorbank.WithCause(err))
	}
	return listings, nil
}

// Update edits price and stock. Deleted listings are immutable.
func (s *Service) Update(ctx context.Context, id int64, req dto.UpdateListingRequest) (*entity.Listing, error) {
	ctx, span := serviceTracer.Start(ctx, "ListingService.Update", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	l, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.IsDeleted {
		return nil, errorbank.Conflict("cannot update deleted listing")
	}

	var changes []lifecycle.FieldChange
	if req.PricePerUnit != nil {
		if req.PricePerUnit.IsNegative() {
			return nil, errorbank.BadRequest("price must not be negative")
		}
		changes = lifecycle.Compare(changes, "price_per_unit", l.PricePerUnit.String(), req.PricePerUnit.String())
		l.PricePerUnit = *req.PricePerUnit
	}
	if req.QuantityAvailable != nil {
		changes = lifecycle.Compare(changes, "quantity_available",
			fmt.Sprintf("%d", l.QuantityAvailable), fmt.Sprintf("%d", *req.QuantityAvailable))
		l.QuantityAvailable = *req.QuantityAvailable
	}

	now := time.Now().UTC()
	lifecycle.Touch(&l.AdminMeta, act.ID, now)

	if err := s.repo.Update(ctx, l); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update listing", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)

	if len(changes) > 0 {
		s.recorder.BestEffort(ctx, &entity.AuditLog{
			ActorID:     act.ID,
			ActorRole:   act.Role,
			Action:      "listing_updated",
			EntityType:  entity.TypeListing,
			EntityID:    l.ID,
			Description: lifecycle.Describe(changes),
			Severity:    entity.SeverityLow,
			Impact:      entity.ImpactMinor,
			Metadata:    lifecycle.Metadata(changes),
			CreatedAt:   now,
		})
	}
	return l, nil
}

// SetStatus moves the listing to a new availability status. Any status may
// move to any other. A featured listing keeps its placement when it leaves
// active: the active requirement is checked only when featuring.
func (s *Service) SetStatus(ctx context.Context, id int64, status entity.ListingStatus, notes string) (*entity.Listing, error) {
	ctx, span := serviceTracer.Start(ctx, "ListingService.SetStatus", trace.WithAttributes(
		attribute.Int64("listing.id", id),
		attribute.String("listing.status", string(status)),
	))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}
	if !status.Valid() {
		return nil, errorbank.BadRequest(fmt.Sprintf("invalid listing status %q", status))
	}

	now := time.Now().UTC()
	l, old, err := s.applyStatus(ctx, act, id, status, notes, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status change failed")
		return nil, err
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "listing_status_changed",
		EntityType:  entity.TypeListing,
		EntityID:    l.ID,
		Description: fmt.Sprintf("listing %d status changed from %s to %s", l.ID, old, status),
		Reason:      notes,
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		Metadata: map[string]any{
			"old_status": string(old),
			"new_status": string(status),
		},
		CreatedAt: now,
	})
	return l, nil
}

// applyStatus performs the status move without writing an audit entry. It
// returns the previous status for the caller's own record keeping.
func (s *Service) applyStatus(ctx context.Context, act actor.Actor, id int64, status entity.ListingStatus, notes string, now time.Time) (*entity.Listing, entity.ListingStatus, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if l.IsDeleted {
		return nil, "", errorbank.Conflict("cannot moderate deleted listing")
	}

	old := l.Status
	l.Status = status
	l.ModerationNotes = notes
	l.ModeratedBy = &act.ID
	l.LastStatusAt = &now
	lifecycle.Touch(&l.AdminMeta, act.ID, now)

	if err := s.repo.Update(ctx, l); err != nil {
		return nil, "", errorbank.Internal("failed to update listing", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)
	return l, old, nil
}

// ToggleFeatured sets the featured placement. Only active listings can be
// featured.
func (s *Service) ToggleFeatured(ctx context.Context, id int64, featured bool) (*entity.Listing, error) {
	ctx, span := serviceTracer.Start(ctx, "ListingService.ToggleFeatured", trace.WithAttributes(
		attribute.Int64("listing.id", id),
		attribute.Bool("listing.featured", featured),
	))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	now := time.Now().UTC()
	l, changed, err := s.applyFeatured(ctx, act, id, featured, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feature toggle failed")
		return nil, err
	}
	if !changed {
		return l, nil
	}

	action := "listing_unfeatured"
	if featured {
		action = "listing_featured"
	}
	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      action,
		EntityType:  entity.TypeListing,
		EntityID:    l.ID,
		Description: fmt.Sprintf("listing %d featured set to %t", l.ID, featured),
		Severity:    entity.SeverityLow,
		Impact:      entity.ImpactMinor,
		CreatedAt:   now,
	})
	return l, nil
}

// applyFeatured performs the placement flip without writing an audit entry.
// The second return reports whether anything changed.
func (s *Service) applyFeatured(ctx context.Context, act actor.Actor, id int64, featured bool, now time.Time) (*entity.Listing, bool, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if l.IsDeleted {
		return nil, false, errorbank.Conflict("cannot moderate deleted listing")
	}
	if featured && l.Status != entity.ListingActive {
		return nil, false, errorbank.Conflict("only active listings can be featured")
	}
	if l.Featured == featured {
		return l, false, nil
	}

	l.Featured = featured
	l.ModeratedBy = &act.ID
	lifecycle.Touch(&l.AdminMeta, act.ID, now)

	if err := s.repo.Update(ctx, l); err != nil {
		return nil, false, errorbank.Internal("failed to update listing", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)
	return l, true, nil
}

// Flag marks a listing for moderation review. A reason is mandatory.
func (s *Service) Flag(ctx context.Context, id int64, reason string) (*entity.Listing, error) {
	ctx, span := serviceTracer.Start(ctx, "ListingService.Flag", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}
	if reason == "" {
		return nil, errorbank.BadRequest("flag reason required")
	}

	now := time.Now().UTC()
	l, err := s.applyFlag(ctx, act, id, reason, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "flag failed")
		return nil, err
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "listing_flagged",
		EntityType:  entity.TypeListing,
		EntityID:    l.ID,
		Description: fmt.Sprintf("listing %d flagged", l.ID),
		Reason:      reason,
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		CreatedAt:   now,
	})
	return l, nil
}

// applyFlag performs the flag write without writing an audit entry.
func (s *Service) applyFlag(ctx context.Context, act actor.Actor, id int64, reason string, now time.Time) (*entity.Listing, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.IsDeleted {
		return nil, errorbank.Conflict("cannot moderate deleted listing")
	}

	l.IsFlagged = true
	l.FlagReason = reason
	l.ModeratedBy = &act.ID
	l.LastStatusAt = &now
	lifecycle.Touch(&l.AdminMeta, act.ID, now)

	if err := s.repo.Update(ctx, l); err != nil {
		return nil, errorbank.Internal("failed to update listing", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)
	return l, nil
}

// Unflag clears the moderation flag.
func (s *Service) Unflag(ctx context.Context, id int64) (*entity.Listing, error) {
	ctx, span := serviceTracer.Start(ctx, "ListingService.Unflag", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}

	now := time.Now().UTC()
	l, changed, err := s.applyUnflag(ctx, act, id, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unflag failed")
		return nil, err
	}
	if !changed {
		return l, nil
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "listing_unflagged",
		EntityType:  entity.TypeListing,
		EntityID:    l.ID,
		Description: fmt.Sprintf("listing %d unflagged", l.ID),
		Severity:    entity.SeverityLow,
		Impact:      entity.ImpactMinor,
		CreatedAt:   now,
	})
	return l, nil
}

// applyUnflag performs the flag clear without writing an audit entry. The
// second return reports whether the listing was flagged at all.
func (s *Service) applyUnflag(ctx context.Context, act actor.Actor, id int64, now time.Time) (*entity.Listing, bool, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if l.IsDeleted {
		return nil, false, errorbank.Conflict("cannot moderate deleted listing")
	}
	if !l.IsFlagged {
		return l, false, nil
	}

	l.IsFlagged = false
	l.FlagReason = ""
	l.ModeratedBy = &act.ID
	l.LastStatusAt = &now
	lifecycle.Touch(&l.AdminMeta, act.ID, now)

	if err := s.repo.Update(ctx, l); err != nil {
		return nil, false, errorbank.Internal("failed to update listing", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)
	return l, true, nil
}

// Bulk applies one moderation action to several listings. Items fail
// independently; one aggregate audit entry records the whole run.
func (s *Service) Bulk(ctx context.Context, req dto.BulkModerationRequest) (*dto.BulkModerationResult, error) {
	ctx, span := serviceTracer.Start(ctx, "ListingService.Bulk", trace.WithAttributes(
		attribute.String("bulk.action", req.Action),
		attribute.Int("bulk.requested", len(req.ListingIDs)),
	))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return nil, errorbank.Forbidden("missing actor identity")
	}
	if len(req.ListingIDs) == 0 {
		return nil, errorbank.BadRequest("no listings given")
	}
	if len(req.ListingIDs) > s.bulkMax {
		return nil, errorbank.BadRequest(fmt.Sprintf("bulk moderation is limited to %d listings per request", s.bulkMax))
	}
	if req.Action == "set_status" && !entity.ListingStatus(req.Status).Valid() {
		return nil, errorbank.BadRequest(fmt.Sprintf("invalid listing status %q", req.Status))
	}
	if req.Action == "flag" && req.Reason == "" {
		return nil, errorbank.BadRequest("flag reason required")
	}

	now := time.Now().UTC()
	result := &dto.BulkModerationResult{Requested: len(req.ListingIDs)}
	for _, id := range req.ListingIDs {
		var err error
		switch req.Action {
		case "set_status":
			_, _, err = s.applyStatus(ctx, act, id, entity.ListingStatus(req.Status), req.Reason, now)
		case "feature":
			_, _, err = s.applyFeatured(ctx, act, id, true, now)
		case "unfeature":
			_, _, err = s.applyFeatured(ctx, act, id, false, now)
		case "flag":
			_, err = s.applyFlag(ctx, act, id, req.Reason, now)
		case "unflag":
			_, _, err = s.applyUnflag(ctx, act, id, now)
		default:
			return nil, errorbank.BadRequest(fmt.Sprintf("unknown bulk action %q", req.Action))
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, dto.BulkItemError{ListingID: id, Error: errMessage(err)})
			continue
		}
		result.Processed++
	}

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "listing_bulk_moderation",
		EntityType:  entity.TypeListing,
		EntityID:    0,
		Description: fmt.Sprintf("bulk %s over %d listings: %d processed, %d failed", req.Action, result.Requested, result.Processed, result.Failed),
		Reason:      req.Reason,
		Severity:    entity.SeverityMedium,
		Impact:      entity.ImpactModerate,
		Metadata: map[string]any{
			"action":      req.Action,
			"listing_ids": req.ListingIDs,
			"processed":   result.Processed,
			"failed":      result.Failed,
		},
		CreatedAt: now,
	})
	return result, nil
}

func errMessage(err error) string {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}

// SoftDelete marks the listing deleted. Open orders referencing it block
// the operation.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "ListingService.SoftDelete", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	act, ok := actor.FromContext(ctx)
	if !ok {
		return errorbank.Forbidden("missing actor identity")
	}

	l, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if l.IsDeleted {
		return nil
	}

	res, err := s.guard.Check(ctx, entity.TypeListing, id, guard.OpDelete)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("dependency check failed", errorbank.WithCause(err))
	}
	if res.Blocking {
		return errorbank.DependencyBlocked("listing is referenced by open orders", res.Counts, res.Suggestions)
	}

	now := time.Now().UTC()
	l.Featured = false
	lifecycle.MarkDeleted(&l.AdminMeta, act.ID, now)
	if err := s.repo.Update(ctx, l); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete listing", errorbank.WithCause(err))
	}
	s.invalidate(ctx, id)

	s.recorder.BestEffort(ctx, &entity.AuditLog{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		Action:      "listing_deleted",
		EntityType:  entity.TypeListing,
		EntityID:    l.ID,
		Description: fmt.Sprintf("listing %d soft-deleted", l.ID),
		Severity:    entity.SeverityHigh,
		Impact:      entity.ImpactSignificant,
		CreatedAt:   now,
	})
	return nil
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("listings:%d", id)
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil && s.logger != nil {
		s.logger.Warn("listings cache invalidate failed", zap.Int64("id", id), zap.Error(err))
	}
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Listing, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var l entity.Listing
	if err := json.Unmarshal(bytes, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Service) storeInCache(ctx context.Context, l *entity.Listing) error {
	if s.cache == nil || l == nil {
		return nil
	}
	bytes, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(l.ID), bytes, s.cacheTTL)
}
