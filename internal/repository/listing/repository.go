package listing

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/entity"
)

var repoTracer = otel.Tracer("github.com/greenlane/marketdesk/repository/listing")

// ErrNotFound is returned when a listing is missing.
var ErrNotFound = errors.New("listing not found")

// Filter narrows listing queries.
type Filter struct {
	VendorID       *int64
	ProductID      *int64
	MarketID       *int64
	Status         *entity.ListingStatus
	Featured       *bool
	Flagged        *bool
	Active         *bool
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Repository encapsulates read/write access for listings.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Create persists a new listing, joining any ambient transaction.
func (r *Repository) Create(ctx context.Context, l *entity.Listing) error {
	if l == nil {
		return errors.New("nil listing")
	}
	ctx, span := repoTracer.Start(ctx, "ListingRepository.Create", trace.WithAttributes(
		attribute.Int64("listing.vendor_id", l.VendorID),
		attribute.Int64("listing.product_id", l.ProductID),
	))
	defer span.End()

	_, err := r.conns.DB(ctx).NewInsert().Model(l).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a listing with its vendor, product, and market.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Listing, error) {
	ctx, span := repoTracer.Start(ctx, "ListingRepository.GetByID", trace.WithAttributes(attribute.Int64("listing.id", id)))
	defer span.End()

	l := new(entity.Listing)
	err := r.conns.Reader.NewSelect().Model(l).
		Relation("Vendor").
		Relation("Product").
		Relation("Market").
		Where("listing.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return l, nil
}

// List returns listings matching the filter.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Listing, error) {
	ctx, span := repoTracer.Start(ctx, "ListingRepository.List")
	defer span.End()

	var listings []entity.Listing
	q := r.conns.Reader.NewSelect().Model(&listings)
	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.VendorID != nil {
		q = q.Where("vendor_id = ?", *f.VendorID)
	}
	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.MarketID != nil {
		q = q.Where("market_id = ?", *f.MarketID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Featured != nil {
		q = q.Where("featured = ?", *f.Featured)
	}
	if f.Flagged != nil {
		q = q.Where("is_flagged = ?", *f.Flagged)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if err := q.Order("id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return listings, nil
}

// Update persists all columns of the listing row.
func (r *Repository) Update(ctx context.Context, l *entity.Listing) error {
	if l == nil {
		return errors.New("nil listing")
	}
	ctx, span := repoTracer.Start(ctx, "ListingRepository.Update", trace.WithAttributes(attribute.Int64("listing.id", l.ID)))
	defer span.End()

	res, err := r.conns.DB(ctx).NewUpdate().Model(l).WherePK().Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
