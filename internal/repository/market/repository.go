package market

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/entity"
)

var repoTracer = otel.Tracer("github.com/greenlane/marketdesk/repository/market")

// ErrNotFound is returned when a market is missing.
var ErrNotFound = errors.New("market not found")

// Filter narrows market listings. Zero-valued fields are ignored; ad-hoc
// key/value filters are deliberately not supported.
type Filter struct {
	City           *string
	Active         *bool
	IncludeDeleted bool
	Search         string
	Limit          int
	Offset         int
}

// Repository encapsulates read/write access for markets.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Create persists a new market, joining any ambient transaction.
func (r *Repository) Create(ctx context.Context, m *entity.Market) error {
	if m == nil {
		return errors.New("nil market")
	}
	ctx, span := repoTracer.Start(ctx, "MarketRepository.Create", trace.WithAttributes(attribute.String("market.name", m.Name)))
	defer span.End()

	_, err := r.conns.DB(ctx).NewInsert().Model(m).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a market by primary key using the read replica.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Market, error) {
	ctx, span := repoTracer.Start(ctx, "MarketRepository.GetByID", trace.WithAttributes(attribute.Int64("market.id", id)))
	defer span.End()

	m := new(entity.Market)
	err := r.conns.Reader.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return m, nil
}

// List returns markets matching the filter.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Market, error) {
	ctx, span := repoTracer.Start(ctx, "MarketRepository.List")
	defer span.End()

	var markets []entity.Market
	q := r.conns.Reader.NewSelect().Model(&markets)
	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.City != nil {
		q = q.Where("city = ?", *f.City)
	}
	if f.Search != "" {
		q = q.Where("name ILIKE ?", "%"+f.Search+"%")
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
	return markets, nil
}

// ActiveCount reports how many of the given ids resolve to active,
// non-deleted markets. It joins any ambient transaction so vendor
// creation can validate its assignments atomically.
func (r *Repository) ActiveCount(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, span := repoTracer.Start(ctx, "MarketRepository.ActiveCount", trace.WithAttributes(attribute.Int("market.requested", len(ids))))
	defer span.End()

	n, err := r.conns.DB(ctx).NewSelect().
		Model((*entity.Market)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Where("is_active = ?", true).
		Where("is_deleted = ?", false).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return 0, err
	}
	return n, nil
}

// Update persists all columns of the market row.
func (r *Repository) Update(ctx context.Context, m *entity.Market) error {
	if m == nil {
		return errors.New("nil market")
	}
	ctx, span := repoTracer.Start(ctx, "MarketRepository.Update", trace.WithAttributes(attribute.Int64("market.id", m.ID)))
	defer span.End()

	res, err := r.conns.DB(ctx).NewUpdate().Model(m).WherePK().Exec(ctx)
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
