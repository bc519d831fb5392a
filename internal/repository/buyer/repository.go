package buyer

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

var repoTracer = otel.Tracer("github.com/greenlane/marketdesk/repository/buyer")

// ErrNotFound is returned when a buyer is missing.
var ErrNotFound = errors.New("buyer not found")

// Filter narrows buyer listings.
type Filter struct {
	VerificationStatus *entity.VerificationStatus
	Active             *bool
	IncludeDeleted     bool
	Search             string
	Limit              int
	Offset             int
}

// Repository encapsulates read/write access for buyers.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Create persists a new buyer, joining any ambient transaction.
func (r *Repository) Create(ctx context.Context, b *entity.Buyer) error {
	if b == nil {
		return errors.New("nil buyer")
	}
	ctx, span := repoTracer.Start(ctx, "BuyerRepository.Create", trace.WithAttributes(attribute.String("buyer.name", b.Name)))
	defer span.End()

	_, err := r.conns.DB(ctx).NewInsert().Model(b).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a buyer by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Buyer, error) {
	ctx, span := repoTracer.Start(ctx, "BuyerRepository.GetByID", trace.WithAttributes(attribute.Int64("buyer.id", id)))
	defer span.End()

	b := new(entity.Buyer)
	err := r.conns.Reader.NewSelect().Model(b).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return b, nil
}

// List returns buyers matching the filter.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Buyer, error) {
	ctx, span := repoTracer.Start(ctx, "BuyerRepository.List")
	defer span.End()

	var buyers []entity.Buyer
	q := r.conns.Reader.NewSelect().Model(&buyers)
	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.VerificationStatus != nil {
		q = q.Where("verification_status = ?", *f.VerificationStatus)
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
	return buyers, nil
}

// Update persists all columns of the buyer row.
func (r *Repository) Update(ctx context.Context, b *entity.Buyer) error {
	if b == nil {
		return errors.New("nil buyer")
	}
	ctx, span := repoTracer.Start(ctx, "BuyerRepository.Update", trace.WithAttributes(attribute.Int64("buyer.id", b.ID)))
	defer span.End()

	res, err := r.conns.DB(ctx).NewUpdate().Model(b).WherePK().Exec(ctx)
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

// FindConflict reports which unique field already belongs to another buyer.
func (r *Repository) FindConflict(ctx context.Context, email, phone, license string, excludeID int64) (string, error) {
	ctx, span := repoTracer.Start(ctx, "BuyerRepository.FindConflict")
	defer span.End()

	type probe struct {
		field string
		value string
	}
	probes := []probe{{"email", email}, {"phone", phone}, {"license_number", license}}
	for _, p := range probes {
		if p.value == "" {
			continue
		}
		q := r.conns.DB(ctx).NewSelect().Model((*entity.Buyer)(nil)).
			Where("? = ?", bun.Ident(p.field), p.value)
		if excludeID > 0 {
			q = q.Where("id != ?", excludeID)
		}
		n, err := q.Count(ctx)
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		if n > 0 {
			return p.field, nil
		}
	}
	return "", nil
}
