package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/entity"
)

var repoTracer = otel.Tracer("github.com/greenlane/marketdesk/repository/user")

// ErrNotFound is returned when a user is missing.
var ErrNotFound = errors.New("user not found")

// Filter narrows user listings.
type Filter struct {
	Role           *entity.UserRole
	VendorID       *int64
	BuyerID        *int64
	Active         *bool
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Repository encapsulates read/write access for user accounts.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Create persists a new user, joining any ambient transaction.
func (r *Repository) Create(ctx context.Context, u *entity.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	ctx, span := repoTracer.Start(ctx, "UserRepository.Create", trace.WithAttributes(attribute.String("user.email", u.Email)))
	defer span.End()

	_, err := r.conns.DB(ctx).NewInsert().Model(u).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByID", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	u := new(entity.User)
	err := r.conns.Reader.NewSelect().Model(u).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return u, nil
}

// List returns users matching the filter.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.List")
	defer span.End()

	var users []entity.User
	q := r.conns.Reader.NewSelect().Model(&users)
	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.Role != nil {
		q = q.Where("role = ?", *f.Role)
	}
	if f.VendorID != nil {
		q = q.Where("vendor_id = ?", *f.VendorID)
	}
	if f.BuyerID != nil {
		q = q.Where("buyer_id = ?", *f.BuyerID)
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
	return users, nil
}

// Update persists all columns of the user row.
func (r *Repository) Update(ctx context.Context, u *entity.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	ctx, span := repoTracer.Start(ctx, "UserRepository.Update", trace.WithAttributes(attribute.Int64("user.id", u.ID)))
	defer span.End()

	res, err := r.conns.DB(ctx).NewUpdate().Model(u).WherePK().Exec(ctx)
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

// ActiveUsersFor resolves the active, non-deleted accounts linked to a
// vendor or buyer.
func (r *Repository) ActiveUsersFor(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.ActiveUsersFor", trace.WithAttributes(
		attribute.String("user.parent_type", string(entityType)),
		attribute.Int64("user.parent_id", entityID),
	))
	defer span.End()

	var users []*entity.User
	q := r.conns.DB(ctx).NewSelect().Model(&users).
		Where("is_active = ?", true).
		Where("is_deleted = ?", false)
	switch entityType {
	case entity.TypeVendor:
		q = q.Where("vendor_id = ?", entityID)
	case entity.TypeBuyer:
		q = q.Where("buyer_id = ?", entityID)
	default:
		return nil, fmt.Errorf("no linked users for entity type %q", entityType)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return users, nil
}

// FindConflict reports whether the email already belongs to another user.
func (r *Repository) FindConflict(ctx context.Context, email string, excludeID int64) (string, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.FindConflict")
	defer span.End()

	if email == "" {
		return "", nil
	}
	q := r.conns.DB(ctx).NewSelect().Model((*entity.User)(nil)).Where("email = ?", email)
	if excludeID > 0 {
		q = q.Where("id != ?", excludeID)
	}
	n, err := q.Count(ctx)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if n > 0 {
		return "email", nil
	}
	return "", nil
}

// LinkedTo returns every non-deleted account linked to a vendor or buyer,
// active or not, for cascade operations.
func (r *Repository) LinkedTo(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.LinkedTo", trace.WithAttributes(
		attribute.String("user.parent_type", string(entityType)),
		attribute.Int64("user.parent_id", entityID),
	))
	defer span.End()

	var users []*entity.User
	q := r.conns.DB(ctx).NewSelect().Model(&users).Where("is_deleted = ?", false)
	switch entityType {
	case entity.TypeVendor:
		q = q.Where("vendor_id = ?", entityID)
	case entity.TypeBuyer:
		q = q.Where("buyer_id = ?", entityID)
	default:
		return nil, fmt.Errorf("no linked users for entity type %q", entityType)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return users, nil
}
