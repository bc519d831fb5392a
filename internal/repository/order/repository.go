package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/entity"
)

var repoTracer = otel.Tracer("github.com/greenlane/marketdesk/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Filter narrows order queries.
type Filter struct {
	BuyerID  *int64
	VendorID *int64
	Status   *entity.OrderStatus
	Limit    int
	Offset   int
}

// Repository encapsulates read/write access for orders and their items.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Create persists the order and its line items, joining any ambient
// transaction.
func (r *Repository) Create(ctx context.Context, o *entity.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", o.OrderNumber)))
	defer span.End()

	db := r.conns.DB(ctx)
	if _, err := db.NewInsert().Model(o).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	for _, item := range o.Items {
		item.OrderID = o.ID
	}
	if len(o.Items) > 0 {
		if _, err := db.NewInsert().Model(&o.Items).Exec(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert items failed")
			return err
		}
	}
	return nil
}

// GetByID fetches an order with its items.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	o := new(entity.Order)
	err := r.conns.Reader.NewSelect().Model(o).
		Relation("Items").
		Where("\"order\".id = ?", id).
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
	return o, nil
}

// List returns orders matching the filter.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []entity.Order
	q := r.conns.Reader.NewSelect().Model(&orders)
	if f.BuyerID != nil {
		q = q.Where("buyer_id = ?", *f.BuyerID)
	}
	if f.VendorID != nil {
		q = q.Where("vendor_id = ?", *f.VendorID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if err := q.Order("id DESC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Update persists all columns of the order row.
func (r *Repository) Update(ctx context.Context, o *entity.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", o.ID)))
	defer span.End()

	res, err := r.conns.DB(ctx).NewUpdate().Model(o).WherePK().Exec(ctx)
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

// NextSequence returns the next per-day sequence for order numbers by
// counting the orders already created on that day.
func (r *Repository) NextSequence(ctx context.Context, day time.Time) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.NextSequence")
	defer span.End()

	prefix := fmt.Sprintf("ORD-%s-", day.UTC().Format("20060102"))
	n, err := r.conns.DB(ctx).NewSelect().Model((*entity.Order)(nil)).
		Where("order_number LIKE ?", prefix+"%").
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return 0, err
	}
	return n + 1, nil
}
