package guard

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/entity"
)

var tracer = otel.Tracer("github.com/greenlane/marketdesk/guard")

// Operation distinguishes the destructive action being gated. Counts are
// identical for delete and deactivate; only the messaging differs.
type Operation string

const (
	OpDelete     Operation = "delete"
	OpDeactivate Operation = "deactivate"
)

// Result reports whether live dependents block the operation. Counts are
// derived at call time and never cached.
type Result struct {
	Blocking    bool           `json:"blocking"`
	Counts      map[string]int `json:"counts"`
	Suggestions []string       `json:"suggestions"`
}

// incompleteOrderStatuses are the order states that count as live work in
// progress for vendor and buyer checks.
var incompleteOrderStatuses = []entity.OrderStatus{
	entity.OrderPendingApproval,
	entity.OrderConfirmed,
	entity.OrderProcessing,
}

// openOrderStatuses are the narrower set used for listing and user checks.
var openOrderStatuses = []entity.OrderStatus{
	entity.OrderPendingApproval,
	entity.OrderConfirmed,
}

// Guard computes whether an entity has live dependents that block
// destructive or state-changing operations. It is side-effect free.
type Guard struct {
	db database.TxRunner
}

// Module provides the dependency guard to Fx.
var Module = fx.Provide(New)

// New constructs a Guard over the shared connections.
func New(conns *database.Connections) *Guard {
	return &Guard{db: conns}
}

// Check re-derives dependent counts for the given entity at call time.
func (g *Guard) Check(ctx context.Context, entityType entity.EntityType, id int64, op Operation) (Result, error) {
	ctx, span := tracer.Start(ctx, "DependencyGuard.Check", trace.WithAttributes(
		attribute.String("guard.entity_type", string(entityType)),
		attribute.Int64("guard.entity_id", id),
		attribute.String("guard.operation", string(op)),
	))
	defer span.End()

	var (
		res Result
		err error
	)
	switch entityType {
	case entity.TypeMarket:
		res, err = g.checkMarket(ctx, id)
	case entity.TypeVendor:
		res, err = g.checkVendor(ctx, id, op)
	case entity.TypeBuyer:
		res, err = g.checkBuyer(ctx, id, op)
	case entity.TypeProduct:
		res, err = g.checkProduct(ctx, id)
	case entity.TypeListing:
		res, err = g.checkListing(ctx, id)
	case entity.TypeUser:
		res, err = g.checkUser(ctx, id)
	default:
		err = fmt.Errorf("no dependency rules for entity type %q", entityType)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dependency check failed")
		return Result{}, err
	}
	span.SetAttributes(attribute.Bool("guard.blocking", res.Blocking))
	return res, nil
}

func (g *Guard) checkMarket(ctx context.Context, id int64) (Result, error) {
	vendors, err := g.db.DB(ctx).NewSelect().
		Model((*entity.Vendor)(nil)).
		Join("JOIN vendor_markets AS vm ON vm.vendor_id = vendor.id").
		Where("vm.market_id = ?", id).
		Where("vendor.is_deleted = ?", false).
		Count(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Counts: map[string]int{"vendors": vendors}}
	if vendors > 0 {
		res.Blocking = true
		res.Suggestions = []string{
			"Reassign or remove the vendors operating in this market first",
			"Deactivate the market instead to hide it without deleting",
		}
	}
	return res, nil
}

func (g *Guard) checkVendor(ctx context.Context, id int64, op Operation) (Result, error) {
	orders, err := g.db.DB(ctx).NewSelect().
		Model((*entity.Order)(nil)).
		Where("vendor_id = ?", id).
		Where("status IN (?)", bun.In(incompleteOrderStatuses)).
		Count(ctx)
	if err != nil {
		return Result{}, err
	}
	listings, err := g.db.DB(ctx).NewSelect().
		Model((*entity.Listing)(nil)).
		Where("vendor_id = ?", id).
		Where("status = ?", entity.ListingActive).
		Where("is_deleted = ?", false).
		Count(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Counts: map[string]int{
		"incompleteOrders": orders,
		"activeListings":   listings,
	}}
	if orders > 0 || listings > 0 {
		res.Blocking = true
		if op == OpDeactivate {
			res.Suggestions = []string{
				"Wait for in-flight orders to complete before deactivating",
				"Set the vendor's active listings to inactive first",
			}
		} else {
			res.Suggestions = []string{
				"Complete or cancel the vendor's pending orders first",
				"Discontinue or delete the vendor's active listings first",
				"Deactivate the vendor instead to suspend it without deleting",
			}
		}
	}
	return res, nil
}

func (g *Guard) checkBuyer(ctx context.Context, id int64, op Operation) (Result, error) {
	orders, err := g.db.DB(ctx).NewSelect().
		Model((*entity.Order)(nil)).
		Where("buyer_id = ?", id).
		Where("status IN (?)", bun.In(incompleteOrderStatuses)).
		Count(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Counts: map[string]int{"incompleteOrders": orders}}
	if orders > 0 {
		res.Blocking = true
		if op == OpDeactivate {
			res.Suggestions = []string{"Wait for the buyer's in-flight orders to complete before deactivating"}
		} else {
			res.Suggestions = []string{
				"Complete or cancel the buyer's pending orders first",
				"Deactivate the buyer instead to suspend it without deleting",
			}
		}
	}
	return res, nil
}

func (g *Guard) checkProduct(ctx context.Context, id int64) (Result, error) {
	listings, err := g.db.DB(ctx).NewSelect().
		Model((*entity.Listing)(nil)).
		Where("product_id = ?", id).
		Where("status != ?", entity.ListingDiscontinued).
		Where("is_deleted = ?", false).
		Count(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Counts: map[string]int{"activeListings": listings}}
	if listings > 0 {
		res.Blocking = true
		res.Suggestions = []string{"Discontinue the listings offering this product first"}
	}
	return res, nil
}

func (g *Guard) checkListing(ctx context.Context, id int64) (Result, error) {
	orders, err := g.db.DB(ctx).NewSelect().
		Model((*entity.Order)(nil)).
		Join("JOIN order_items AS oi ON oi.order_id = \"order\".id").
		Where("oi.listing_id = ?", id).
		Where("\"order\".status IN (?)", bun.In(openOrderStatuses)).
		Count(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Counts: map[string]int{"openOrders": orders}}
	if orders > 0 {
		res.Blocking = true
		res.Suggestions = []string{"Wait for open orders referencing this listing to complete or cancel them"}
	}
	return res, nil
}

func (g *Guard) checkUser(ctx context.Context, id int64) (Result, error) {
	orders, err := g.db.DB(ctx).NewSelect().
		Model((*entity.Order)(nil)).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("placed_by = ?", id).WhereOr("approved_by = ?", id)
		}).
		Where("status IN (?)", bun.In(openOrderStatuses)).
		Count(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Counts: map[string]int{"openOrders": orders}}
	if orders > 0 {
		res.Blocking = true
		res.Suggestions = []string{"Reassign or resolve the user's open orders first"}
	}
	return res, nil
}
