package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderStatus enumerates the fixed order progression plus its absorbing
// terminals.
type OrderStatus string

const (
	OrderPendingApproval OrderStatus = "pending_approval"
	OrderConfirmed       OrderStatus = "confirmed"
	OrderProcessing      OrderStatus = "processing"
	OrderReadyForPickup  OrderStatus = "ready_for_pickup"
	OrderOutForDelivery  OrderStatus = "out_for_delivery"
	OrderDelivered       OrderStatus = "delivered"
	OrderCancelled       OrderStatus = "cancelled"
	OrderRefunded        OrderStatus = "refunded"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPendingApproval, OrderConfirmed, OrderProcessing,
		OrderReadyForPickup, OrderOutForDelivery, OrderDelivered,
		OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// orderRank orders the forward progression. Fulfilment branches
// (ready_for_pickup / out_for_delivery) share a rank.
var orderRank = map[OrderStatus]int{
	OrderPendingApproval: 0,
	OrderConfirmed:       1,
	OrderProcessing:      2,
	OrderReadyForPickup:  3,
	OrderOutForDelivery:  3,
	OrderDelivered:       4,
}

// CanTransitionTo reports whether s may move to next: strictly forward
// through the progression, with cancelled/refunded reachable from any
// non-terminal state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	if next == OrderCancelled || next == OrderRefunded {
		return true
	}
	from, ok := orderRank[s]
	if !ok {
		return false
	}
	to, ok := orderRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Order references one buyer and one vendor and carries an ordered set of
// line items. TotalAmount is always derived, never written directly.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID          int64       `bun:",pk,autoincrement" json:"id"`
	OrderNumber string      `bun:"order_number,notnull,unique" json:"order_number"`
	BuyerID     int64       `bun:"buyer_id,notnull" json:"buyer_id"`
	VendorID    int64       `bun:"vendor_id,notnull" json:"vendor_id"`
	Status      OrderStatus `bun:"status,notnull,default:'pending_approval'" json:"status"`

	Subtotal    decimal.Decimal `bun:"subtotal,notnull" json:"subtotal"`
	DeliveryFee decimal.Decimal `bun:"delivery_fee,notnull" json:"delivery_fee"`
	Tax         decimal.Decimal `bun:"tax,notnull" json:"tax"`
	Discount    decimal.Decimal `bun:"discount,notnull" json:"discount"`
	TotalAmount decimal.Decimal `bun:"total_amount,notnull" json:"total_amount"`

	PlacedBy   int64  `bun:"placed_by,notnull" json:"placed_by"`
	ApprovedBy *int64 `bun:"approved_by" json:"approved_by,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// Recalculate derives Subtotal from the line items and TotalAmount from
// subtotal + deliveryFee + tax - discount, clamped at zero.
func (o *Order) Recalculate() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(item.LineTotal)
	}
	o.Subtotal = subtotal
	total := subtotal.Add(o.DeliveryFee).Add(o.Tax).Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.TotalAmount = total
}

// OrderItem is one line of an order, referencing the listing it was
// purchased from. LineTotal is derived.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID        int64           `bun:",pk,autoincrement" json:"id"`
	OrderID   int64           `bun:"order_id,notnull" json:"order_id"`
	ListingID int64           `bun:"listing_id,notnull" json:"listing_id"`
	Quantity  int             `bun:"quantity,notnull" json:"quantity"`
	UnitPrice decimal.Decimal `bun:"unit_price,notnull" json:"unit_price"`
	LineTotal decimal.Decimal `bun:"line_total,notnull" json:"line_total"`
}
