package dto

import "github.com/shopspring/decimal"

// OrderItemRequest is one requested line of a new order.
type OrderItemRequest struct {
	ListingID int64           `json:"listing_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

// CreateOrderRequest places an order on behalf of a buyer.
type CreateOrderRequest struct {
	BuyerID     int64              `json:"buyer_id" validate:"required,gt=0"`
	VendorID    int64              `json:"vendor_id" validate:"required,gt=0"`
	Items       []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryFee decimal.Decimal    `json:"delivery_fee"`
	Tax         decimal.Decimal    `json:"tax"`
	Discount    decimal.Decimal    `json:"discount"`
}

// OrderStatusRequest advances an order through its progression.
type OrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending_approval confirmed processing ready_for_pickup out_for_delivery delivered cancelled refunded"`
}

// OrderChargesRequest adjusts the order-level charges; nil fields are left
// untouched. The total is re-derived after applying them.
type OrderChargesRequest struct {
	DeliveryFee *decimal.Decimal `json:"delivery_fee"`
	Tax         *decimal.Decimal `json:"tax"`
	Discount    *decimal.Decimal `json:"discount"`
}
