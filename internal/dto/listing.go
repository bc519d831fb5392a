package dto

import "github.com/shopspring/decimal"

// CreateListingRequest publishes a vendor's offer of a product in a market.
type CreateListingRequest struct {
	VendorID          int64           `json:"vendor_id" validate:"required,gt=0"`
	ProductID         int64           `json:"product_id" validate:"required,gt=0"`
	MarketID          int64           `json:"market_id" validate:"required,gt=0"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit" validate:"required"`
	QuantityAvailable int             `json:"quantity_available" validate:"gte=0"`
}

// UpdateListingRequest edits a listing; nil fields are left untouched.
type UpdateListingRequest struct {
	PricePerUnit      *decimal.Decimal `json:"price_per_unit"`
	QuantityAvailable *int             `json:"quantity_available" validate:"omitempty,gte=0"`
}

// ListingStatusRequest moves a listing to a new availability status.
type ListingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive out_of_stock discontinued"`
	Notes  string `json:"notes"`
}

// FeatureListingRequest toggles a listing's featured placement.
type FeatureListingRequest struct {
	Featured bool `json:"featured"`
}

// FlagListingRequest marks a listing for moderation review.
type FlagListingRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// BulkModerationRequest applies one moderation action to several listings.
// Status is required for the set_status action, Reason for flag.
type BulkModerationRequest struct {
	ListingIDs []int64 `json:"listing_ids" validate:"required,min=1,dive,gt=0"`
	Action     string  `json:"action" validate:"required,oneof=set_status feature unfeature flag unflag"`
	Status     string  `json:"status" validate:"omitempty,oneof=active inactive out_of_stock discontinued"`
	Reason     string  `json:"reason"`
}

// BulkItemError reports why one listing in a bulk request was skipped.
type BulkItemError struct {
	ListingID int64  `json:"listing_id"`
	Error     string `json:"error"`
}

// BulkModerationResult summarises a bulk moderation run.
type BulkModerationResult struct {
	Requested int             `json:"requested"`
	Processed int             `json:"processed"`
	Failed    int             `json:"failed"`
	Errors    []BulkItemError `json:"errors,omitempty"`
}
