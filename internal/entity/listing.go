package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// ListingStatus enumerates the availability states of a listing.
type ListingStatus string

const (
	ListingActive       ListingStatus = "active"
	ListingInactive     ListingStatus = "inactive"
	ListingOutOfStock   ListingStatus = "out_of_stock"
	ListingDiscontinued ListingStatus = "discontinued"
)

// Valid reports whether s is an accepted listing status.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingInactive, ListingOutOfStock, ListingDiscontinued:
		return true
	}
	return false
}

// Listing is a vendor's sellable offer of a product within one market.
type Listing struct {
	bun.BaseModel `bun:"table:listings"`

	ID        int64 `bun:",pk,autoincrement" json:"id"`
	VendorID  int64 `bun:"vendor_id,notnull" json:"vendor_id"`
	ProductID int64 `bun:"product_id,notnull" json:"product_id"`
	MarketID  int64 `bun:"market_id,notnull" json:"market_id"`

	Status            ListingStatus   `bun:"status,notnull,default:'active'" json:"status"`
	PricePerUnit      decimal.Decimal `bun:"price_per_unit,notnull" json:"price_per_unit"`
	QuantityAvailable int             `bun:"quantity_available,notnull,default:0" json:"quantity_available"`

	Featured        bool       `bun:"featured,notnull,default:false" json:"featured"`
	IsFlagged       bool       `bun:"is_flagged,notnull,default:false" json:"is_flagged"`
	FlagReason      string     `bun:"flag_reason" json:"flag_reason,omitempty"`
	ModerationNotes string     `bun:"moderation_notes" json:"moderation_notes,omitempty"`
	ModeratedBy     *int64     `bun:"moderated_by" json:"moderated_by,omitempty"`
	LastStatusAt    *time.Time `bun:"last_status_at" json:"last_status_at,omitempty"`

	AdminMeta

	Vendor  *Vendor  `bun:"rel:belongs-to,join:vendor_id=id" json:"vendor,omitempty"`
	Product *Product `bun:"rel:belongs-to,join:product_id=id" json:"product,omitempty"`
	Market  *Market  `bun:"rel:belongs-to,join:market_id=id" json:"market,omitempty"`
}
