package entity

import "github.com/uptrace/bun"

// Vendor represents a produce seller operating in one or more markets.
type Vendor struct {
	bun.BaseModel `bun:"table:vendors"`

	ID            int64  `bun:",pk,autoincrement" json:"id"`
	BusinessName  string `bun:"business_name,notnull" json:"business_name"`
	Email         string `bun:"email,notnull,unique" json:"email"`
	Phone         string `bun:"phone,unique" json:"phone"`
	LicenseNumber string `bun:"license_number,unique" json:"license_number"`
	Description   string `bun:"description" json:"description"`
	LogoURL       string `bun:"logo_url" json:"logo_url,omitempty"`

	Verification
	AdminMeta

	Markets []*Market `bun:"m2m:vendor_markets,join:Vendor=Market" json:"markets,omitempty"`
}

// Moderation surface used by the verification flow.

func (v *Vendor) Type() EntityType { return TypeVendor }
func (v *Vendor) EntityID() int64 { return v.ID }
func (v *Vendor) DisplayName() string { return v.BusinessName }
func (v *Vendor) Meta() *AdminMeta { return &v.AdminMeta }
func (v *Vendor) State() *Verification { return &v.Verification }

// VendorMarket joins vendors to the markets they operate in.
type VendorMarket struct {
	bun.BaseModel `bun:"table:vendor_markets"`

	VendorID int64   `bun:"vendor_id,pk" json:"vendor_id"`
	Vendor   *Vendor `bun:"rel:belongs-to,join:vendor_id=id" json:"-"`
	MarketID int64   `bun:"market_id,pk" json:"market_id"`
	Market   *Market `bun:"rel:belongs-to,join:market_id=id" json:"-"`
}
