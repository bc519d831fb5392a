package entity

import "github.com/uptrace/bun"

// Buyer represents a restaurant purchasing produce through the marketplace.
type Buyer struct {
	bun.BaseModel `bun:"table:buyers"`

	ID            int64  `bun:",pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull" json:"name"`
	Email         string `bun:"email,notnull,unique" json:"email"`
	Phone         string `bun:"phone,unique" json:"phone"`
	LicenseNumber string `bun:"license_number,unique" json:"license_number"`
	CuisineType   string `bun:"cuisine_type" json:"cuisine_type,omitempty"`

	Verification
	AdminMeta
}

// Moderation surface used by the verification flow.

func (b *Buyer) Type() EntityType     { return TypeBuyer }
func (b *Buyer) EntityID() int64      { return b.ID }
func (b *Buyer) DisplayName() string  { return b.Name }
func (b *Buyer) Meta() *AdminMeta     { return &b.AdminMeta }
func (b *Buyer) State() *Verification { return &b.Verification }
