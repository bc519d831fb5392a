package entity

import "github.com/uptrace/bun"

// Product is a catalog item vendors can list for sale.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID          int64  `bun:",pk,autoincrement" json:"id"`
	Name        string `bun:"name,notnull" json:"name"`
	Category    string `bun:"category" json:"category"`
	Unit        string `bun:"unit" json:"unit"`
	Description string `bun:"description" json:"description"`

	AdminMeta
}
