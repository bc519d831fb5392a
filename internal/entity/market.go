package entity

import "github.com/uptrace/bun"

// Market represents a physical marketplace where vendors operate.
type Market struct {
	bun.BaseModel `bun:"table:markets"`

	ID          int64  `bun:",pk,autoincrement" json:"id"`
	Name        string `bun:"name,notnull" json:"name"`
	City        string `bun:"city" json:"city"`
	Address     string `bun:"address" json:"address"`
	Description string `bun:"description" json:"description"`

	AdminMeta
}
