package entity

import "github.com/uptrace/bun"

// UserRole scopes a user account to the entity it belongs to.
type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleVendorStaff UserRole = "vendor_staff"
	RoleBuyerStaff  UserRole = "buyer_staff"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleVendorStaff, RoleBuyerStaff:
		return true
	}
	return false
}

// User is an account linked to a vendor or buyer, or an administrator.
// Vendor/buyer staff are mutated only as cascades of their parent's
// lifecycle operations.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID       int64    `bun:",pk,autoincrement" json:"id"`
	Name     string   `bun:"name,notnull" json:"name"`
	Email    string   `bun:"email,notnull,unique" json:"email"`
	Phone    string   `bun:"phone" json:"phone,omitempty"`
	Role     UserRole `bun:"role,notnull" json:"role"`
	VendorID *int64   `bun:"vendor_id" json:"vendor_id,omitempty"`
	BuyerID  *int64   `bun:"buyer_id" json:"buyer_id,omitempty"`

	AdminMeta
}
