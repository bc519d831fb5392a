package entity

import "time"

// AdminMeta carries the administrative lifecycle fields shared by every
// moderated entity. A deleted record always has IsActive=false and is
// immutable except for re-reads.
type AdminMeta struct {
	IsActive        bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	IsDeleted       bool       `bun:"is_deleted,notnull,default:false" json:"is_deleted"`
	DeletedAt       *time.Time `bun:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy       *int64     `bun:"deleted_by" json:"deleted_by,omitempty"`
	CreatedBy       int64      `bun:"created_by,notnull" json:"created_by"`
	UpdatedBy       *int64     `bun:"updated_by" json:"updated_by,omitempty"`
	StatusUpdatedBy *int64     `bun:"status_updated_by" json:"status_updated_by,omitempty"`
	StatusUpdatedAt *time.Time `bun:"status_updated_at" json:"status_updated_at,omitempty"`
	AdminNotes      string     `bun:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero" json:"updated_at"`
}

// VerificationStatus is the three-state moderation flag gating marketplace
// participation for vendors and buyers.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Valid reports whether s is one of the known verification states.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return true
	}
	return false
}

// Verification holds the moderation state for verifiable entities.
// VerificationDate is non-nil iff the status is approved.
type Verification struct {
	VerificationStatus VerificationStatus `bun:"verification_status,notnull,default:'pending'" json:"verification_status"`
	VerificationDate   *time.Time         `bun:"verification_date" json:"verification_date,omitempty"`
}

// EntityType identifies a moderated collection in guard checks and audit
// entries.
type EntityType string

const (
	TypeMarket  EntityType = "market"
	TypeVendor  EntityType = "vendor"
	TypeBuyer   EntityType = "buyer"
	TypeProduct EntityType = "product"
	TypeListing EntityType = "listing"
	TypeUser    EntityType = "user"
	TypeOrder   EntityType = "order"
)
