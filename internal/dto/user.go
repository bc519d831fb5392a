package dto

// CreateUserRequest registers an account. Staff roles must reference the
// vendor or buyer they belong to.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	Role     string `json:"role" validate:"required,oneof=admin vendor_staff buyer_staff"`
	VendorID *int64 `json:"vendor_id" validate:"omitempty,gt=0"`
	BuyerID  *int64 `json:"buyer_id" validate:"omitempty,gt=0"`
}

// UpdateUserRequest edits an account; nil fields are left untouched.
type UpdateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone"`
}
