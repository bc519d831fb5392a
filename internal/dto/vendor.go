package dto

// OwnerAccount describes the staff account created alongside a vendor so
// the business can sign in immediately.
type OwnerAccount struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

// CreateVendorRequest registers a vendor together with its owner account.
type CreateVendorRequest struct {
	BusinessName  string        `json:"business_name" validate:"required"`
	Email         string        `json:"email" validate:"required,email"`
	Phone         string        `json:"phone"`
	LicenseNumber string        `json:"license_number"`
	Description   string        `json:"description"`
	LogoURL       string        `json:"logo_url" validate:"omitempty,url"`
	MarketIDs     []int64       `json:"market_ids" validate:"required,min=1,unique,dive,gt=0"`
	Owner         *OwnerAccount `json:"owner" validate:"omitempty"`
}

// UpdateVendorRequest edits a vendor; nil fields are left untouched.
// MarketIDs, when present, replaces the full market assignment.
type UpdateVendorRequest struct {
	BusinessName  *string  `json:"business_name" validate:"omitempty,min=1"`
	Email         *string  `json:"email" validate:"omitempty,email"`
	Phone         *string  `json:"phone"`
	LicenseNumber *string  `json:"license_number"`
	Description   *string  `json:"description"`
	LogoURL       *string  `json:"logo_url" validate:"omitempty,url"`
	MarketIDs     *[]int64 `json:"market_ids" validate:"omitempty,min=1,unique,dive,gt=0"`
}
