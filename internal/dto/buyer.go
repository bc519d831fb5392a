package dto

// CreateBuyerRequest registers a restaurant buyer.
type CreateBuyerRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"license_number"`
	CuisineType   string `json:"cuisine_type"`
}

// UpdateBuyerRequest edits a buyer; nil fields are left untouched.
type UpdateBuyerRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone"`
	LicenseNumber *string `json:"license_number"`
	CuisineType   *string `json:"cuisine_type"`
}
