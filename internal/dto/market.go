package dto

// CreateMarketRequest registers a new marketplace location.
type CreateMarketRequest struct {
	Name        string `json:"name" validate:"required"`
	City        string `json:"city" validate:"required"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// UpdateMarketRequest edits a market; nil fields are left untouched.
type UpdateMarketRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	City        *string `json:"city" validate:"omitempty,min=1"`
	Address     *string `json:"address"`
	Description *string `json:"description"`
}
