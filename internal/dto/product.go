package dto

// CreateProductRequest adds a catalog product.
type CreateProductRequest struct {
	Name        string `json:"name" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Unit        string `json:"unit" validate:"required"`
	Description string `json:"description"`
}

// UpdateProductRequest edits a product; nil fields are left untouched.
type UpdateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Category    *string `json:"category" validate:"omitempty,min=1"`
	Unit        *string `json:"unit" validate:"omitempty,min=1"`
	Description *string `json:"description"`
}
