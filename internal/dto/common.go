package dto

// DeactivateRequest carries the reason an admin is deactivating a record.
type DeactivateRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// VerificationRequest moves a vendor or buyer to a new verification status.
// Reason is mandatory when rejecting or when leaving the approved state.
type VerificationRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
	Reason string `json:"reason"`
}

// ListQuery carries the pagination parameters shared by list endpoints.
type ListQuery struct {
	Limit          int    `query:"limit"`
	Offset         int    `query:"offset"`
	Search         string `query:"search"`
	IncludeDeleted bool   `query:"include_deleted"`
}
