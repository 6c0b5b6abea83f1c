package dto

// CreateChangeRequest is the payload for proposing a slot move.
type CreateChangeRequest struct {
	StudentID          string `json:"studentId" validate:"required"`
	SourceEnrollmentID string `json:"sourceEnrollmentId"`
	CurrentSlotID      string `json:"currentSlotId" validate:"required"`
	TargetSlotID       string `json:"targetSlotId" validate:"required"`
	Reason             string `json:"reason" validate:"max=500"`
}

// RejectChangeRequest carries the reviewer's justification.
type RejectChangeRequest struct {
	RejectionReason string `json:"rejectionReason" validate:"required,max=500"`
}

// ChangeRequestQuery captures list filters from the query string.
type ChangeRequestQuery struct {
	StudentID string `form:"studentId"`
	Status    string `form:"status"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

// CancelChangeRequestResponse is returned after a cancellation.
type CancelChangeRequestResponse struct {
	Success bool `json:"success"`
}
