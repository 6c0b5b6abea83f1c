package dto

// GrantCreditRequest records an absence entitled to a make-up session.
type GrantCreditRequest struct {
	StudentID    string  `json:"studentId" validate:"required"`
	OriginSlotID *string `json:"originSlotId"`
	AbsenceDate  string  `json:"absenceDate" validate:"required,datetime=2006-01-02"`
	Reason       string  `json:"reason" validate:"max=500"`
	ExpiresAt    *string `json:"expiresAt" validate:"omitempty,datetime=2006-01-02"`
}

// UseCreditRequest consumes a credit on a session date.
type UseCreditRequest struct {
	SessionDate string  `json:"sessionDate" validate:"required,datetime=2006-01-02"`
	SlotID      *string `json:"slotId"`
}

// ConfirmAttendanceRequest flags whether the make-up session was attended.
type ConfirmAttendanceRequest struct {
	Confirmed *bool `json:"confirmed" validate:"required"`
}
