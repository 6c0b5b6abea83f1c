package models

import "time"

// ChangeRequestStatus captures workflow states for reschedule requests.
type ChangeRequestStatus string

const (
	ChangeRequestPending  ChangeRequestStatus = "pending"
	ChangeRequestApproved ChangeRequestStatus = "approved"
	ChangeRequestRejected ChangeRequestStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ChangeRequestStatus) Valid() bool {
	switch s {
	case ChangeRequestPending, ChangeRequestApproved, ChangeRequestRejected:
		return true
	}
	return false
}

// ChangeRequest proposes moving a student's enrollment from CurrentSlotID to
// TargetSlotID (reagendamento). TargetEnrollmentID is captured on approval so
// a later cancel can undo exactly that transfer. TargetPreexisting marks a
// target enrollment that was already active before approval; cancel leaves it.
type ChangeRequest struct {
	ID                 string              `db:"id" json:"id"`
	StudentID          string              `db:"student_id" json:"studentId"`
	SourceEnrollmentID string              `db:"source_enrollment_id" json:"sourceEnrollmentId"`
	CurrentSlotID      string              `db:"current_slot_id" json:"currentSlotId"`
	TargetSlotID       string              `db:"target_slot_id" json:"targetSlotId"`
	TargetEnrollmentID *string             `db:"target_enrollment_id" json:"targetEnrollmentId,omitempty"`
	TargetPreexisting  bool                `db:"target_preexisting" json:"targetPreexisting"`
	Reason             string              `db:"reason" json:"reason"`
	Status             ChangeRequestStatus `db:"status" json:"status"`
	RejectionReason    *string             `db:"rejection_reason" json:"rejectionReason,omitempty"`
	ApprovedBy         *string             `db:"approved_by" json:"approvedBy,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updatedAt"`
}

// ChangeRequestFilter constrains listing queries.
type ChangeRequestFilter struct {
	StudentID string
	Status    []ChangeRequestStatus
	Limit     int
	Offset    int
}
