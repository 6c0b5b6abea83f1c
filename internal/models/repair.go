package models

import "time"

// DuplicateEnrollment groups active enrollments sharing (student, slot).
type DuplicateEnrollment struct {
	StudentID     string   `db:"student_id" json:"studentId"`
	SlotID        string   `db:"slot_id" json:"slotId"`
	EnrollmentIDs []string `db:"-" json:"enrollmentIds"`
}

// StaleTransfer is an approved change request whose source enrollment is
// still active, with the facts needed to tell a half-applied transfer from
// a source that was legitimately reactivated afterwards.
type StaleTransfer struct {
	ChangeRequestID    string    `db:"change_request_id" json:"changeRequestId"`
	StudentID          string    `db:"student_id" json:"studentId"`
	SourceEnrollmentID string    `db:"source_enrollment_id" json:"sourceEnrollmentId"`
	TargetEnrollmentID *string   `db:"target_enrollment_id" json:"targetEnrollmentId,omitempty"`
	TargetActive       *bool     `db:"target_active" json:"targetActive,omitempty"`
	SourceRetargeted   bool      `db:"source_retargeted" json:"-"`
	ApprovedAt         time.Time `db:"approved_at" json:"approvedAt"`
	SourceUpdatedAt    time.Time `db:"source_updated_at" json:"sourceUpdatedAt"`
}

// Interrupted reports whether the transfer stopped halfway: the source is
// still active and the target enrollment is missing or inactive. A source
// touched after approval, by a new enrollment or by a later request moving
// the student back, is not interrupted.
func (t StaleTransfer) Interrupted() bool {
	if t.SourceRetargeted || t.SourceUpdatedAt.After(t.ApprovedAt) {
		return false
	}
	return t.TargetActive == nil || !*t.TargetActive
}
