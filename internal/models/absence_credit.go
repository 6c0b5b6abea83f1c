package models

import "time"

// AbsenceCredit entitles a student to one make-up session.
type AbsenceCredit struct {
	ID           string     `db:"id" json:"id"`
	StudentID    string     `db:"student_id" json:"studentId"`
	OriginSlotID *string    `db:"origin_slot_id" json:"originSlotId,omitempty"`
	AbsenceDate  time.Time  `db:"absence_date" json:"absenceDate"`
	Reason       string     `db:"reason" json:"reason"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	Consumed     bool       `db:"consumed" json:"consumed"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}

// ExpiredAt reports whether the credit can no longer cover a session on day.
func (c AbsenceCredit) ExpiredAt(day time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return day.After(*c.ExpiresAt)
}

// CreditUsage consumes a credit against a session date.
type CreditUsage struct {
	ID                  string    `db:"id" json:"id"`
	CreditID            string    `db:"credit_id" json:"creditId"`
	StudentID           string    `db:"student_id" json:"studentId"`
	SessionDate         time.Time `db:"session_date" json:"sessionDate"`
	SlotID              *string   `db:"slot_id" json:"slotId,omitempty"`
	AttendanceConfirmed bool      `db:"attendance_confirmed" json:"attendanceConfirmed"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`
}

// CreditFilter narrows credit listings.
type CreditFilter struct {
	StudentID     string
	AvailableOnly bool
}
