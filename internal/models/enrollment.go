package models

import "time"

// Enrollment links one student to one schedule slot. Rows are deactivated,
// never deleted, so attendance history survives moves.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"studentId"`
	SlotID    string    `db:"slot_id" json:"slotId"`
	Active    bool      `db:"active" json:"active"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// EnrollmentDetail enriches Enrollment with student and slot info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string  `db:"student_name" json:"studentName"`
	StudentEmail *string `db:"student_email" json:"studentEmail,omitempty"`
	DayOfWeek    int     `db:"day_of_week" json:"dayOfWeek"`
	StartTime    string  `db:"start_time" json:"startTime"`
	EndTime      string  `db:"end_time" json:"endTime"`
	ModalityName string  `db:"modality_name" json:"modalityName"`
	TeacherName  string  `db:"teacher_name" json:"teacherName"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SlotID    string
	Active    *bool
	Page      int
	PageSize  int
}
