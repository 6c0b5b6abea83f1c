package models

import "time"

// Weekdays indexes day names by ScheduleSlot.DayOfWeek (0 = Sunday).
var Weekdays = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ScheduleSlot is a recurring weekly class (horário fixo).
type ScheduleSlot struct {
	ID         string    `db:"id" json:"id"`
	TeacherID  string    `db:"teacher_id" json:"teacherId"`
	ModalityID string    `db:"modality_id" json:"modalityId"`
	DayOfWeek  int       `db:"day_of_week" json:"dayOfWeek"`
	StartTime  string    `db:"start_time" json:"startTime"`
	EndTime    string    `db:"end_time" json:"endTime"`
	Capacity   *int      `db:"capacity" json:"capacity,omitempty"`
	Active     bool      `db:"active" json:"active"`
	Frozen     bool      `db:"frozen" json:"frozen"`
	Waiting    bool      `db:"waiting" json:"waiting"`
	Absent     bool      `db:"absent" json:"absent"`
	Notes      string    `db:"notes" json:"notes"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// ScheduleSlotDetail enriches a slot with names and live occupancy.
type ScheduleSlotDetail struct {
	ScheduleSlot
	TeacherName       string `db:"teacher_name" json:"teacherName"`
	ModalityName      string `db:"modality_name" json:"modalityName"`
	DefaultCapacity   int    `db:"default_capacity" json:"defaultCapacity"`
	ActiveEnrollments int    `db:"active_enrollments" json:"activeEnrollments"`
}

// Label renders "Modality - Monday 07:00".
func (d ScheduleSlotDetail) Label() string {
	day := ""
	if d.DayOfWeek >= 0 && d.DayOfWeek < len(Weekdays) {
		day = Weekdays[d.DayOfWeek]
	}
	return d.ModalityName + " - " + day + " " + d.StartTime
}

// ScheduleSlotFilter narrows slot listings.
type ScheduleSlotFilter struct {
	TeacherID  string
	ModalityID string
	DayOfWeek  *int
	Active     *bool
}

// SlotCapacity is the locked view of a slot used by capacity checks.
type SlotCapacity struct {
	SlotID          string `db:"id"`
	Active          bool   `db:"active"`
	Capacity        *int   `db:"capacity"`
	DefaultCapacity int    `db:"default_capacity"`
}

// Limit resolves the effective enrollment limit: the slot's own value, else
// the modality default. Zero means unlimited.
func (s SlotCapacity) Limit() int {
	if s.Capacity != nil && *s.Capacity > 0 {
		return *s.Capacity
	}
	if s.DefaultCapacity > 0 {
		return s.DefaultCapacity
	}
	return 0
}

// Full reports whether active enrollments reached the limit.
func (s SlotCapacity) Full(active int) bool {
	limit := s.Limit()
	return limit > 0 && active >= limit
}

// Occupancy reports how many seats a slot has left.
type Occupancy struct {
	SlotID    string `json:"slotId"`
	Capacity  int    `json:"capacity"`
	Active    int    `json:"active"`
	Available *int   `json:"available"`
}
