package dto

// ScheduleSlotRequest is used to create or update a recurring slot.
type ScheduleSlotRequest struct {
	TeacherID  string `json:"teacherId" validate:"required"`
	ModalityID string `json:"modalityId" validate:"required"`
	DayOfWeek  *int   `json:"dayOfWeek" validate:"required,min=0,max=6"`
	StartTime  string `json:"startTime" validate:"required,clock"`
	EndTime    string `json:"endTime" validate:"required,clock"`
	Capacity   *int   `json:"capacity" validate:"omitempty,gte=0"`
	Notes      string `json:"notes" validate:"max=500"`
	Active     *bool  `json:"active"`
}

// SlotFlagsRequest updates the grid markers of a slot.
type SlotFlagsRequest struct {
	Frozen  bool   `json:"frozen"`
	Waiting bool   `json:"waiting"`
	Absent  bool   `json:"absent"`
	Notes   string `json:"notes" validate:"max=500"`
}

// ScheduleSlotQuery filters slot listings.
type ScheduleSlotQuery struct {
	TeacherID  string `form:"teacherId"`
	ModalityID string `form:"modalityId"`
	DayOfWeek  *int   `form:"dayOfWeek"`
	Active     *bool  `form:"active"`
}

// EnrollRequest places a student on a slot.
type EnrollRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	SlotID    string `json:"slotId" validate:"required"`
	Notes     string `json:"notes" validate:"max=500"`
}

// EnrollmentQuery filters enrollment listings.
type EnrollmentQuery struct {
	StudentID string `form:"studentId"`
	SlotID    string `form:"slotId"`
	Active    *bool  `form:"active"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}
