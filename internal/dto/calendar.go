package dto

// HolidayRequest creates a holiday.
type HolidayRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Name string `json:"name" validate:"required,max=150"`
}

// BlockedSlotRequest blocks one occurrence of a slot.
type BlockedSlotRequest struct {
	SlotID string `json:"slotId" validate:"required"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"max=500"`
}

// CalendarQuery bounds calendar listings.
type CalendarQuery struct {
	From   string `form:"from"`
	To     string `form:"to"`
	SlotID string `form:"slotId"`
}
