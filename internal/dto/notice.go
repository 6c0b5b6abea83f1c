package dto

import "time"

// NoticeRequest is used to create or update a notice.
type NoticeRequest struct {
	Title    string     `json:"title" validate:"required,max=200"`
	Message  string     `json:"message" validate:"required,max=5000"`
	Audience string     `json:"audience" validate:"omitempty,oneof=all students teachers"`
	Pinned   bool       `json:"pinned"`
	Active   *bool      `json:"active"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
}

// NoticeQuery filters notice listings.
type NoticeQuery struct {
	Audience string `form:"audience"`
	Active   *bool  `form:"active"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}
