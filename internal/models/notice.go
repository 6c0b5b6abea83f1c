package models

import "time"

// NoticeAudience defines who can see a notice.
type NoticeAudience string

const (
	NoticeAudienceAll      NoticeAudience = "all"
	NoticeAudienceStudents NoticeAudience = "students"
	NoticeAudienceTeachers NoticeAudience = "teachers"
)

// Notice is a board message (aviso) shown in the panel.
type Notice struct {
	ID        string         `db:"id" json:"id"`
	Title     string         `db:"title" json:"title"`
	Message   string         `db:"message" json:"message"`
	Audience  NoticeAudience `db:"audience" json:"audience"`
	Pinned    bool           `db:"pinned" json:"pinned"`
	Active    bool           `db:"active" json:"active"`
	StartsAt  time.Time      `db:"starts_at" json:"startsAt"`
	EndsAt    *time.Time     `db:"ends_at" json:"endsAt,omitempty"`
	CreatedBy string         `db:"created_by" json:"createdBy"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// NoticeFilter allows listing notices.
type NoticeFilter struct {
	Audience NoticeAudience
	Active   *bool
	Page     int
	PageSize int
}
