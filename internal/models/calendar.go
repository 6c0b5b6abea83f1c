package models

import "time"

// Holiday closes the studio for a whole day.
type Holiday struct {
	ID        string    `db:"id" json:"id"`
	Date      time.Time `db:"date" json:"date"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// BlockedSlot cancels one occurrence of a recurring slot.
type BlockedSlot struct {
	ID        string    `db:"id" json:"id"`
	SlotID    string    `db:"slot_id" json:"slotId"`
	Date      time.Time `db:"date" json:"date"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// DateRange bounds calendar listings; nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}
