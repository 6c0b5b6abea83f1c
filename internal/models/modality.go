package models

import "time"

// Modality is a class type (pilates, functional, ...). DefaultCapacity bounds
// slots that do not carry their own limit; zero means unlimited.
type Modality struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description"`
	DefaultCapacity int       `db:"default_capacity" json:"defaultCapacity"`
	Color           *string   `db:"color" json:"color,omitempty"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}
