package models

import "time"

// Category groups courses under a unique name and derived slug.
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description,omitempty"`
	IconURL     string    `db:"icon_url" json:"icon_url,omitempty"`
	Active      bool      `db:"active" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CategoryDetail adds the live course count, derived on read rather than stored.
type CategoryDetail struct {
	Category
	CourseCount int `db:"course_count" json:"course_count"`
}
