package models

import "time"

// Lesson belongs to a course; Position is unique per course and assigned
// sequentially on creation.
type Lesson struct {
	ID            string    `db:"id" json:"id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	Title         string    `db:"title" json:"title"`
	Content       string    `db:"content" json:"content,omitempty"`
	VideoURL      string    `db:"video_url" json:"video_url,omitempty"`
	DurationMin   int       `db:"duration_min" json:"duration_min"`
	Position      int       `db:"position" json:"position"`
	IsFreePreview bool      `db:"is_free_preview" json:"is_free_preview"`
	Active        bool      `db:"active" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
