package models

import (
	"time"

	"github.com/lib/pq"
)

// Instructor is the teaching profile owned one-to-one by a user.
type Instructor struct {
	ID            string         `db:"id" json:"id"`
	UserID        string         `db:"user_id" json:"user_id"`
	Title         string         `db:"title" json:"title"`
	Bio           string         `db:"bio" json:"bio,omitempty"`
	Expertise     pq.StringArray `db:"expertise" json:"expertise"`
	Website       string         `db:"website" json:"website,omitempty"`
	LinkedIn      string         `db:"linkedin" json:"linkedin,omitempty"`
	Twitter       string         `db:"twitter" json:"twitter,omitempty"`
	RatingAverage float64        `db:"rating_average" json:"rating_average"`
	RatingCount   int            `db:"rating_count" json:"rating_count"`
	TotalStudents int            `db:"total_students" json:"total_students"`
	TotalCourses  int            `db:"total_courses" json:"total_courses"`
	Active        bool           `db:"active" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// InstructorDetail enriches Instructor with the owning user's identity.
type InstructorDetail struct {
	Instructor
	UserName  string `db:"user_name" json:"user_name"`
	UserEmail string `db:"user_email" json:"user_email"`
}
