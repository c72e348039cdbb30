package models

import "time"

// CourseLevel grades course difficulty.
type CourseLevel string

// CourseStatus tracks the publication lifecycle.
type CourseStatus string

const (
	LevelBeginner     CourseLevel = "beginner"
	LevelIntermediate CourseLevel = "intermediate"
	LevelAdvanced     CourseLevel = "advanced"

	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

// Course is the central catalog entity. Counter fields are denormalized and
// kept consistent by explicit recompute after writes to lessons/enrollments.
type Course struct {
	ID               string       `db:"id" json:"id"`
	Title            string       `db:"title" json:"title"`
	Slug             string       `db:"slug" json:"slug"`
	Description      string       `db:"description" json:"description,omitempty"`
	CategoryID       string       `db:"category_id" json:"category_id"`
	InstructorID     string       `db:"instructor_id" json:"instructor_id"`
	Price            float64      `db:"price" json:"price"`
	DiscountPrice    *float64     `db:"discount_price" json:"discount_price,omitempty"`
	Level            CourseLevel  `db:"level" json:"level"`
	Status           CourseStatus `db:"status" json:"status"`
	ThumbnailURL     string       `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	LessonsCount     int          `db:"lessons_count" json:"lessons_count"`
	EnrolledStudents int          `db:"enrolled_students" json:"enrolled_students"`
	DurationMinutes  int          `db:"duration_minutes" json:"duration_minutes"`
	AverageRating    float64      `db:"average_rating" json:"average_rating"`
	RatingCount      int          `db:"rating_count" json:"rating_count"`
	Active           bool         `db:"active" json:"-"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseDetail joins reference names needed by detail views.
type CourseDetail struct {
	Course
	CategoryName   string `db:"category_name" json:"category_name"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
}

// CourseStats is the recomputed aggregate snapshot for a course.
type CourseStats struct {
	LessonsCount     int `db:"lessons_count"`
	EnrolledStudents int `db:"enrolled_students"`
	DurationMinutes  int `db:"duration_minutes"`
}
