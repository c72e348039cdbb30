package models

import "time"

// DashboardTotals is the admin overview of platform volume.
type DashboardTotals struct {
	Users             int `db:"users" json:"users"`
	Instructors       int `db:"instructors" json:"instructors"`
	Categories        int `db:"categories" json:"categories"`
	Courses           int `db:"courses" json:"courses"`
	PublishedCourses  int `db:"published_courses" json:"published_courses"`
	DraftCourses      int `db:"draft_courses" json:"draft_courses"`
	ActiveEnrollments int `db:"active_enrollments" json:"active_enrollments"`
	CompletedCourses  int `db:"completed_courses" json:"completed_courses"`
}

// TopCourse ranks a course by enrollment volume.
type TopCourse struct {
	CourseID    string `db:"course_id" json:"course_id"`
	Title       string `db:"title" json:"title"`
	Enrollments int    `db:"enrollments" json:"enrollments"`
}

// AdminDashboard is the cached composite payload served to administrators.
type AdminDashboard struct {
	Totals      DashboardTotals `json:"totals"`
	TopCourses  []TopCourse     `json:"top_courses"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// RosterEntry is one line of a course roster export.
type RosterEntry struct {
	UserName   string           `db:"user_name"`
	UserEmail  string           `db:"user_email"`
	Status     EnrollmentStatus `db:"status"`
	Progress   float64          `db:"progress"`
	EnrolledAt time.Time        `db:"enrolled_at"`
}
