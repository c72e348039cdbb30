package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/eduplex/course-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the admin overview.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Totals counts active records across the primary collections.
func (r *DashboardRepository) Totals(ctx context.Context) (*models.DashboardTotals, error) {
	const q = `SELECT
        (SELECT COUNT(*) FROM users WHERE active = TRUE) AS users,
        (SELECT COUNT(*) FROM instructors WHERE active = TRUE) AS instructors,
        (SELECT COUNT(*) FROM categories WHERE active = TRUE) AS categories,
        (SELECT COUNT(*) FROM courses WHERE active = TRUE) AS courses,
        (SELECT COUNT(*) FROM courses WHERE active = TRUE AND status = 'published') AS published_courses,
        (SELECT COUNT(*) FROM courses WHERE active = TRUE AND status = 'draft') AS draft_courses,
        (SELECT COUNT(*) FROM enrollments WHERE active = TRUE AND status = 'active') AS active_enrollments,
        (SELECT COUNT(*) FROM enrollments WHERE active = TRUE AND status = 'completed') AS completed_courses`
	var totals models.DashboardTotals
	if err := r.db.GetContext(ctx, &totals, q); err != nil {
		return nil, fmt.Errorf("dashboard totals: %w", err)
	}
	return &totals, nil
}

// TopCourses ranks active courses by live enrollment volume.
func (r *DashboardRepository) TopCourses(ctx context.Context, limit int) ([]models.TopCourse, error) {
	if limit <= 0 {
		limit = 5
	}
	const q = `SELECT c.id AS course_id, c.title, COUNT(e.id) AS enrollments
        FROM courses c
        LEFT JOIN enrollments e ON e.course_id = c.id AND e.active = TRUE AND e.status <> 'cancelled'
        WHERE c.active = TRUE
        GROUP BY c.id, c.title
        ORDER BY enrollments DESC, c.title ASC
        LIMIT $1`
	var top []models.TopCourse
	if err := r.db.SelectContext(ctx, &top, q, limit); err != nil {
		return nil, fmt.Errorf("dashboard top courses: %w", err)
	}
	return top, nil
}
