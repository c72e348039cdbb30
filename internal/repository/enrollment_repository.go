package repository

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eduplex/course-api/internal/models"
	"github.com/eduplex/course-api/pkg/query"
)

// EnrollmentRepository manages persistence for enrollments and their
// completed-lesson sets.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

var enrollmentFilterFields = map[string]query.Field{
	"user_id":     {Column: "user_id", Kind: query.KindText},
	"course_id":   {Column: "course_id", Kind: query.KindText},
	"status":      {Column: "status", Kind: query.KindText},
	"progress":    {Column: "progress", Kind: query.KindFloat},
	"enrolled_at": {Column: "enrolled_at", Kind: query.KindTime},
}

var enrollmentSortFields = map[string]string{
	"progress":    "progress",
	"enrolled_at": "enrolled_at",
	"created_at":  "created_at",
}

var enrollmentProjectionFields = map[string]string{
	"user_id":      "user_id",
	"course_id":    "course_id",
	"status":       "status",
	"progress":     "progress",
	"enrolled_at":  "enrolled_at",
	"completed_at": "completed_at",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
}

var enrollmentDefaultColumns = []string{
	"id", "user_id", "course_id", "status", "progress", "enrolled_at",
	"completed_at", "created_at", "updated_at",
}

// List returns enrollments through the shared query pipeline. Callers scope
// to a user by forcing the user_id filter before handing over the values.
func (r *EnrollmentRepository) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Enrollment, *query.Pagination, error) {
	b := query.New("enrollments").
		Filter(values, enrollmentFilterFields).
		Sort(values, enrollmentSortFields).
		Project(values, enrollmentProjectionFields, enrollmentDefaultColumns).
		Paginate(values)
	if !includeInactive {
		b.ActiveOnly()
	}
	return query.Execute[models.Enrollment](ctx, r.db, b)
}

// FindByID fetches an active enrollment joined with user and course labels.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const q = `SELECT e.*, u.name AS user_name, c.title AS course_title
        FROM enrollments e
        JOIN users u ON u.id = e.user_id
        JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1 AND e.active = TRUE`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, q, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByIDAny ignores the soft-delete flag.
func (r *EnrollmentRepository) FindByIDAny(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, "SELECT * FROM enrollments WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create inserts a new enrollment. The partial unique index on
// (user_id, course_id) for live active-status rows decides concurrent
// duplicate attempts; the loser's unique violation propagates to the caller.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	const q = `INSERT INTO enrollments (id, user_id, course_id, status, progress, enrolled_at, completed_at, active, created_at, updated_at)
        VALUES (:id, :user_id, :course_id, :status, :progress, :enrolled_at, :completed_at, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateProgress persists progress and status without touching other fields.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const q = `UPDATE enrollments SET status = :status, progress = :progress,
        completed_at = :completed_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, q, enrollment); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}
	return nil
}

// MarkLessonCompleted records a completed lesson, reporting whether the row
// was newly inserted. ON CONFLICT DO NOTHING makes redundant calls no-ops.
func (r *EnrollmentRepository) MarkLessonCompleted(ctx context.Context, enrollmentID, lessonID string) (bool, error) {
	const q = `INSERT INTO enrollment_lessons (enrollment_id, lesson_id, completed_at)
        VALUES ($1, $2, $3) ON CONFLICT (enrollment_id, lesson_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, enrollmentID, lessonID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark lesson completed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark lesson completed: %w", err)
	}
	return rows > 0, nil
}

// ProgressCounters returns the completed and total active lesson counts for
// an enrollment's course.
func (r *EnrollmentRepository) ProgressCounters(ctx context.Context, enrollmentID, courseID string) (*models.EnrollmentProgress, error) {
	const q = `SELECT
        (SELECT COUNT(*) FROM enrollment_lessons el
            JOIN lessons l ON l.id = el.lesson_id
            WHERE el.enrollment_id = $1 AND l.active = TRUE) AS completed_lessons,
        (SELECT COUNT(*) FROM lessons WHERE course_id = $2 AND active = TRUE) AS total_lessons`
	var progress models.EnrollmentProgress
	if err := r.db.GetContext(ctx, &progress, q, enrollmentID, courseID); err != nil {
		return nil, fmt.Errorf("enrollment progress counters: %w", err)
	}
	return &progress, nil
}

// SetActive flips the soft-delete flag with the shared transition guard.
func (r *EnrollmentRepository) SetActive(ctx context.Context, id string, active bool) error {
	return setActiveFlag(ctx, r.db, "enrollments", id, active)
}

// Roster returns the export rows for a course's enrollments.
func (r *EnrollmentRepository) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	const q = `SELECT u.name AS user_name, u.email AS user_email, e.status, e.progress, e.enrolled_at
        FROM enrollments e
        JOIN users u ON u.id = e.user_id
        WHERE e.course_id = $1 AND e.active = TRUE
        ORDER BY e.enrolled_at ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, q, courseID); err != nil {
		return nil, fmt.Errorf("course roster: %w", err)
	}
	return roster, nil
}
