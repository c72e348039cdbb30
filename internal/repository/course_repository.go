package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eduplex/course-api/internal/models"
	"github.com/eduplex/course-api/pkg/query"
)

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

var courseFilterFields = map[string]query.Field{
	"category_id":    {Column: "category_id", Kind: query.KindText},
	"instructor_id":  {Column: "instructor_id", Kind: query.KindText},
	"level":          {Column: "level", Kind: query.KindText},
	"status":         {Column: "status", Kind: query.KindText},
	"price":          {Column: "price", Kind: query.KindFloat},
	"average_rating": {Column: "average_rating", Kind: query.KindFloat},
	"created_at":     {Column: "created_at", Kind: query.KindTime},
}

var courseSortFields = map[string]string{
	"title":             "title",
	"price":             "price",
	"average_rating":    "average_rating",
	"enrolled_students": "enrolled_students",
	"created_at":        "created_at",
}

var courseProjectionFields = map[string]string{
	"title":             "title",
	"slug":              "slug",
	"description":       "description",
	"category_id":       "category_id",
	"instructor_id":     "instructor_id",
	"price":             "price",
	"discount_price":    "discount_price",
	"level":             "level",
	"status":            "status",
	"thumbnail_url":     "thumbnail_url",
	"lessons_count":     "lessons_count",
	"enrolled_students": "enrolled_students",
	"duration_minutes":  "duration_minutes",
	"average_rating":    "average_rating",
	"rating_count":      "rating_count",
	"created_at":        "created_at",
	"updated_at":        "updated_at",
}

var courseDefaultColumns = []string{
	"id", "title", "slug", "description", "category_id", "instructor_id", "price",
	"discount_price", "level", "status", "thumbnail_url", "lessons_count",
	"enrolled_students", "duration_minutes", "average_rating", "rating_count",
	"created_at", "updated_at",
}

// List returns courses through the shared query pipeline.
func (r *CourseRepository) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Course, *query.Pagination, error) {
	b := query.New("courses").
		Filter(values, courseFilterFields).
		Search(values, "title", "description").
		Sort(values, courseSortFields).
		Project(values, courseProjectionFields, courseDefaultColumns).
		Paginate(values)
	if !includeInactive {
		b.ActiveOnly()
	}
	return query.Execute[models.Course](ctx, r.db, b)
}

// FindByID fetches an active course joined with category and instructor names.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	const q = `SELECT co.*, cat.name AS category_name, u.name AS instructor_name
        FROM courses co
        JOIN categories cat ON cat.id = co.category_id
        JOIN instructors i ON i.id = co.instructor_id
        JOIN users u ON u.id = i.user_id
        WHERE co.id = $1 AND co.active = TRUE`
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, q, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByIDAny ignores the soft-delete flag.
func (r *CourseRepository) FindByIDAny(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.db.GetContext(ctx, &course, "SELECT * FROM courses WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsBySlug checks slug uniqueness.
func (r *CourseRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM courses WHERE slug = $1 LIMIT 1", slug); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course slug: %w", err)
	}
	return true, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const q = `INSERT INTO courses (id, title, slug, description, category_id, instructor_id, price, discount_price,
        level, status, thumbnail_url, lessons_count, enrolled_students, duration_minutes, average_rating, rating_count,
        active, created_at, updated_at)
        VALUES (:id, :title, :slug, :description, :category_id, :instructor_id, :price, :discount_price,
        :level, :status, :thumbnail_url, :lessons_count, :enrolled_students, :duration_minutes, :average_rating, :rating_count,
        :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies course content fields. Denormalized counters change only
// through RecomputeStats.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const q = `UPDATE courses SET title = :title, slug = :slug, description = :description,
        category_id = :category_id, price = :price, discount_price = :discount_price, level = :level,
        status = :status, thumbnail_url = :thumbnail_url, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, q, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SetActive flips the soft-delete flag with the shared transition guard.
func (r *CourseRepository) SetActive(ctx context.Context, id string, active bool) error {
	return setActiveFlag(ctx, r.db, "courses", id, active)
}

// RecomputeStats rewrites the denormalized lesson/enrollment counters from
// current store state. Idempotent and safe to call redundantly; concurrent
// recomputes interleave last-write-wins, which the counters tolerate.
func (r *CourseRepository) RecomputeStats(ctx context.Context, id string) error {
	const q = `UPDATE courses SET
        lessons_count = (SELECT COUNT(*) FROM lessons l WHERE l.course_id = courses.id AND l.active = TRUE),
        duration_minutes = (SELECT COALESCE(SUM(l.duration_min), 0) FROM lessons l WHERE l.course_id = courses.id AND l.active = TRUE),
        enrolled_students = (SELECT COUNT(DISTINCT e.user_id) FROM enrollments e
            WHERE e.course_id = courses.id AND e.active = TRUE AND e.status <> 'cancelled'),
        updated_at = $2
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, q, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("recompute course stats: %w", err)
	}
	return nil
}
