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

// InstructorRepository manages persistence for instructor profiles.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs an InstructorRepository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

var instructorFilterFields = map[string]query.Field{
	"rating_average": {Column: "rating_average", Kind: query.KindFloat},
	"total_students": {Column: "total_students", Kind: query.KindInt},
	"total_courses":  {Column: "total_courses", Kind: query.KindInt},
	"created_at":     {Column: "created_at", Kind: query.KindTime},
}

var instructorSortFields = map[string]string{
	"title":          "title",
	"rating_average": "rating_average",
	"total_students": "total_students",
	"total_courses":  "total_courses",
	"created_at":     "created_at",
}

var instructorProjectionFields = map[string]string{
	"user_id":        "user_id",
	"title":          "title",
	"bio":            "bio",
	"expertise":      "expertise",
	"website":        "website",
	"linkedin":       "linkedin",
	"twitter":        "twitter",
	"rating_average": "rating_average",
	"rating_count":   "rating_count",
	"total_students": "total_students",
	"total_courses":  "total_courses",
	"created_at":     "created_at",
	"updated_at":     "updated_at",
}

var instructorDefaultColumns = []string{
	"id", "user_id", "title", "bio", "expertise", "website", "linkedin", "twitter",
	"rating_average", "rating_count", "total_students", "total_courses", "created_at", "updated_at",
}

// List returns instructor profiles through the shared query pipeline.
func (r *InstructorRepository) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Instructor, *query.Pagination, error) {
	b := query.New("instructors").
		Filter(values, instructorFilterFields).
		Search(values, "title", "bio").
		Sort(values, instructorSortFields).
		Project(values, instructorProjectionFields, instructorDefaultColumns).
		Paginate(values)
	if !includeInactive {
		b.ActiveOnly()
	}
	return query.Execute[models.Instructor](ctx, r.db, b)
}

// FindByID fetches an active instructor joined with the owning user.
func (r *InstructorRepository) FindByID(ctx context.Context, id string) (*models.InstructorDetail, error) {
	const q = `SELECT i.*, u.name AS user_name, u.email AS user_email
        FROM instructors i JOIN users u ON u.id = i.user_id
        WHERE i.id = $1 AND i.active = TRUE`
	var detail models.InstructorDetail
	if err := r.db.GetContext(ctx, &detail, q, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByIDAny ignores the soft-delete flag.
func (r *InstructorRepository) FindByIDAny(ctx context.Context, id string) (*models.Instructor, error) {
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, "SELECT * FROM instructors WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// FindByUserID resolves the instructor profile owned by a user.
func (r *InstructorRepository) FindByUserID(ctx context.Context, userID string) (*models.Instructor, error) {
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, "SELECT * FROM instructors WHERE user_id = $1 AND active = TRUE", userID); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// ExistsByUserID checks the one-profile-per-user invariant.
func (r *InstructorRepository) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM instructors WHERE user_id = $1 LIMIT 1", userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check instructor user: %w", err)
	}
	return true, nil
}

// Create inserts a new instructor profile.
func (r *InstructorRepository) Create(ctx context.Context, instructor *models.Instructor) error {
	if instructor.ID == "" {
		instructor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if instructor.CreatedAt.IsZero() {
		instructor.CreatedAt = now
	}
	instructor.UpdatedAt = now
	const q = `INSERT INTO instructors (id, user_id, title, bio, expertise, website, linkedin, twitter,
        rating_average, rating_count, total_students, total_courses, active, created_at, updated_at)
        VALUES (:id, :user_id, :title, :bio, :expertise, :website, :linkedin, :twitter,
        :rating_average, :rating_count, :total_students, :total_courses, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, instructor); err != nil {
		return fmt.Errorf("create instructor: %w", err)
	}
	return nil
}

// Update modifies profile fields. Denormalized counters are not written here;
// they change only through RecomputeStats.
func (r *InstructorRepository) Update(ctx context.Context, instructor *models.Instructor) error {
	instructor.UpdatedAt = time.Now().UTC()
	const q = `UPDATE instructors SET title = :title, bio = :bio, expertise = :expertise,
        website = :website, linkedin = :linkedin, twitter = :twitter, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, q, instructor); err != nil {
		return fmt.Errorf("update instructor: %w", err)
	}
	return nil
}

// SetActive flips the soft-delete flag with the shared transition guard.
func (r *InstructorRepository) SetActive(ctx context.Context, id string, active bool) error {
	return setActiveFlag(ctx, r.db, "instructors", id, active)
}

// RecomputeStats rewrites total_courses and total_students from current store
// state. Idempotent: it is a pure aggregate over courses and enrollments.
func (r *InstructorRepository) RecomputeStats(ctx context.Context, id string) error {
	const q = `UPDATE instructors SET
        total_courses = (SELECT COUNT(*) FROM courses c WHERE c.instructor_id = instructors.id AND c.active = TRUE),
        total_students = (SELECT COUNT(DISTINCT e.user_id) FROM enrollments e
            JOIN courses c ON c.id = e.course_id
            WHERE c.instructor_id = instructors.id AND c.active = TRUE
              AND e.active = TRUE AND e.status <> 'cancelled'),
        updated_at = $2
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, q, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("recompute instructor stats: %w", err)
	}
	return nil
}
