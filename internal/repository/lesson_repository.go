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

// LessonRepository manages persistence for lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

var lessonFilterFields = map[string]query.Field{
	"is_free_preview": {Column: "is_free_preview", Kind: query.KindBool},
	"duration_min":    {Column: "duration_min", Kind: query.KindInt},
	"created_at":      {Column: "created_at", Kind: query.KindTime},
}

var lessonSortFields = map[string]string{
	"title":        "title",
	"position":     "position",
	"duration_min": "duration_min",
	"created_at":   "created_at",
}

var lessonProjectionFields = map[string]string{
	"course_id":       "course_id",
	"title":           "title",
	"content":         "content",
	"video_url":       "video_url",
	"duration_min":    "duration_min",
	"position":        "position",
	"is_free_preview": "is_free_preview",
	"created_at":      "created_at",
	"updated_at":      "updated_at",
}

var lessonDefaultColumns = []string{
	"id", "course_id", "title", "content", "video_url", "duration_min",
	"position", "is_free_preview", "created_at", "updated_at",
}

// ListByCourse returns a course's lessons through the shared query pipeline,
// ordered by position unless the caller sorts otherwise.
func (r *LessonRepository) ListByCourse(ctx context.Context, courseID string, values url.Values, includeInactive bool) ([]models.Lesson, *query.Pagination, error) {
	sortValues := values
	if values.Get("sort") == "" {
		sortValues = url.Values{"sort": []string{"position"}}
	}
	b := query.New("lessons").
		Where("course_id = ?", courseID).
		Filter(values, lessonFilterFields).
		Search(values, "title", "content").
		Sort(sortValues, lessonSortFields).
		Project(values, lessonProjectionFields, lessonDefaultColumns).
		Paginate(values)
	if !includeInactive {
		b.ActiveOnly()
	}
	return query.Execute[models.Lesson](ctx, r.db, b)
}

// FindByID fetches an active lesson.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, "SELECT * FROM lessons WHERE id = $1 AND active = TRUE", id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// FindByIDAny ignores the soft-delete flag.
func (r *LessonRepository) FindByIDAny(ctx context.Context, id string) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, "SELECT * FROM lessons WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// Create inserts a lesson, assigning the next position within its course.
// The (course_id, position) unique index backstops concurrent creators; the
// racing loser surfaces a unique violation for the caller to map.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
	const q = `INSERT INTO lessons (id, course_id, title, content, video_url, duration_min, position, is_free_preview, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6,
            (SELECT COALESCE(MAX(position), 0) + 1 FROM lessons WHERE course_id = $2),
            $7, $8, $9, $10)
        RETURNING position`
	if err := r.db.QueryRowxContext(ctx, q,
		lesson.ID, lesson.CourseID, lesson.Title, lesson.Content, lesson.VideoURL,
		lesson.DurationMin, lesson.IsFreePreview, lesson.Active, lesson.CreatedAt, lesson.UpdatedAt,
	).Scan(&lesson.Position); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update modifies lesson content. Position is stable across updates.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const q = `UPDATE lessons SET title = :title, content = :content, video_url = :video_url,
        duration_min = :duration_min, is_free_preview = :is_free_preview, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, q, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// SetActive flips the soft-delete flag with the shared transition guard.
func (r *LessonRepository) SetActive(ctx context.Context, id string, active bool) error {
	return setActiveFlag(ctx, r.db, "lessons", id, active)
}
