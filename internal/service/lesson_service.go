package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/eduplex/course-api/internal/models"
	"github.com/eduplex/course-api/internal/repository"
	appErrors "github.com/eduplex/course-api/pkg/errors"
	"github.com/eduplex/course-api/pkg/query"
)

type lessonRepository interface {
	ListByCourse(ctx context.Context, courseID string, values url.Values, includeInactive bool) ([]models.Lesson, *query.Pagination, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	FindByIDAny(ctx context.Context, id string) (*models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	SetActive(ctx context.Context, id string, active bool) error
}

// CreateLessonRequest holds payload for creating lessons.
type CreateLessonRequest struct {
	Title         string `json:"title" validate:"required,min=3"`
	Content       string `json:"content"`
	VideoURL      string `json:"video_url" validate:"omitempty,url"`
	DurationMin   int    `json:"duration_min" validate:"gte=0"`
	IsFreePreview bool   `json:"is_free_preview"`
}

// UpdateLessonRequest holds payload for updating lessons. Position is not
// client-writable; it stays as assigned on creation.
type UpdateLessonRequest struct {
	Title         string `json:"title" validate:"required,min=3"`
	Content       string `json:"content"`
	VideoURL      string `json:"video_url" validate:"omitempty,url"`
	DurationMin   int    `json:"duration_min" validate:"gte=0"`
	IsFreePreview bool   `json:"is_free_preview"`
}

// LessonService handles lesson CRUD under course ownership rules.
type LessonService struct {
	repo      lessonRepository
	courses   *CourseService
	stats     *StatsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs the lesson service.
func NewLessonService(repo lessonRepository, courses *CourseService, stats *StatsService, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, courses: courses, stats: stats, validator: validate, logger: logger}
}

// ListByCourse returns lessons of one course ordered by position.
func (s *LessonService) ListByCourse(ctx context.Context, courseID string, values url.Values, includeInactive bool) ([]models.Lesson, *query.Pagination, error) {
	if _, err := s.courses.Get(ctx, courseID); err != nil {
		return nil, nil, err
	}
	lessons, pagination, err := s.repo.ListByCourse(ctx, courseID, values, includeInactive)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, pagination, nil
}

// Get returns one lesson.
func (s *LessonService) Get(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// Create appends a lesson to the course and refreshes its counters.
func (s *LessonService) Create(ctx context.Context, actor models.JWTClaims, courseID string, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if _, err := s.courses.AuthorizeOwner(ctx, actor, courseID); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		CourseID:      courseID,
		Title:         req.Title,
		Content:       req.Content,
		VideoURL:      req.VideoURL,
		DurationMin:   req.DurationMin,
		IsFreePreview: req.IsFreePreview,
		Active:        true,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "lesson position already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	if s.stats != nil {
		s.stats.CourseChanged(ctx, courseID)
	}
	return lesson, nil
}

// Update modifies a lesson and refreshes course counters.
func (s *LessonService) Update(ctx context.Context, actor models.JWTClaims, id string, req UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.courses.AuthorizeOwner(ctx, actor, lesson.CourseID); err != nil {
		return nil, err
	}

	lesson.Title = req.Title
	lesson.Content = req.Content
	lesson.VideoURL = req.VideoURL
	lesson.DurationMin = req.DurationMin
	lesson.IsFreePreview = req.IsFreePreview
	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}

	if s.stats != nil {
		s.stats.CourseChanged(ctx, lesson.CourseID)
	}
	return lesson, nil
}

// SoftDelete marks a lesson inactive and refreshes course counters.
func (s *LessonService) SoftDelete(ctx context.Context, actor models.JWTClaims, id string) error {
	return s.changeState(ctx, actor, id, false, "lesson already deleted")
}

// Restore re-activates a soft-deleted lesson and refreshes course counters.
func (s *LessonService) Restore(ctx context.Context, actor models.JWTClaims, id string) error {
	return s.changeState(ctx, actor, id, true, "lesson is not deleted")
}

func (s *LessonService) changeState(ctx context.Context, actor models.JWTClaims, id string, active bool, conflictMsg string) error {
	lesson, err := s.repo.FindByIDAny(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if _, err := s.courses.AuthorizeOwner(ctx, actor, lesson.CourseID); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		case errors.Is(err, repository.ErrNoTransition):
			return appErrors.Clone(appErrors.ErrValidation, conflictMsg)
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change lesson state")
		}
	}
	if s.stats != nil {
		s.stats.CourseChanged(ctx, lesson.CourseID)
	}
	return nil
}
