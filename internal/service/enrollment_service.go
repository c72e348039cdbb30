package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/eduplex/course-api/internal/models"
	"github.com/eduplex/course-api/internal/repository"
	appErrors "github.com/eduplex/course-api/pkg/errors"
	"github.com/eduplex/course-api/pkg/query"
)

type enrollmentRepository interface {
	List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Enrollment, *query.Pagination, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByIDAny(ctx context.Context, id string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateProgress(ctx context.Context, enrollment *models.Enrollment) error
	MarkLessonCompleted(ctx context.Context, enrollmentID, lessonID string) (bool, error)
	ProgressCounters(ctx context.Context, enrollmentID, courseID string) (*models.EnrollmentProgress, error)
	SetActive(ctx context.Context, id string, active bool) error
	Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error)
}

type enrollmentLessonLookup interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
}

// EnrollRequest holds payload for enrolling a user on a course.
type EnrollRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid4"`
}

// EnrollmentService handles enrollment lifecycle and progress tracking.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseRepository
	lessons   enrollmentLessonLookup
	stats     *StatsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, courses courseRepository, lessons enrollmentLessonLookup, stats *StatsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, lessons: lessons, stats: stats, validator: validate, logger: logger}
}

// List returns enrollments and pagination metadata. Non-admin callers are
// scoped to their own enrollments by the handler forcing user_id.
func (s *EnrollmentService) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Enrollment, *query.Pagination, error) {
	enrollments, pagination, err := s.repo.List(ctx, values, includeInactive)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, pagination, nil
}

// Get returns one enrollment with user and course labels.
func (s *EnrollmentService) Get(ctx context.Context, actor models.JWTClaims, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor.Role != models.RoleAdmin && detail.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another user")
	}
	return detail, nil
}

// Enroll registers the actor on a published course. A live duplicate is
// rejected through the unique index rather than a racy pre-check.
func (s *EnrollmentService) Enroll(ctx context.Context, actor models.JWTClaims, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Status != models.CourseStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is not open for enrollment")
	}

	enrollment := &models.Enrollment{
		UserID:   actor.UserID,
		CourseID: req.CourseID,
		Status:   models.EnrollmentStatusActive,
		Active:   true,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "user is already enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if s.stats != nil {
		s.stats.CourseChanged(ctx, req.CourseID)
	}
	return enrollment, nil
}

// Cancel marks an active enrollment cancelled. Cancelled rows keep the
// soft-delete flag intact so history stays queryable.
func (s *EnrollmentService) Cancel(ctx context.Context, actor models.JWTClaims, id string) (*models.Enrollment, error) {
	enrollment, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment is already cancelled")
	}

	enrollment.Status = models.EnrollmentStatusCancelled
	if err := s.repo.UpdateProgress(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	if s.stats != nil {
		s.stats.CourseChanged(ctx, enrollment.CourseID)
	}
	return enrollment, nil
}

// CompleteLesson records lesson completion and recomputes progress. Marking
// the same lesson twice is a no-op that still reports current progress.
func (s *EnrollmentService) CompleteLesson(ctx context.Context, actor models.JWTClaims, enrollmentID, lessonID string) (*models.Enrollment, error) {
	enrollment, err := s.loadOwned(ctx, actor, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment is cancelled")
	}

	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if lesson.CourseID != enrollment.CourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson does not belong to the enrolled course")
	}

	inserted, err := s.repo.MarkLessonCompleted(ctx, enrollmentID, lessonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record lesson completion")
	}
	if !inserted {
		s.logger.Debug("lesson already completed",
			zap.String("enrollment_id", enrollmentID),
			zap.String("lesson_id", lessonID))
	}

	counters, err := s.repo.ProgressCounters(ctx, enrollmentID, enrollment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute progress")
	}
	enrollment.Progress = progressPercent(counters.CompletedLessons, counters.TotalLessons)
	if enrollment.Progress >= 100 && enrollment.Status == models.EnrollmentStatusActive {
		enrollment.Status = models.EnrollmentStatusCompleted
		now := time.Now().UTC()
		enrollment.CompletedAt = &now
	}
	if err := s.repo.UpdateProgress(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress")
	}

	if s.stats != nil {
		s.stats.CourseChanged(ctx, enrollment.CourseID)
	}
	return enrollment, nil
}

// SoftDelete marks an enrollment inactive.
func (s *EnrollmentService) SoftDelete(ctx context.Context, id string) error {
	return s.transition(ctx, id, false, "enrollment already deleted")
}

// Restore re-activates a soft-deleted enrollment.
func (s *EnrollmentService) Restore(ctx context.Context, id string) error {
	return s.transition(ctx, id, true, "enrollment is not deleted")
}

// Roster returns the export rows for a course's active enrollments. Only
// admins and the owning instructor may read it; the handler enforces that
// through the course service before calling here.
func (s *EnrollmentService) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	roster, err := s.repo.Roster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}

func (s *EnrollmentService) loadOwned(ctx context.Context, actor models.JWTClaims, id string) (*models.Enrollment, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor.Role != models.RoleAdmin && detail.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another user")
	}
	enrollment := detail.Enrollment
	return &enrollment, nil
}

func (s *EnrollmentService) transition(ctx context.Context, id string, active bool, conflictMsg string) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrNoTransition):
			return appErrors.Clone(appErrors.ErrValidation, conflictMsg)
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change enrollment state")
		}
	}
	enrollment, err := s.repo.FindByIDAny(ctx, id)
	if err == nil && s.stats != nil {
		s.stats.CourseChanged(ctx, enrollment.CourseID)
	}
	return nil
}

// progressPercent computes completion as a percentage rounded to one decimal.
func progressPercent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(completed) / float64(total) * 100
	return math.Round(pct*10) / 10
}
