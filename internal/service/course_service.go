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

type courseRepository interface {
	List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Course, *query.Pagination, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	FindByIDAny(ctx context.Context, id string) (*models.Course, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SetActive(ctx context.Context, id string, active bool) error
}

type courseCategoryLookup interface {
	FindByID(ctx context.Context, id string) (*models.CategoryDetail, error)
}

type courseInstructorLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Instructor, error)
	FindByIDAny(ctx context.Context, id string) (*models.Instructor, error)
}

// CreateCourseRequest holds payload for creating courses.
type CreateCourseRequest struct {
	Title         string             `json:"title" validate:"required,min=3"`
	Description   string             `json:"description"`
	CategoryID    string             `json:"category_id" validate:"required,uuid4"`
	InstructorID  string             `json:"instructor_id" validate:"omitempty,uuid4"`
	Price         float64            `json:"price" validate:"gte=0"`
	DiscountPrice *float64           `json:"discount_price" validate:"omitempty,gte=0"`
	Level         models.CourseLevel `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	ThumbnailURL  string             `json:"thumbnail_url" validate:"omitempty,url"`
}

// UpdateCourseRequest holds payload for updating courses.
type UpdateCourseRequest struct {
	Title         string              `json:"title" validate:"required,min=3"`
	Description   string              `json:"description"`
	CategoryID    string              `json:"category_id" validate:"required,uuid4"`
	Price         float64             `json:"price" validate:"gte=0"`
	DiscountPrice *float64            `json:"discount_price" validate:"omitempty,gte=0"`
	Level         models.CourseLevel  `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Status        models.CourseStatus `json:"status" validate:"required,oneof=draft published archived"`
	ThumbnailURL  string              `json:"thumbnail_url" validate:"omitempty,url"`
}

// CourseService handles catalog use-cases and ownership checks.
type CourseService struct {
	repo        courseRepository
	categories  courseCategoryLookup
	instructors courseInstructorLookup
	stats       *StatsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, categories courseCategoryLookup, instructors courseInstructorLookup, stats *StatsService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, categories: categories, instructors: instructors, stats: stats, validator: validate, logger: logger}
}

// List returns courses and pagination metadata.
func (s *CourseService) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Course, *query.Pagination, error) {
	courses, pagination, err := s.repo.List(ctx, values, includeInactive)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, pagination, nil
}

// Get returns detailed course information.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new draft course. Instructors create under their own
// profile; admins may name any instructor.
func (s *CourseService) Create(ctx context.Context, actor models.JWTClaims, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if req.DiscountPrice != nil && *req.DiscountPrice >= req.Price {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount price must be lower than price")
	}

	instructorID, err := s.resolveInstructor(ctx, actor, req.InstructorID)
	if err != nil {
		return nil, err
	}

	if _, err := s.categories.FindByID(ctx, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}

	slug, err := uniqueSlug(ctx, req.Title, s.repo.ExistsBySlug)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive slug")
	}

	course := &models.Course{
		Title:         req.Title,
		Slug:          slug,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		InstructorID:  instructorID,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Level:         req.Level,
		Status:        models.CourseStatusDraft,
		ThumbnailURL:  req.ThumbnailURL,
		Active:        true,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course slug already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	if s.stats != nil {
		s.stats.InstructorChanged(ctx, instructorID)
	}
	return course, nil
}

// Update modifies a course. Only the owning instructor or an admin may write.
func (s *CourseService) Update(ctx context.Context, actor models.JWTClaims, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if req.DiscountPrice != nil && *req.DiscountPrice >= req.Price {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount price must be lower than price")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.authorizeOwnership(ctx, actor, detail.InstructorID); err != nil {
		return nil, err
	}

	if req.CategoryID != detail.CategoryID {
		if _, err := s.categories.FindByID(ctx, req.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
		}
	}

	course := detail.Course
	if req.Title != course.Title {
		slug, err := uniqueSlug(ctx, req.Title, s.repo.ExistsBySlug)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive slug")
		}
		course.Slug = slug
	}
	course.Title = req.Title
	course.Description = req.Description
	course.CategoryID = req.CategoryID
	course.Price = req.Price
	course.DiscountPrice = req.DiscountPrice
	course.Level = req.Level
	course.Status = req.Status
	course.ThumbnailURL = req.ThumbnailURL
	if err := s.repo.Update(ctx, &course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return &course, nil
}

// SoftDelete marks a course inactive and cascades instructor counters.
func (s *CourseService) SoftDelete(ctx context.Context, actor models.JWTClaims, id string) error {
	course, err := s.loadAny(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwnership(ctx, actor, course.InstructorID); err != nil {
		return err
	}
	if err := s.transition(ctx, id, false, "course already deleted"); err != nil {
		return err
	}
	if s.stats != nil {
		s.stats.InstructorChanged(ctx, course.InstructorID)
	}
	return nil
}

// Restore re-activates a soft-deleted course and cascades counters.
func (s *CourseService) Restore(ctx context.Context, actor models.JWTClaims, id string) error {
	course, err := s.loadAny(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwnership(ctx, actor, course.InstructorID); err != nil {
		return err
	}
	if err := s.transition(ctx, id, true, "course is not deleted"); err != nil {
		return err
	}
	if s.stats != nil {
		s.stats.CourseChanged(ctx, id)
	}
	return nil
}

// AuthorizeOwner verifies the actor may mutate content under the course.
func (s *CourseService) AuthorizeOwner(ctx context.Context, actor models.JWTClaims, courseID string) (*models.Course, error) {
	course, err := s.loadAny(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if err := s.authorizeOwnership(ctx, actor, course.InstructorID); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) loadAny(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByIDAny(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) transition(ctx context.Context, id string, active bool, conflictMsg string) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		case errors.Is(err, repository.ErrNoTransition):
			return appErrors.Clone(appErrors.ErrValidation, conflictMsg)
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change course state")
		}
	}
	return nil
}

func (s *CourseService) resolveInstructor(ctx context.Context, actor models.JWTClaims, requested string) (string, error) {
	if actor.Role == models.RoleAdmin {
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "instructor_id is required for admin-created courses")
		}
		instructor, err := s.instructors.FindByIDAny(ctx, requested)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
		}
		if !instructor.Active {
			return "", appErrors.Clone(appErrors.ErrValidation, "instructor is inactive")
		}
		return instructor.ID, nil
	}

	instructor, err := s.instructors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrForbidden, "caller has no instructor profile")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor.ID, nil
}

func (s *CourseService) authorizeOwnership(ctx context.Context, actor models.JWTClaims, instructorID string) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	instructor, err := s.instructors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "caller has no instructor profile")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if instructor.ID != instructorID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return nil
}
