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

type instructorRepository interface {
	List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Instructor, *query.Pagination, error)
	FindByID(ctx context.Context, id string) (*models.InstructorDetail, error)
	FindByIDAny(ctx context.Context, id string) (*models.Instructor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Instructor, error)
	ExistsByUserID(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, instructor *models.Instructor) error
	Update(ctx context.Context, instructor *models.Instructor) error
	SetActive(ctx context.Context, id string, active bool) error
}

type instructorUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateInstructorRequest holds payload for creating instructor profiles.
type CreateInstructorRequest struct {
	UserID    string   `json:"user_id" validate:"required,uuid4"`
	Title     string   `json:"title" validate:"required"`
	Bio       string   `json:"bio"`
	Expertise []string `json:"expertise" validate:"omitempty,dive,required"`
	Website   string   `json:"website" validate:"omitempty,url"`
	LinkedIn  string   `json:"linkedin" validate:"omitempty,url"`
	Twitter   string   `json:"twitter" validate:"omitempty,url"`
}

// UpdateInstructorRequest holds payload for updating instructor profiles.
type UpdateInstructorRequest struct {
	Title     string   `json:"title" validate:"required"`
	Bio       string   `json:"bio"`
	Expertise []string `json:"expertise" validate:"omitempty,dive,required"`
	Website   string   `json:"website" validate:"omitempty,url"`
	LinkedIn  string   `json:"linkedin" validate:"omitempty,url"`
	Twitter   string   `json:"twitter" validate:"omitempty,url"`
}

// InstructorService handles instructor profile use-cases.
type InstructorService struct {
	repo      instructorRepository
	users     instructorUserLookup
	stats     *StatsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstructorService constructs the instructor service.
func NewInstructorService(repo instructorRepository, users instructorUserLookup, stats *StatsService, validate *validator.Validate, logger *zap.Logger) *InstructorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructorService{repo: repo, users: users, stats: stats, validator: validate, logger: logger}
}

// List returns instructors and pagination metadata.
func (s *InstructorService) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Instructor, *query.Pagination, error) {
	instructors, pagination, err := s.repo.List(ctx, values, includeInactive)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	return instructors, pagination, nil
}

// Get returns detailed instructor information.
func (s *InstructorService) Get(ctx context.Context, id string) (*models.InstructorDetail, error) {
	instructor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// GetByUser resolves the profile owned by a user, used for ownership checks.
func (s *InstructorService) GetByUser(ctx context.Context, userID string) (*models.Instructor, error) {
	instructor, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// Create registers an instructor profile for an existing user.
func (s *InstructorService) Create(ctx context.Context, req CreateInstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleInstructor && user.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user does not hold the instructor role")
	}

	exists, err := s.repo.ExistsByUserID(ctx, req.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate instructor user")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already has an instructor profile")
	}

	instructor := &models.Instructor{
		UserID:    req.UserID,
		Title:     req.Title,
		Bio:       req.Bio,
		Expertise: req.Expertise,
		Website:   req.Website,
		LinkedIn:  req.LinkedIn,
		Twitter:   req.Twitter,
		Active:    true,
	}
	if err := s.repo.Create(ctx, instructor); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "user already has an instructor profile")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}
	return instructor, nil
}

// Update modifies an instructor profile.
func (s *InstructorService) Update(ctx context.Context, id string, req UpdateInstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	instructor := detail.Instructor
	instructor.Title = req.Title
	instructor.Bio = req.Bio
	instructor.Expertise = req.Expertise
	instructor.Website = req.Website
	instructor.LinkedIn = req.LinkedIn
	instructor.Twitter = req.Twitter
	if err := s.repo.Update(ctx, &instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor")
	}
	return &instructor, nil
}

// SoftDelete marks an instructor inactive.
func (s *InstructorService) SoftDelete(ctx context.Context, id string) error {
	return s.transition(ctx, id, false, "instructor already deleted")
}

// Restore re-activates a soft-deleted instructor and refreshes its counters.
func (s *InstructorService) Restore(ctx context.Context, id string) error {
	if err := s.transition(ctx, id, true, "instructor is not deleted"); err != nil {
		return err
	}
	if s.stats != nil {
		s.stats.InstructorChanged(ctx, id)
	}
	return nil
}

func (s *InstructorService) transition(ctx context.Context, id string, active bool, conflictMsg string) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		case errors.Is(err, repository.ErrNoTransition):
			return appErrors.Clone(appErrors.ErrValidation, conflictMsg)
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change instructor state")
		}
	}
	return nil
}
