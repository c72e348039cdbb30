package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduplex/course-api/internal/models"
	"github.com/eduplex/course-api/internal/repository"
	appErrors "github.com/eduplex/course-api/pkg/errors"
	"github.com/eduplex/course-api/pkg/query"
)

type userRepository interface {
	List(ctx context.Context, values url.Values, includeInactive bool) ([]models.User, *query.Pagination, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDAny(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id string, active bool) error
}

// CreateUserRequest holds payload for creating users.
type CreateUserRequest struct {
	Name           string          `json:"name" validate:"required"`
	Username       string          `json:"username" validate:"required,alphanum,min=3"`
	Email          string          `json:"email" validate:"required,email"`
	Password       string          `json:"password" validate:"required,min=8"`
	Phone          string          `json:"phone"`
	Role           models.UserRole `json:"role" validate:"required,oneof=ADMIN INSTRUCTOR STUDENT"`
	Gender         string          `json:"gender" validate:"omitempty,oneof=male female other"`
	ProfilePicture string          `json:"profile_picture"`
}

// UpdateUserRequest holds payload for updating users.
type UpdateUserRequest struct {
	Name           string          `json:"name" validate:"required"`
	Username       string          `json:"username" validate:"required,alphanum,min=3"`
	Email          string          `json:"email" validate:"required,email"`
	Phone          string          `json:"phone"`
	Role           models.UserRole `json:"role" validate:"required,oneof=ADMIN INSTRUCTOR STUDENT"`
	Gender         string          `json:"gender" validate:"omitempty,oneof=male female other"`
	ProfilePicture string          `json:"profile_picture"`
}

// UserService handles user management use-cases.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns users and pagination metadata through the query pipeline.
func (s *UserService) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.User, *query.Pagination, error) {
	users, pagination, err := s.repo.List(ctx, values, includeInactive)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, pagination, nil
}

// Get returns a single active user.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create registers a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if err := s.ensureIdentityFree(ctx, req.Email, req.Username, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Name:           req.Name,
		Username:       req.Username,
		Email:          req.Email,
		PasswordHash:   string(hash),
		Phone:          req.Phone,
		Role:           req.Role,
		Gender:         req.Gender,
		ProfilePicture: req.ProfilePicture,
		Active:         true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or username already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// Update modifies an existing user's profile.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.ensureIdentityFree(ctx, req.Email, req.Username, id); err != nil {
		return nil, err
	}

	user.Name = req.Name
	user.Username = req.Username
	user.Email = req.Email
	user.Phone = req.Phone
	user.Role = req.Role
	user.Gender = req.Gender
	user.ProfilePicture = req.ProfilePicture
	if err := s.repo.Update(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or username already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// SoftDelete marks a user inactive.
func (s *UserService) SoftDelete(ctx context.Context, id string) error {
	return s.transition(ctx, id, false, "user already deleted")
}

// Restore re-activates a soft-deleted user.
func (s *UserService) Restore(ctx context.Context, id string) error {
	return s.transition(ctx, id, true, "user is not deleted")
}

func (s *UserService) transition(ctx context.Context, id string, active bool, conflictMsg string) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		case errors.Is(err, repository.ErrNoTransition):
			return appErrors.Clone(appErrors.ErrValidation, conflictMsg)
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change user state")
		}
	}
	return nil
}

func (s *UserService) ensureIdentityFree(ctx context.Context, email, username, excludeID string) error {
	emailTaken, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if emailTaken {
		return appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	usernameTaken, err := s.repo.ExistsByUsername(ctx, username, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate username")
	}
	if usernameTaken {
		return appErrors.Clone(appErrors.ErrConflict, "username already used")
	}
	return nil
}
