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

type categoryRepository interface {
	List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Category, *query.Pagination, error)
	FindByID(ctx context.Context, id string) (*models.CategoryDetail, error)
	FindByIDAny(ctx context.Context, id string) (*models.Category, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	SetActive(ctx context.Context, id string, active bool) error
	CountActiveCourses(ctx context.Context, id string) (int, error)
}

// CreateCategoryRequest holds payload for creating categories.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url" validate:"omitempty,url"`
}

// UpdateCategoryRequest holds payload for updating categories.
type UpdateCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url" validate:"omitempty,url"`
}

// CategoryService handles category use-cases, including the guarded delete.
type CategoryService struct {
	repo      categoryRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCategoryService constructs the category service.
func NewCategoryService(repo categoryRepository, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{repo: repo, validator: validate, logger: logger}
}

// List returns categories and pagination metadata.
func (s *CategoryService) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Category, *query.Pagination, error) {
	categories, pagination, err := s.repo.List(ctx, values, includeInactive)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, pagination, nil
}

// Get returns a category with its derived course count.
func (s *CategoryService) Get(ctx context.Context, id string) (*models.CategoryDetail, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	return category, nil
}

// Create registers a category with a derived unique slug.
func (s *CategoryService) Create(ctx context.Context, req CreateCategoryRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	taken, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate category name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "category name already used")
	}

	slug, err := uniqueSlug(ctx, req.Name, s.repo.ExistsBySlug)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive slug")
	}

	category := &models.Category{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		IconURL:     req.IconURL,
		Active:      true,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "category name already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}
	return category, nil
}

// Update modifies a category, re-deriving the slug when the name changes.
func (s *CategoryService) Update(ctx context.Context, id string, req UpdateCategoryRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	taken, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate category name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "category name already used")
	}

	category := detail.Category
	if req.Name != category.Name {
		slug, err := uniqueSlug(ctx, req.Name, s.repo.ExistsBySlug)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive slug")
		}
		category.Slug = slug
	}
	category.Name = req.Name
	category.Description = req.Description
	category.IconURL = req.IconURL
	if err := s.repo.Update(ctx, &category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update category")
	}
	return &category, nil
}

// SoftDelete marks a category inactive. A category still referenced by live
// courses refuses deletion; the guard blocks rather than cascades.
func (s *CategoryService) SoftDelete(ctx context.Context, id string) error {
	count, err := s.repo.CountActiveCourses(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count category courses")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "category has active courses")
	}
	return s.transition(ctx, id, false, "category already deleted")
}

// Restore re-activates a soft-deleted category.
func (s *CategoryService) Restore(ctx context.Context, id string) error {
	return s.transition(ctx, id, true, "category is not deleted")
}

func (s *CategoryService) transition(ctx context.Context, id string, active bool, conflictMsg string) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "category not found")
		case errors.Is(err, repository.ErrNoTransition):
			return appErrors.Clone(appErrors.ErrValidation, conflictMsg)
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change category state")
		}
	}
	return nil
}
