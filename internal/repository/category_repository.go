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

// CategoryRepository manages persistence for course categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs a CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

var categoryFilterFields = map[string]query.Field{
	"created_at": {Column: "created_at", Kind: query.KindTime},
}

var categorySortFields = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

var categoryProjectionFields = map[string]string{
	"name":        "name",
	"slug":        "slug",
	"description": "description",
	"icon_url":    "icon_url",
	"created_at":  "created_at",
	"updated_at":  "updated_at",
}

var categoryDefaultColumns = []string{
	"id", "name", "slug", "description", "icon_url", "created_at", "updated_at",
}

// List returns categories through the shared query pipeline.
func (r *CategoryRepository) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Category, *query.Pagination, error) {
	b := query.New("categories").
		Filter(values, categoryFilterFields).
		Search(values, "name", "description").
		Sort(values, categorySortFields).
		Project(values, categoryProjectionFields, categoryDefaultColumns).
		Paginate(values)
	if !includeInactive {
		b.ActiveOnly()
	}
	return query.Execute[models.Category](ctx, r.db, b)
}

// FindByID fetches an active category with its live course count.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.CategoryDetail, error) {
	const q = `SELECT c.*, (SELECT COUNT(*) FROM courses co WHERE co.category_id = c.id AND co.active = TRUE) AS course_count
        FROM categories c WHERE c.id = $1 AND c.active = TRUE`
	var detail models.CategoryDetail
	if err := r.db.GetContext(ctx, &detail, q, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByIDAny ignores the soft-delete flag.
func (r *CategoryRepository) FindByIDAny(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := r.db.GetContext(ctx, &category, "SELECT * FROM categories WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &category, nil
}

// ExistsByName checks name uniqueness, optionally excluding an ID.
func (r *CategoryRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	q := "SELECT 1 FROM categories WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		q += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, q+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check category name: %w", err)
	}
	return true, nil
}

// ExistsBySlug checks slug uniqueness.
func (r *CategoryRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM categories WHERE slug = $1 LIMIT 1", slug); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check category slug: %w", err)
	}
	return true, nil
}

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now
	const q = `INSERT INTO categories (id, name, slug, description, icon_url, active, created_at, updated_at)
        VALUES (:id, :name, :slug, :description, :icon_url, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update modifies an existing category.
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	category.UpdatedAt = time.Now().UTC()
	const q = `UPDATE categories SET name = :name, slug = :slug, description = :description,
        icon_url = :icon_url, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, q, category); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// SetActive flips the soft-delete flag with the shared transition guard.
func (r *CategoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	return setActiveFlag(ctx, r.db, "categories", id, active)
}

// CountActiveCourses backs the deletion guard: a category with live courses
// refuses soft deletion.
func (r *CategoryRepository) CountActiveCourses(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM courses WHERE category_id = $1 AND active = TRUE", id); err != nil {
		return 0, fmt.Errorf("count category courses: %w", err)
	}
	return count, nil
}
