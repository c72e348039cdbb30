package service

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduplex/course-api/internal/models"
	"github.com/eduplex/course-api/internal/repository"
	appErrors "github.com/eduplex/course-api/pkg/errors"
	"github.com/eduplex/course-api/pkg/query"
)

type mockCategoryStore struct {
	categories   map[string]models.Category
	courseCounts map[string]int
}

func (m *mockCategoryStore) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Category, *query.Pagination, error) {
	return nil, &query.Pagination{}, nil
}

func (m *mockCategoryStore) FindByID(ctx context.Context, id string) (*models.CategoryDetail, error) {
	if c, ok := m.categories[id]; ok && c.Active {
		return &models.CategoryDetail{Category: c}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCategoryStore) FindByIDAny(ctx context.Context, id string) (*models.Category, error) {
	if c, ok := m.categories[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCategoryStore) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for id, c := range m.categories {
		if id != excludeID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCategoryStore) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	for _, c := range m.categories {
		if c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCategoryStore) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = "new-category"
	}
	m.categories[category.ID] = *category
	return nil
}

func (m *mockCategoryStore) Update(ctx context.Context, category *models.Category) error {
	m.categories[category.ID] = *category
	return nil
}

func (m *mockCategoryStore) SetActive(ctx context.Context, id string, active bool) error {
	c, ok := m.categories[id]
	if !ok {
		return sql.ErrNoRows
	}
	if c.Active == active {
		return repository.ErrNoTransition
	}
	c.Active = active
	m.categories[id] = c
	return nil
}

func (m *mockCategoryStore) CountActiveCourses(ctx context.Context, id string) (int, error) {
	return m.courseCounts[id], nil
}

func newCategoryFixture() (*CategoryService, *mockCategoryStore) {
	repo := &mockCategoryStore{
		categories: map[string]models.Category{
			"cat1": {ID: "cat1", Name: "Data Science", Slug: "data-science", Active: true},
		},
		courseCounts: map[string]int{},
	}
	return NewCategoryService(repo, validator.New(), zap.NewNop()), repo
}

func TestCategoryServiceCreate(t *testing.T) {
	svc, repo := newCategoryFixture()

	category, err := svc.Create(context.Background(), CreateCategoryRequest{Name: "Web Development"})
	require.NoError(t, err)
	assert.Equal(t, "web-development", category.Slug)
	assert.True(t, category.Active)
	assert.Contains(t, repo.categories, category.ID)
}

func TestCategoryServiceCreateDuplicateName(t *testing.T) {
	svc, _ := newCategoryFixture()

	_, err := svc.Create(context.Background(), CreateCategoryRequest{Name: "data science"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCategoryServiceSlugSuffixOnCollision(t *testing.T) {
	svc, repo := newCategoryFixture()
	repo.categories["cat2"] = models.Category{ID: "cat2", Name: "Data-Science", Slug: "data-science-2", Active: true}

	category, err := svc.Create(context.Background(), CreateCategoryRequest{Name: "Data, Science"})
	require.NoError(t, err)
	assert.Equal(t, "data-science-3", category.Slug)
}

func TestCategoryServiceUpdateKeepsSlugWhenNameUnchanged(t *testing.T) {
	svc, _ := newCategoryFixture()

	category, err := svc.Update(context.Background(), "cat1", UpdateCategoryRequest{
		Name:        "Data Science",
		Description: "updated",
	})
	require.NoError(t, err)
	assert.Equal(t, "data-science", category.Slug)
	assert.Equal(t, "updated", category.Description)
}

func TestCategoryServiceDeleteBlockedByLiveCourses(t *testing.T) {
	svc, repo := newCategoryFixture()
	repo.courseCounts["cat1"] = 3

	err := svc.SoftDelete(context.Background(), "cat1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "category has active courses", appErr.Message)
	assert.True(t, repo.categories["cat1"].Active)
}

func TestCategoryServiceDeleteAndRestore(t *testing.T) {
	svc, repo := newCategoryFixture()

	require.NoError(t, svc.SoftDelete(context.Background(), "cat1"))
	assert.False(t, repo.categories["cat1"].Active)

	err := svc.SoftDelete(context.Background(), "cat1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Restore(context.Background(), "cat1"))
	assert.True(t, repo.categories["cat1"].Active)
}

func TestCategoryServiceRestoreMissing(t *testing.T) {
	svc, _ := newCategoryFixture()

	err := svc.Restore(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
