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
	"golang.org/x/crypto/bcrypt"

	"github.com/eduplex/course-api/internal/models"
	"github.com/eduplex/course-api/internal/repository"
	appErrors "github.com/eduplex/course-api/pkg/errors"
	"github.com/eduplex/course-api/pkg/query"
)

type mockUserStore struct {
	users map[string]models.User
}

func (m *mockUserStore) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.User, *query.Pagination, error) {
	return nil, &query.Pagination{}, nil
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok && u.Active {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) FindByIDAny(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for id, u := range m.users {
		if id != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserStore) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	for id, u := range m.users {
		if id != excludeID && strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserStore) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserStore) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserStore) SetActive(ctx context.Context, id string, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	if u.Active == active {
		return repository.ErrNoTransition
	}
	u.Active = active
	m.users[id] = u
	return nil
}

func newUserFixture() (*UserService, *mockUserStore) {
	repo := &mockUserStore{users: map[string]models.User{
		"u1": {ID: "u1", Name: "Ada", Username: "ada", Email: "ada@example.com", Role: models.RoleStudent, Active: true},
	}}
	return NewUserService(repo, validator.New(), zap.NewNop()), repo
}

func validCreateUser() CreateUserRequest {
	return CreateUserRequest{
		Name:     "Grace",
		Username: "grace",
		Email:    "grace@example.com",
		Password: "s3cretpass",
		Role:     models.RoleStudent,
	}
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	svc, repo := newUserFixture()

	user, err := svc.Create(context.Background(), validCreateUser())
	require.NoError(t, err)
	assert.NotEqual(t, "s3cretpass", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cretpass")))
	assert.True(t, repo.users[user.ID].Active)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	svc, _ := newUserFixture()

	req := validCreateUser()
	req.Email = "ADA@example.com"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "email already used", appErr.Message)
}

func TestUserServiceCreateInvalidPayload(t *testing.T) {
	svc, _ := newUserFixture()

	req := validCreateUser()
	req.Password = "short"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateUsernameConflict(t *testing.T) {
	svc, repo := newUserFixture()
	repo.users["u2"] = models.User{ID: "u2", Name: "Bob", Username: "bob", Email: "bob@example.com", Role: models.RoleStudent, Active: true}

	_, err := svc.Update(context.Background(), "u2", UpdateUserRequest{
		Name:     "Bob",
		Username: "ada",
		Email:    "bob@example.com",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceSoftDeleteTwice(t *testing.T) {
	svc, repo := newUserFixture()

	require.NoError(t, svc.SoftDelete(context.Background(), "u1"))
	assert.False(t, repo.users["u1"].Active)

	err := svc.SoftDelete(context.Background(), "u1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "user already deleted", appErr.Message)
}

func TestUserServiceGetInactiveHidden(t *testing.T) {
	svc, repo := newUserFixture()
	u := repo.users["u1"]
	u.Active = false
	repo.users["u1"] = u

	_, err := svc.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
