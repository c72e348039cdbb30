package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduplex/course-api/internal/middleware"
	"github.com/eduplex/course-api/internal/models"
	"github.com/eduplex/course-api/internal/service"
	"github.com/eduplex/course-api/pkg/query"
)

type enrollmentStoreStub struct {
	listValues url.Values
}

func (s *enrollmentStoreStub) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Enrollment, *query.Pagination, error) {
	s.listValues = values
	return nil, &query.Pagination{Page: 1, Limit: 10}, nil
}

func (s *enrollmentStoreStub) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return nil, sql.ErrNoRows
}

func (s *enrollmentStoreStub) FindByIDAny(ctx context.Context, id string) (*models.Enrollment, error) {
	return nil, sql.ErrNoRows
}

func (s *enrollmentStoreStub) Create(ctx context.Context, enrollment *models.Enrollment) error {
	return nil
}

func (s *enrollmentStoreStub) UpdateProgress(ctx context.Context, enrollment *models.Enrollment) error {
	return nil
}

func (s *enrollmentStoreStub) MarkLessonCompleted(ctx context.Context, enrollmentID, lessonID string) (bool, error) {
	return false, nil
}

func (s *enrollmentStoreStub) ProgressCounters(ctx context.Context, enrollmentID, courseID string) (*models.EnrollmentProgress, error) {
	return &models.EnrollmentProgress{}, nil
}

func (s *enrollmentStoreStub) SetActive(ctx context.Context, id string, active bool) error {
	return sql.ErrNoRows
}

func (s *enrollmentStoreStub) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	return nil, nil
}

func newEnrollmentHandlerFixture() (*EnrollmentHandler, *enrollmentStoreStub) {
	store := &enrollmentStoreStub{}
	svc := service.NewEnrollmentService(store, nil, nil, nil, nil, nil)
	return NewEnrollmentHandler(svc), store
}

func TestEnrollmentHandlerListScopesStudents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store := newEnrollmentHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments?user_id=victim&status=active", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", store.listValues.Get("user_id"))
	assert.Equal(t, "active", store.listValues.Get("status"))
}

func TestEnrollmentHandlerListAdminKeepsFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store := newEnrollmentHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments?user_id=victim", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin1", Role: models.RoleAdmin})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "victim", store.listValues.Get("user_id"))
}

func TestEnrollmentHandlerListUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newEnrollmentHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments", nil)
	c.Request = req

	handler.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnrollmentHandlerEnrollInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newEnrollmentHandlerFixture()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	handler.Enroll(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
