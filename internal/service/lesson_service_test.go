package service

import (
	"context"
	"database/sql"
	"net/url"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduplex/course-api/internal/models"
	appErrors "github.com/eduplex/course-api/pkg/errors"
	"github.com/eduplex/course-api/pkg/query"
)

type mockLessonStore struct {
	lessons   map[string]models.Lesson
	createErr error
}

func (m *mockLessonStore) ListByCourse(ctx context.Context, courseID string, values url.Values, includeInactive bool) ([]models.Lesson, *query.Pagination, error) {
	var out []models.Lesson
	for _, l := range m.lessons {
		if l.CourseID == courseID && (l.Active || includeInactive) {
			out = append(out, l)
		}
	}
	return out, &query.Pagination{Total: len(out)}, nil
}

func (m *mockLessonStore) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	if l, ok := m.lessons[id]; ok && l.Active {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonStore) FindByIDAny(ctx context.Context, id string) (*models.Lesson, error) {
	if l, ok := m.lessons[id]; ok {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonStore) Create(ctx context.Context, lesson *models.Lesson) error {
	if m.createErr != nil {
		return m.createErr
	}
	if lesson.ID == "" {
		lesson.ID = "new-lesson"
	}
	lesson.Position = len(m.lessons) + 1
	m.lessons[lesson.ID] = *lesson
	return nil
}

func (m *mockLessonStore) Update(ctx context.Context, lesson *models.Lesson) error {
	m.lessons[lesson.ID] = *lesson
	return nil
}

func (m *mockLessonStore) SetActive(ctx context.Context, id string, active bool) error {
	l, ok := m.lessons[id]
	if !ok {
		return sql.ErrNoRows
	}
	l.Active = active
	m.lessons[id] = l
	return nil
}

func newLessonFixture() (*LessonService, *mockLessonStore, *mockCourseStore) {
	courseRepo := &mockCourseStore{courses: map[string]models.Course{
		courseUUID: {ID: courseUUID, InstructorID: instructorUUID, Status: models.CourseStatusPublished, Active: true},
	}}
	instructors := &mockInstructorLookup{instructors: map[string]models.Instructor{
		instructorUUID: {ID: instructorUUID, UserID: "instructor-user", Active: true},
	}}
	categories := &mockCategoryLookup{categories: map[string]models.Category{}}
	courses := NewCourseService(courseRepo, categories, instructors, nil, validator.New(), zap.NewNop())

	repo := &mockLessonStore{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", CourseID: courseUUID, Title: "Intro", Position: 1, Active: true},
	}}
	svc := NewLessonService(repo, courses, nil, validator.New(), zap.NewNop())
	return svc, repo, courseRepo
}

func TestLessonServiceCreateAppendsPosition(t *testing.T) {
	svc, repo, _ := newLessonFixture()
	actor := models.JWTClaims{UserID: "instructor-user", Role: models.RoleInstructor}

	lesson, err := svc.Create(context.Background(), actor, courseUUID, CreateLessonRequest{
		Title:       "Variables",
		DurationMin: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, lesson.Position)
	assert.True(t, lesson.Active)
	assert.Contains(t, repo.lessons, lesson.ID)
}

func TestLessonServiceCreateForeignCourse(t *testing.T) {
	svc, _, courseRepo := newLessonFixture()
	course := courseRepo.courses[courseUUID]
	course.InstructorID = "someone-else"
	courseRepo.courses[courseUUID] = course
	actor := models.JWTClaims{UserID: "instructor-user", Role: models.RoleInstructor}

	_, err := svc.Create(context.Background(), actor, courseUUID, CreateLessonRequest{Title: "Variables"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLessonServiceCreatePositionConflict(t *testing.T) {
	svc, repo, _ := newLessonFixture()
	repo.createErr = &pq.Error{Code: "23505"}
	actor := models.JWTClaims{UserID: "instructor-user", Role: models.RoleInstructor}

	_, err := svc.Create(context.Background(), actor, courseUUID, CreateLessonRequest{Title: "Variables"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLessonServiceSoftDeleteAdmin(t *testing.T) {
	svc, repo, _ := newLessonFixture()
	actor := models.JWTClaims{UserID: "admin-user", Role: models.RoleAdmin}

	require.NoError(t, svc.SoftDelete(context.Background(), actor, "l1"))
	assert.False(t, repo.lessons["l1"].Active)

	_, err := svc.Get(context.Background(), "l1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Restore(context.Background(), actor, "l1"))
	assert.True(t, repo.lessons["l1"].Active)
}

func TestLessonServiceUpdateKeepsPosition(t *testing.T) {
	svc, repo, _ := newLessonFixture()
	actor := models.JWTClaims{UserID: "instructor-user", Role: models.RoleInstructor}

	lesson, err := svc.Update(context.Background(), actor, "l1", UpdateLessonRequest{
		Title:       "Introduction",
		DurationMin: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, lesson.Position)
	assert.Equal(t, "Introduction", repo.lessons["l1"].Title)
}
