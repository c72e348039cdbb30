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

type mockEnrollmentStore struct {
	enrollments map[string]models.Enrollment
	completed   map[string]bool
	counters    models.EnrollmentProgress
	createErr   error
	created     *models.Enrollment
	updated     *models.Enrollment
}

func (m *mockEnrollmentStore) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Enrollment, *query.Pagination, error) {
	return nil, &query.Pagination{}, nil
}

func (m *mockEnrollmentStore) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok && e.Active {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) FindByIDAny(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentStore) UpdateProgress(ctx context.Context, enrollment *models.Enrollment) error {
	m.enrollments[enrollment.ID] = *enrollment
	m.updated = enrollment
	return nil
}

func (m *mockEnrollmentStore) MarkLessonCompleted(ctx context.Context, enrollmentID, lessonID string) (bool, error) {
	if m.completed == nil {
		m.completed = make(map[string]bool)
	}
	key := enrollmentID + "/" + lessonID
	if m.completed[key] {
		return false, nil
	}
	m.completed[key] = true
	return true, nil
}

func (m *mockEnrollmentStore) ProgressCounters(ctx context.Context, enrollmentID, courseID string) (*models.EnrollmentProgress, error) {
	counters := m.counters
	return &counters, nil
}

func (m *mockEnrollmentStore) SetActive(ctx context.Context, id string, active bool) error {
	if e, ok := m.enrollments[id]; ok {
		e.Active = active
		m.enrollments[id] = e
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockEnrollmentStore) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	return nil, nil
}

type mockCourseStore struct {
	courses map[string]models.Course
}

func (m *mockCourseStore) List(ctx context.Context, values url.Values, includeInactive bool) ([]models.Course, *query.Pagination, error) {
	return nil, &query.Pagination{}, nil
}

func (m *mockCourseStore) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok && c.Active {
		return &models.CourseDetail{Course: c}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseStore) FindByIDAny(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseStore) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	for _, c := range m.courses {
		if c.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCourseStore) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "new-course"
	}
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseStore) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseStore) SetActive(ctx context.Context, id string, active bool) error {
	if c, ok := m.courses[id]; ok {
		c.Active = active
		m.courses[id] = c
		return nil
	}
	return sql.ErrNoRows
}

type mockLessonReader struct {
	lessons map[string]models.Lesson
}

func (m *mockLessonReader) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	if l, ok := m.lessons[id]; ok && l.Active {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

const courseUUID = "7f8c1f8a-74c6-4a9e-9a31-0f8f4dd32101"

func publishedCourse() models.Course {
	return models.Course{ID: courseUUID, Slug: "go-basics", Status: models.CourseStatusPublished, Active: true}
}

func newEnrollmentFixture(counters models.EnrollmentProgress) (*EnrollmentService, *mockEnrollmentStore) {
	repo := &mockEnrollmentStore{
		enrollments: map[string]models.Enrollment{
			"e1": {ID: "e1", UserID: "u1", CourseID: courseUUID, Status: models.EnrollmentStatusActive, Active: true},
		},
		counters: counters,
	}
	courses := &mockCourseStore{courses: map[string]models.Course{courseUUID: publishedCourse()}}
	lessons := &mockLessonReader{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", CourseID: courseUUID, Active: true},
		"l9": {ID: "l9", CourseID: "other-course", Active: true},
	}}
	svc := NewEnrollmentService(repo, courses, lessons, nil, validator.New(), zap.NewNop())
	return svc, repo
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	svc, repo := newEnrollmentFixture(models.EnrollmentProgress{})
	actor := models.JWTClaims{UserID: "u2", Role: models.RoleStudent}

	enrollment, err := svc.Enroll(context.Background(), actor, EnrollRequest{CourseID: courseUUID})
	require.NoError(t, err)
	assert.Equal(t, "u2", enrollment.UserID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.NotNil(t, repo.created)
}

func TestEnrollmentServiceEnrollUnpublishedCourse(t *testing.T) {
	svc, _ := newEnrollmentFixture(models.EnrollmentProgress{})
	repoCourse := svc.courses.(*mockCourseStore)
	draft := publishedCourse()
	draft.Status = models.CourseStatusDraft
	repoCourse.courses[courseUUID] = draft

	_, err := svc.Enroll(context.Background(), models.JWTClaims{UserID: "u2", Role: models.RoleStudent}, EnrollRequest{CourseID: courseUUID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	svc, repo := newEnrollmentFixture(models.EnrollmentProgress{})
	repo.createErr = &pq.Error{Code: "23505"}

	_, err := svc.Enroll(context.Background(), models.JWTClaims{UserID: "u1", Role: models.RoleStudent}, EnrollRequest{CourseID: courseUUID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCompleteLessonProgress(t *testing.T) {
	svc, repo := newEnrollmentFixture(models.EnrollmentProgress{CompletedLessons: 3, TotalLessons: 4})
	actor := models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	enrollment, err := svc.CompleteLesson(context.Background(), actor, "e1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 75.0, enrollment.Progress)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Nil(t, enrollment.CompletedAt)
	assert.NotNil(t, repo.updated)
}

func TestEnrollmentServiceCompleteLastLesson(t *testing.T) {
	svc, _ := newEnrollmentFixture(models.EnrollmentProgress{CompletedLessons: 4, TotalLessons: 4})
	actor := models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	enrollment, err := svc.CompleteLesson(context.Background(), actor, "e1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, enrollment.Progress)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	require.NotNil(t, enrollment.CompletedAt)
}

func TestEnrollmentServiceCompleteLessonIdempotent(t *testing.T) {
	svc, _ := newEnrollmentFixture(models.EnrollmentProgress{CompletedLessons: 2, TotalLessons: 4})
	actor := models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	first, err := svc.CompleteLesson(context.Background(), actor, "e1", "l1")
	require.NoError(t, err)
	second, err := svc.CompleteLesson(context.Background(), actor, "e1", "l1")
	require.NoError(t, err)
	assert.Equal(t, first.Progress, second.Progress)
}

func TestEnrollmentServiceCompleteLessonWrongCourse(t *testing.T) {
	svc, _ := newEnrollmentFixture(models.EnrollmentProgress{})
	actor := models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	_, err := svc.CompleteLesson(context.Background(), actor, "e1", "l9")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCompleteLessonForeignEnrollment(t *testing.T) {
	svc, _ := newEnrollmentFixture(models.EnrollmentProgress{})
	actor := models.JWTClaims{UserID: "someone-else", Role: models.RoleStudent}

	_, err := svc.CompleteLesson(context.Background(), actor, "e1", "l1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCancel(t *testing.T) {
	svc, repo := newEnrollmentFixture(models.EnrollmentProgress{})
	actor := models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	enrollment, err := svc.Cancel(context.Background(), actor, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, enrollment.Status)

	repo.enrollments["e1"] = *enrollment
	_, err = svc.Cancel(context.Background(), actor, "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
