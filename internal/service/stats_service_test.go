package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduplex/course-api/internal/models"
	appErrors "github.com/eduplex/course-api/pkg/errors"
)

type courseStatsRepoMock struct {
	recomputed []string
	course     *models.Course
	err        error
}

func (m *courseStatsRepoMock) RecomputeStats(ctx context.Context, id string) error {
	m.recomputed = append(m.recomputed, id)
	return m.err
}

func (m *courseStatsRepoMock) FindByIDAny(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil {
		return nil, errors.New("course missing")
	}
	return m.course, nil
}

type instructorStatsRepoMock struct {
	recomputed []string
	err        error
}

func (m *instructorStatsRepoMock) RecomputeStats(ctx context.Context, id string) error {
	m.recomputed = append(m.recomputed, id)
	return m.err
}

type recordingCacheRepo struct {
	deletedPatterns []string
}

func (r *recordingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (r *recordingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (r *recordingCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	r.deletedPatterns = append(r.deletedPatterns, pattern)
	return nil
}

func newStatsFixture() (*StatsService, *courseStatsRepoMock, *instructorStatsRepoMock, *recordingCacheRepo) {
	courses := &courseStatsRepoMock{course: &models.Course{ID: "c1", InstructorID: "i1"}}
	instructors := &instructorStatsRepoMock{}
	cacheRepo := &recordingCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	dashboard := NewDashboardService(nil, cacheSvc, time.Minute, zap.NewNop())
	svc := NewStatsService(courses, instructors, dashboard, zap.NewNop())
	return svc, courses, instructors, cacheRepo
}

func TestStatsServiceCourseChangedCascades(t *testing.T) {
	svc, courses, instructors, cacheRepo := newStatsFixture()

	svc.CourseChanged(context.Background(), "c1")

	assert.Equal(t, []string{"c1"}, courses.recomputed)
	assert.Equal(t, []string{"i1"}, instructors.recomputed)
	require.Len(t, cacheRepo.deletedPatterns, 1)
	assert.Equal(t, dashboardCacheKey, cacheRepo.deletedPatterns[0])
}

func TestStatsServiceInstructorChangedInvalidatesDashboard(t *testing.T) {
	svc, _, instructors, cacheRepo := newStatsFixture()

	svc.InstructorChanged(context.Background(), "i1")

	assert.Equal(t, []string{"i1"}, instructors.recomputed)
	assert.Equal(t, []string{dashboardCacheKey}, cacheRepo.deletedPatterns)
}

func TestStatsServiceSwallowsRecomputeErrors(t *testing.T) {
	svc, courses, instructors, cacheRepo := newStatsFixture()
	courses.err = errors.New("recompute failed")
	instructors.err = errors.New("recompute failed")

	svc.CourseChanged(context.Background(), "c1")

	assert.Len(t, cacheRepo.deletedPatterns, 1)
}

func TestStatsServiceCourseLookupFailureStillInvalidates(t *testing.T) {
	svc, courses, instructors, cacheRepo := newStatsFixture()
	courses.course = nil

	svc.CourseChanged(context.Background(), "c1")

	assert.Empty(t, instructors.recomputed)
	assert.Len(t, cacheRepo.deletedPatterns, 1)
}

func TestStatsServiceNilDashboard(t *testing.T) {
	courses := &courseStatsRepoMock{course: &models.Course{ID: "c1", InstructorID: "i1"}}
	instructors := &instructorStatsRepoMock{}
	svc := NewStatsService(courses, instructors, nil, zap.NewNop())

	svc.CourseChanged(context.Background(), "c1")
	assert.Equal(t, []string{"i1"}, instructors.recomputed)
}
