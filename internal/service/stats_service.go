package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/eduplex/course-api/internal/models"
)

type courseStatsRepository interface {
	FindByIDAny(ctx context.Context, id string) (*models.Course, error)
	RecomputeStats(ctx context.Context, id string) error
}

type instructorStatsRepository interface {
	RecomputeStats(ctx context.Context, id string) error
}

// StatsService runs the denormalized-counter cascade. Writers call it
// explicitly after committing their change; recompute failures are logged
// and swallowed so the triggering write still succeeds. Every write that
// reaches the cascade also changes dashboard figures, so the cached
// dashboard is dropped here.
type StatsService struct {
	courses     courseStatsRepository
	instructors instructorStatsRepository
	dashboard   *DashboardService
	logger      *zap.Logger
}

// NewStatsService constructs the stats cascade service. dashboard may be nil
// when no cache is wired.
func NewStatsService(courses courseStatsRepository, instructors instructorStatsRepository, dashboard *DashboardService, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{courses: courses, instructors: instructors, dashboard: dashboard, logger: logger}
}

// CourseChanged recomputes a course's counters and cascades to its
// instructor. Called after lesson or enrollment writes and after the course's
// own lifecycle transitions.
func (s *StatsService) CourseChanged(ctx context.Context, courseID string) {
	if err := s.courses.RecomputeStats(ctx, courseID); err != nil {
		s.logger.Warn("course stats recompute failed", zap.String("course_id", courseID), zap.Error(err))
	}

	course, err := s.courses.FindByIDAny(ctx, courseID)
	if err != nil {
		s.logger.Warn("course lookup for instructor cascade failed", zap.String("course_id", courseID), zap.Error(err))
		s.invalidateDashboard(ctx)
		return
	}
	s.recomputeInstructor(ctx, course.InstructorID)
	s.invalidateDashboard(ctx)
}

// InstructorChanged recomputes an instructor's aggregate counters.
func (s *StatsService) InstructorChanged(ctx context.Context, instructorID string) {
	s.recomputeInstructor(ctx, instructorID)
	s.invalidateDashboard(ctx)
}

func (s *StatsService) recomputeInstructor(ctx context.Context, instructorID string) {
	if err := s.instructors.RecomputeStats(ctx, instructorID); err != nil {
		s.logger.Warn("instructor stats recompute failed", zap.String("instructor_id", instructorID), zap.Error(err))
	}
}

func (s *StatsService) invalidateDashboard(ctx context.Context) {
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx)
	}
}
