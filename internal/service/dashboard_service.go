package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eduplex/course-api/internal/models"
	appErrors "github.com/eduplex/course-api/pkg/errors"
)

type dashboardRepository interface {
	Totals(ctx context.Context) (*models.DashboardTotals, error)
	TopCourses(ctx context.Context, limit int) ([]models.TopCourse, error)
}

const dashboardCacheKey = "dashboard:admin"

// DashboardService assembles the admin overview, serving from cache when a
// fresh copy exists.
type DashboardService struct {
	repo     dashboardRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(repo dashboardRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Admin returns platform totals and the top courses by enrollment volume.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, error) {
	var cached models.AdminDashboard
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute dashboard totals")
	}
	topCourses, err := s.repo.TopCourses(ctx, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank top courses")
	}

	dashboard := &models.AdminDashboard{
		Totals:      *totals,
		TopCourses:  topCourses,
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, dashboard, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard", zap.Error(err))
	}
	return dashboard, nil
}

// Invalidate drops the cached dashboard after writes that change totals.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
