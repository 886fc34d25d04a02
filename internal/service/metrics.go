package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/learnpath/internal/model"
	"github.com/sakif/learnpath/internal/repository"
)

// Activity feed limits.
const (
	DefaultActivityLimit = 10
	MaxActivityLimit     = 50
)

// MetricsService serves the progress dashboard: the stored rollup, the
// forced recalculation, and the derived read-only views.
type MetricsService struct {
	metrics repository.MetricsRepository
	logger  *slog.Logger
}

// NewMetricsService creates a MetricsService.
func NewMetricsService(metrics repository.MetricsRepository, logger *slog.Logger) *MetricsService {
	return &MetricsService{
		metrics: metrics,
		logger:  logger,
	}
}

// Overview is the combined payload of the metrics endpoint: the stored
// rollup plus the two live views the dashboard renders next to it.
type Overview struct {
	model.UserMetrics
	RecentActivity  *model.RecentActivity  `json:"recentActivity"`
	ProgressByLevel *model.ProgressByLevel `json:"progressByLevel"`
}

// Overview returns the stored rollup enriched with recent activity and
// per-tier progress. The rollup itself is read as stored — mutations keep
// it fresh; Recalculate is the explicit repair path.
func (s *MetricsService) Overview(ctx context.Context, userID string) (*Overview, error) {
	stored, err := s.metrics.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading metrics: %w", err)
	}

	activity, err := s.metrics.RecentActivity(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load recent activity",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		activity = &model.RecentActivity{}
	}

	progress, err := s.metrics.ProgressByLevel(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load progress by level",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		progress = &model.ProgressByLevel{}
	}

	return &Overview{
		UserMetrics:     *stored,
		RecentActivity:  activity,
		ProgressByLevel: progress,
	}, nil
}

// Recalculate forces a full recompute from the child tables and returns the
// fresh rollup. Idempotent: calling it twice with no intervening mutation
// yields identical counters.
func (s *MetricsService) Recalculate(ctx context.Context, userID string) (*model.UserMetrics, error) {
	fresh, err := s.metrics.Recalculate(ctx, userID)
	if err != nil {
		s.logger.Error("forced recalculation failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recalculating metrics: %w", err)
	}

	s.logger.Info("metrics recalculated",
		slog.String("userID", userID),
		slog.Int("totalPaths", fresh.TotalPaths),
		slog.Int("totalModules", fresh.TotalModules),
	)
	return fresh, nil
}

// PathMetrics returns the per-path completion report with level breakdowns.
func (s *MetricsService) PathMetrics(ctx context.Context, userID string) ([]model.PathMetrics, error) {
	metrics, err := s.metrics.PathMetrics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading path metrics: %w", err)
	}
	return metrics, nil
}

// Activity returns the recent-history feed, clamping limit to a sane range.
func (s *MetricsService) Activity(ctx context.Context, userID string, limit int) (*model.ActivityReport, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}

	report, err := s.metrics.Activity(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading activity: %w", err)
	}
	return report, nil
}
