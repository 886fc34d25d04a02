package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/learnpath/internal/apperror"
	"github.com/sakif/learnpath/internal/model"
	"github.com/sakif/learnpath/internal/repository"
)

// Validation limits for inbound curricula.
const (
	MaxTopicLength  = 200
	MaxTitleLength  = 300
	MaxNotesLength  = 10000
	MaxLevelsPerReq = 10
)

// PathService handles the learning-path business rules: validation,
// ownership scoping, and keeping the metrics rollup fresh after every
// mutation.
type PathService struct {
	paths   repository.PathRepository
	metrics repository.MetricsRepository
	logger  *slog.Logger
}

// NewPathService creates a PathService.
func NewPathService(paths repository.PathRepository, metrics repository.MetricsRepository, logger *slog.Logger) *PathService {
	return &PathService{
		paths:   paths,
		metrics: metrics,
		logger:  logger,
	}
}

// List returns summaries of the user's paths, newest first.
func (s *PathService) List(ctx context.Context, userID string) ([]model.PathSummary, error) {
	summaries, err := s.paths.List(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list paths",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing paths: %w", err)
	}
	return summaries, nil
}

// Get returns one path with its full tree, or NotFound — whether the path
// is absent or owned by someone else is deliberately indistinguishable.
func (s *PathService) Get(ctx context.Context, userID, pathID string) (*model.LearningPath, error) {
	if strings.TrimSpace(pathID) == "" {
		return nil, apperror.ValidationFailed("id", "path ID is required")
	}
	return s.paths.GetByID(ctx, userID, pathID)
}

// Create validates and persists a new path, then refreshes the rollup.
//
// The path is committed before the recalculation runs. If the refresh
// fails, the path still exists — the caller gets a metrics error and can
// repair via the recalculate endpoint.
func (s *PathService) Create(ctx context.Context, userID, topic string, levels []model.NewLevel) (string, error) {
	topic = strings.TrimSpace(topic)
	if err := validateCurriculum(topic, levels); err != nil {
		return "", err
	}

	pathID, err := s.paths.Create(ctx, userID, topic, levels)
	if err != nil {
		s.logger.Error("failed to create path",
			slog.String("userID", userID),
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("creating path: %w", err)
	}

	s.logger.Info("path created",
		slog.String("pathID", pathID),
		slog.String("userID", userID),
		slog.String("topic", topic),
	)

	if err := s.refreshMetrics(ctx, userID); err != nil {
		return pathID, err
	}
	return pathID, nil
}

// Update replaces the path's topic and entire level tree.
//
// This is a destructive replace, not a merge: module completion and notes
// not present in levels are lost. Callers must round-trip the current
// state if they want to keep it.
func (s *PathService) Update(ctx context.Context, userID, pathID, topic string, levels []model.NewLevel) error {
	topic = strings.TrimSpace(topic)
	if err := validateCurriculum(topic, levels); err != nil {
		return err
	}

	if err := s.paths.Replace(ctx, userID, pathID, topic, levels); err != nil {
		return fmt.Errorf("updating path: %w", err)
	}

	s.logger.Info("path updated",
		slog.String("pathID", pathID),
		slog.String("userID", userID),
	)

	return s.refreshMetrics(ctx, userID)
}

// Delete removes a path and everything under it, then refreshes the rollup.
func (s *PathService) Delete(ctx context.Context, userID, pathID string) error {
	if err := s.paths.Delete(ctx, userID, pathID); err != nil {
		return err
	}

	s.logger.Info("path deleted",
		slog.String("pathID", pathID),
		slog.String("userID", userID),
	)

	return s.refreshMetrics(ctx, userID)
}

// ToggleModuleCompletion sets a module's completion flag and refreshes the
// rollup. Ownership is verified down the module → level → path → user chain.
func (s *PathService) ToggleModuleCompletion(ctx context.Context, userID, pathID, moduleID string, completed bool) error {
	if err := s.paths.SetModuleCompletion(ctx, userID, pathID, moduleID, completed); err != nil {
		return err
	}

	s.logger.Info("module completion toggled",
		slog.String("moduleID", moduleID),
		slog.Bool("completed", completed),
	)

	return s.refreshMetrics(ctx, userID)
}

// UpdateModuleNotes sets a module's notes. Notes don't feed any aggregate,
// so no recalculation happens here.
func (s *PathService) UpdateModuleNotes(ctx context.Context, userID, pathID, moduleID, notes string) error {
	if len(notes) > MaxNotesLength {
		return apperror.ValidationFailed("notes",
			fmt.Sprintf("notes must be %d characters or less", MaxNotesLength))
	}
	return s.paths.SetModuleNotes(ctx, userID, pathID, moduleID, notes)
}

// refreshMetrics recomputes the rollup after a mutation. The mutation has
// already committed; a failure here is reported as its own error so the
// caller knows the primary write succeeded but the cached counters may be
// stale until the next recalculation.
func (s *PathService) refreshMetrics(ctx context.Context, userID string) error {
	if _, err := s.metrics.Recalculate(ctx, userID); err != nil {
		s.logger.Error("metrics recalculation failed after mutation",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("metrics update failed: %w", err)
	}
	return nil
}

// validateCurriculum checks the inbound topic and level tree.
func validateCurriculum(topic string, levels []model.NewLevel) error {
	if topic == "" {
		return apperror.ValidationFailed("topic", "topic is required")
	}
	if len(topic) > MaxTopicLength {
		return apperror.ValidationFailed("topic",
			fmt.Sprintf("topic must be %d characters or less", MaxTopicLength))
	}
	if len(levels) == 0 {
		return apperror.ValidationFailed("levels", "at least one level is required")
	}
	if len(levels) > MaxLevelsPerReq {
		return apperror.ValidationFailed("levels",
			fmt.Sprintf("at most %d levels are allowed", MaxLevelsPerReq))
	}
	for i, level := range levels {
		if strings.TrimSpace(level.Name) == "" {
			return apperror.ValidationFailed("levels",
				fmt.Sprintf("level %d is missing a name", i))
		}
		for j, mod := range level.Modules {
			if strings.TrimSpace(mod.Title) == "" {
				return apperror.ValidationFailed("levels",
					fmt.Sprintf("module %d of level %q is missing a title", j, level.Name))
			}
			if len(mod.Title) > MaxTitleLength {
				return apperror.ValidationFailed("levels",
					fmt.Sprintf("module title in level %q exceeds %d characters", level.Name, MaxTitleLength))
			}
		}
		for j, proj := range level.Projects {
			if strings.TrimSpace(proj.Title) == "" {
				return apperror.ValidationFailed("levels",
					fmt.Sprintf("project %d of level %q is missing a title", j, level.Name))
			}
		}
	}
	return nil
}
