// Package repository declares the storage interfaces the service layer
// depends on. Services receive these interfaces, never the concrete sqlite
// types — tests substitute in-memory fakes, and the SQL layer can be swapped
// without touching business logic.
package repository

import (
	"context"

	"github.com/sakif/learnpath/internal/model"
)

// UserRepository persists accounts. The method names carry the User prefix
// because one sqlite.DB value implements every repository interface and the
// path methods already own the bare Create/GetByID names.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// GetUserByGoogleID returns apperror.NotFound when no account is linked
	// to the given Google subject identifier.
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
}

// PathRepository persists learning paths and their nested levels, modules,
// and projects. Every method is scoped by the owning userID: a path that
// exists but belongs to someone else behaves exactly like a missing one.
type PathRepository interface {
	List(ctx context.Context, userID string) ([]model.PathSummary, error)
	GetByID(ctx context.Context, userID, pathID string) (*model.LearningPath, error)
	// Create inserts the path and all children in one transaction,
	// assigning order_index from slice position. Returns the new path ID.
	Create(ctx context.Context, userID, topic string, levels []model.NewLevel) (string, error)
	// Replace updates the topic and destructively recreates all children.
	Replace(ctx context.Context, userID, pathID, topic string, levels []model.NewLevel) error
	Delete(ctx context.Context, userID, pathID string) error
	// SetModuleCompletion verifies module → level → path → user ownership
	// before writing; a failed check is a NotFound.
	SetModuleCompletion(ctx context.Context, userID, pathID, moduleID string, completed bool) error
	SetModuleNotes(ctx context.Context, userID, pathID, moduleID, notes string) error
}

// MetricsRepository maintains the per-user rollup and serves the derived
// read-only views.
type MetricsRepository interface {
	// InitUser inserts the zeroed metrics row created at registration.
	InitUser(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*model.UserMetrics, error)
	// Recalculate recomputes every counter from the live child tables and
	// upserts the result. Idempotent; safe after every mutation.
	Recalculate(ctx context.Context, userID string) (*model.UserMetrics, error)
	RecentActivity(ctx context.Context, userID string) (*model.RecentActivity, error)
	ProgressByLevel(ctx context.Context, userID string) (*model.ProgressByLevel, error)
	PathMetrics(ctx context.Context, userID string) ([]model.PathMetrics, error)
	Activity(ctx context.Context, userID string, limit int) (*model.ActivityReport, error)
}
