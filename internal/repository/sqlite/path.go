package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/learnpath/internal/apperror"
	"github.com/sakif/learnpath/internal/model"
	"github.com/sakif/learnpath/internal/repository"
)

var _ repository.PathRepository = (*DB)(nil)

// List returns summaries of every path owned by userID, newest first.
// The LEFT JOINs keep zero-level and zero-module paths in the result with
// zero counts; COUNT(DISTINCT ...) is needed because the module join fans
// out the level rows.
func (db *DB) List(ctx context.Context, userID string) ([]model.PathSummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT lp.id, lp.topic, lp.created_at,
		        COUNT(DISTINCT l.id) AS level_count,
		        COUNT(m.id) AS module_count,
		        COALESCE(SUM(CASE WHEN m.is_completed = 1 THEN 1 ELSE 0 END), 0) AS completed_count
		 FROM learning_paths lp
		 LEFT JOIN levels l ON l.learning_path_id = lp.id
		 LEFT JOIN modules m ON m.level_id = l.id
		 WHERE lp.user_id = ?
		 GROUP BY lp.id, lp.topic, lp.created_at
		 ORDER BY lp.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing paths: %w", err)
	}
	defer rows.Close()

	summaries := make([]model.PathSummary, 0, 8)
	for rows.Next() {
		var s model.PathSummary
		if err := rows.Scan(&s.ID, &s.Topic, &s.CreatedAt,
			&s.LevelCount, &s.ModuleCount, &s.CompletedModuleCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning path summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating path summaries: %w", err)
	}
	return summaries, nil
}

// GetByID loads one path with its full level → module/project tree.
// Ownership is part of the lookup: a path owned by a different user is
// indistinguishable from an absent one.
func (db *DB) GetByID(ctx context.Context, userID, pathID string) (*model.LearningPath, error) {
	var path model.LearningPath
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, topic, created_at
		 FROM learning_paths WHERE id = ? AND user_id = ?`,
		pathID, userID,
	).Scan(&path.ID, &path.UserID, &path.Topic, &path.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("learning path", pathID)
		}
		return nil, fmt.Errorf("sqlite: getting path %s: %w", pathID, err)
	}

	levels, err := db.loadLevels(ctx, pathID)
	if err != nil {
		return nil, err
	}
	path.Levels = levels
	return &path, nil
}

func (db *DB) loadLevels(ctx context.Context, pathID string) ([]model.Level, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, order_index FROM levels
		 WHERE learning_path_id = ? ORDER BY order_index`,
		pathID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading levels for path %s: %w", pathID, err)
	}
	defer rows.Close()

	levels := make([]model.Level, 0, 3)
	for rows.Next() {
		var l model.Level
		if err := rows.Scan(&l.ID, &l.Name, &l.OrderIndex); err != nil {
			return nil, fmt.Errorf("sqlite: scanning level: %w", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating levels: %w", err)
	}

	for i := range levels {
		if levels[i].Modules, err = db.loadModules(ctx, levels[i].ID); err != nil {
			return nil, err
		}
		if levels[i].Projects, err = db.loadProjects(ctx, levels[i].ID); err != nil {
			return nil, err
		}
	}
	return levels, nil
}

func (db *DB) loadModules(ctx context.Context, levelID string) ([]model.Module, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, description, youtube_url, github_url,
		        is_completed, notes, order_index, updated_at
		 FROM modules WHERE level_id = ? ORDER BY order_index`,
		levelID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading modules for level %s: %w", levelID, err)
	}
	defer rows.Close()

	modules := make([]model.Module, 0, 8)
	for rows.Next() {
		var m model.Module
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.YoutubeURL,
			&m.GithubURL, &m.IsCompleted, &m.Notes, &m.OrderIndex, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning module: %w", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating modules: %w", err)
	}
	return modules, nil
}

func (db *DB) loadProjects(ctx context.Context, levelID string) ([]model.Project, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, description, github_url, order_index
		 FROM projects WHERE level_id = ? ORDER BY order_index`,
		levelID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading projects for level %s: %w", levelID, err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0, 5)
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.GithubURL, &p.OrderIndex); err != nil {
			return nil, fmt.Errorf("sqlite: scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}
	return projects, nil
}

// Create inserts a path and its whole level/module/project tree in a single
// transaction: either the full curriculum lands or none of it does.
// order_index always comes from slice position, so indices are dense and
// start at 0.
func (db *DB) Create(ctx context.Context, userID, topic string, levels []model.NewLevel) (string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: beginning create transaction: %w", err)
	}
	// Rollback is a no-op after a successful Commit.
	defer tx.Rollback()

	pathID := xid.New().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO learning_paths (id, user_id, topic, created_at) VALUES (?, ?, ?, ?)`,
		pathID, userID, topic, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("sqlite: inserting path: %w", err)
	}

	if err := insertLevels(ctx, tx, pathID, levels); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlite: committing path create: %w", err)
	}
	return pathID, nil
}

// Replace is the destructive update: new topic, delete all levels (the
// cascade removes modules and projects), re-insert the submitted tree.
// Module completion and notes that the caller did not round-trip are gone —
// that is the documented contract of the update endpoint.
func (db *DB) Replace(ctx context.Context, userID, pathID, topic string, levels []model.NewLevel) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning replace transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE learning_paths SET topic = ? WHERE id = ? AND user_id = ?`,
		topic, pathID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating path %s: %w", pathID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("learning path", pathID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM levels WHERE learning_path_id = ?`, pathID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing levels for path %s: %w", pathID, err)
	}

	if err := insertLevels(ctx, tx, pathID, levels); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing path replace: %w", err)
	}
	return nil
}

// insertLevels writes a full level/module/project tree inside tx.
func insertLevels(ctx context.Context, tx *sql.Tx, pathID string, levels []model.NewLevel) error {
	now := time.Now().UTC()
	for li, level := range levels {
		levelID := xid.New().String()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO levels (id, learning_path_id, name, order_index) VALUES (?, ?, ?, ?)`,
			levelID, pathID, level.Name, li,
		); err != nil {
			return fmt.Errorf("sqlite: inserting level %d: %w", li, err)
		}

		for mi, mod := range level.Modules {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO modules
				 (id, level_id, title, description, youtube_url, github_url,
				  is_completed, notes, order_index, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				xid.New().String(), levelID, mod.Title, mod.Description,
				mod.YoutubeURL, mod.GithubURL, mod.IsCompleted, mod.Notes, mi, now,
			); err != nil {
				return fmt.Errorf("sqlite: inserting module %d of level %d: %w", mi, li, err)
			}
		}

		for pi, proj := range level.Projects {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO projects (id, level_id, title, description, github_url, order_index)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				xid.New().String(), levelID, proj.Title, proj.Description, proj.GithubURL, pi,
			); err != nil {
				return fmt.Errorf("sqlite: inserting project %d of level %d: %w", pi, li, err)
			}
		}
	}
	return nil
}

// Delete removes a path; the foreign-key cascade takes the levels, modules,
// and projects with it.
func (db *DB) Delete(ctx context.Context, userID, pathID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM learning_paths WHERE id = ? AND user_id = ?`,
		pathID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting path %s: %w", pathID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("learning path", pathID)
	}
	return nil
}

// SetModuleCompletion flips a module's completion flag. The three-way join
// in the WHERE clause is the ownership check: the module must belong to a
// level of a path owned by userID, and the path ID in the URL must match.
func (db *DB) SetModuleCompletion(ctx context.Context, userID, pathID, moduleID string, completed bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE modules SET is_completed = ?, updated_at = ?
		 WHERE id = ? AND level_id IN (
		     SELECT l.id FROM levels l
		     JOIN learning_paths lp ON lp.id = l.learning_path_id
		     WHERE lp.id = ? AND lp.user_id = ?
		 )`,
		completed, time.Now().UTC(), moduleID, pathID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating module %s completion: %w", moduleID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("module", moduleID)
	}
	return nil
}

// SetModuleNotes updates only the notes text. Deliberately leaves
// updated_at alone so the recent-activity feed reflects completion events,
// not note edits.
func (db *DB) SetModuleNotes(ctx context.Context, userID, pathID, moduleID, notes string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE modules SET notes = ?
		 WHERE id = ? AND level_id IN (
		     SELECT l.id FROM levels l
		     JOIN learning_paths lp ON lp.id = l.learning_path_id
		     WHERE lp.id = ? AND lp.user_id = ?
		 )`,
		notes, moduleID, pathID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating module %s notes: %w", moduleID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("module", moduleID)
	}
	return nil
}
