package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sakif/learnpath/internal/apperror"
	"github.com/sakif/learnpath/internal/model"
	"github.com/sakif/learnpath/internal/repository"
)

var _ repository.MetricsRepository = (*DB)(nil)

// InitUser inserts the zeroed rollup row that registration creates for
// every account.
func (db *DB) InitUser(ctx context.Context, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_metrics (user_id, last_updated) VALUES (?, ?)`,
		userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: initializing metrics for user %s: %w", userID, err)
	}
	return nil
}

// Get returns the stored rollup as-is, without recomputing.
func (db *DB) Get(ctx context.Context, userID string) (*model.UserMetrics, error) {
	m := model.UserMetrics{UserID: userID}
	err := db.conn.QueryRowContext(ctx,
		`SELECT total_paths, completed_paths, total_modules, completed_modules,
		        average_completion_rate, last_updated
		 FROM user_metrics WHERE user_id = ?`,
		userID,
	).Scan(&m.TotalPaths, &m.CompletedPaths, &m.TotalModules,
		&m.CompletedModules, &m.AverageCompletionRate, &m.LastUpdated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user metrics", userID)
		}
		return nil, fmt.Errorf("sqlite: getting metrics for user %s: %w", userID, err)
	}
	return &m, nil
}

// Recalculate recomputes every counter from the live child tables and
// upserts the result. This is the only way the rollup is ever written —
// never incremented in place, so a missed call site can at worst leave the
// cache stale, never permanently wrong.
func (db *DB) Recalculate(ctx context.Context, userID string) (*model.UserMetrics, error) {
	// One row per path. LEFT JOINs keep zero-module paths in the set so
	// they count toward total_paths without counting as completed.
	rows, err := db.conn.QueryContext(ctx,
		`SELECT COUNT(m.id) AS total_modules,
		        COALESCE(SUM(CASE WHEN m.is_completed = 1 THEN 1 ELSE 0 END), 0) AS completed_modules
		 FROM learning_paths lp
		 LEFT JOIN levels l ON l.learning_path_id = lp.id
		 LEFT JOIN modules m ON m.level_id = l.id
		 WHERE lp.user_id = ?
		 GROUP BY lp.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating paths for user %s: %w", userID, err)
	}
	defer rows.Close()

	m := model.UserMetrics{UserID: userID}
	for rows.Next() {
		var total, completed int
		if err := rows.Scan(&total, &completed); err != nil {
			return nil, fmt.Errorf("sqlite: scanning path aggregate: %w", err)
		}
		m.TotalPaths++
		m.TotalModules += total
		m.CompletedModules += completed
		if total > 0 && total == completed {
			m.CompletedPaths++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating path aggregates: %w", err)
	}

	if m.TotalModules > 0 {
		m.AverageCompletionRate = int(math.Round(float64(m.CompletedModules) * 100 / float64(m.TotalModules)))
	}
	m.LastUpdated = time.Now().UTC()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO user_metrics
		 (user_id, total_paths, completed_paths, total_modules, completed_modules,
		  average_completion_rate, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     total_paths = excluded.total_paths,
		     completed_paths = excluded.completed_paths,
		     total_modules = excluded.total_modules,
		     completed_modules = excluded.completed_modules,
		     average_completion_rate = excluded.average_completion_rate,
		     last_updated = excluded.last_updated`,
		userID, m.TotalPaths, m.CompletedPaths, m.TotalModules,
		m.CompletedModules, m.AverageCompletionRate, m.LastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting metrics for user %s: %w", userID, err)
	}
	return &m, nil
}

// RecentActivity returns the most recently updated completed module, the
// most recently created path, and the all-time completed-module count.
func (db *DB) RecentActivity(ctx context.Context, userID string) (*model.RecentActivity, error) {
	activity := &model.RecentActivity{}

	var title, topic string
	err := db.conn.QueryRowContext(ctx,
		`SELECT m.title, lp.topic
		 FROM modules m
		 JOIN levels l ON l.id = m.level_id
		 JOIN learning_paths lp ON lp.id = l.learning_path_id
		 WHERE lp.user_id = ? AND m.is_completed = 1
		 ORDER BY m.updated_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&title, &topic)
	switch {
	case err == sql.ErrNoRows:
		// no completed modules yet
	case err != nil:
		return nil, fmt.Errorf("sqlite: getting last completed module: %w", err)
	default:
		activity.LastCompletedModule = fmt.Sprintf("%s (%s)", title, topic)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT topic FROM learning_paths
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`,
		userID,
	).Scan(&activity.LastCreatedPath)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: getting last created path: %w", err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM modules m
		 JOIN levels l ON l.id = m.level_id
		 JOIN learning_paths lp ON lp.id = l.learning_path_id
		 WHERE lp.user_id = ? AND m.is_completed = 1`,
		userID,
	).Scan(&activity.CompletedModuleCount)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting completed modules: %w", err)
	}

	return activity, nil
}

// ProgressByLevel sums module totals per level name and buckets them into
// the three conventional tiers by case-insensitive substring match. Names
// matching nothing land in Beginner.
func (db *DB) ProgressByLevel(ctx context.Context, userID string) (*model.ProgressByLevel, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT l.name,
		        COUNT(m.id) AS total_modules,
		        COALESCE(SUM(CASE WHEN m.is_completed = 1 THEN 1 ELSE 0 END), 0) AS completed_modules
		 FROM learning_paths lp
		 JOIN levels l ON l.learning_path_id = lp.id
		 LEFT JOIN modules m ON m.level_id = l.id
		 WHERE lp.user_id = ?
		 GROUP BY l.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating level progress: %w", err)
	}
	defer rows.Close()

	progress := &model.ProgressByLevel{}
	for rows.Next() {
		var (
			name             string
			total, completed int
		)
		if err := rows.Scan(&name, &total, &completed); err != nil {
			return nil, fmt.Errorf("sqlite: scanning level progress: %w", err)
		}

		bucket := &progress.Beginner
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "intermediate"):
			bucket = &progress.Intermediate
		case strings.Contains(lower, "advanced"), strings.Contains(lower, "expert"):
			bucket = &progress.Advanced
		}
		bucket.Total += total
		bucket.Completed += completed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating level progress: %w", err)
	}
	return progress, nil
}

// PathMetrics returns the per-path completion report with a level breakdown.
// Rates use one-decimal rounding of completed/total×100.
func (db *DB) PathMetrics(ctx context.Context, userID string) ([]model.PathMetrics, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT lp.id, lp.topic, lp.created_at,
		        COUNT(DISTINCT l.id) AS total_levels,
		        COUNT(m.id) AS total_modules,
		        COALESCE(SUM(CASE WHEN m.is_completed = 1 THEN 1 ELSE 0 END), 0) AS completed_modules
		 FROM learning_paths lp
		 LEFT JOIN levels l ON l.learning_path_id = lp.id
		 LEFT JOIN modules m ON m.level_id = l.id
		 WHERE lp.user_id = ?
		 GROUP BY lp.id, lp.topic, lp.created_at
		 ORDER BY lp.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating path metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]model.PathMetrics, 0, 8)
	for rows.Next() {
		var pm model.PathMetrics
		if err := rows.Scan(&pm.ID, &pm.Topic, &pm.CreatedAt,
			&pm.TotalLevels, &pm.TotalModules, &pm.CompletedModules); err != nil {
			return nil, fmt.Errorf("sqlite: scanning path metrics: %w", err)
		}
		pm.CompletionRate = completionRate(pm.CompletedModules, pm.TotalModules)
		pm.IsCompleted = pm.TotalModules > 0 && pm.TotalModules == pm.CompletedModules
		metrics = append(metrics, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating path metrics: %w", err)
	}

	for i := range metrics {
		levels, err := db.levelBreakdown(ctx, metrics[i].ID)
		if err != nil {
			return nil, err
		}
		metrics[i].Levels = levels
	}
	return metrics, nil
}

func (db *DB) levelBreakdown(ctx context.Context, pathID string) ([]model.LevelMetrics, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT l.name,
		        COUNT(m.id) AS total_modules,
		        COALESCE(SUM(CASE WHEN m.is_completed = 1 THEN 1 ELSE 0 END), 0) AS completed_modules
		 FROM levels l
		 LEFT JOIN modules m ON m.level_id = l.id
		 WHERE l.learning_path_id = ?
		 GROUP BY l.id, l.name
		 ORDER BY l.order_index, l.name`,
		pathID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating level breakdown for path %s: %w", pathID, err)
	}
	defer rows.Close()

	levels := make([]model.LevelMetrics, 0, 3)
	for rows.Next() {
		var lm model.LevelMetrics
		if err := rows.Scan(&lm.Name, &lm.TotalModules, &lm.CompletedModules); err != nil {
			return nil, fmt.Errorf("sqlite: scanning level breakdown: %w", err)
		}
		lm.CompletionRate = completionRate(lm.CompletedModules, lm.TotalModules)
		levels = append(levels, lm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating level breakdown: %w", err)
	}
	return levels, nil
}

// Activity returns the three recent-history lists for the activity feed.
func (db *DB) Activity(ctx context.Context, userID string, limit int) (*model.ActivityReport, error) {
	report := &model.ActivityReport{
		ModuleActivity: []model.ModuleActivity{},
		PathActivity:   []model.PathActivity{},
		DailyActivity:  []model.DailyActivity{},
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.title, l.name, lp.topic, m.updated_at, m.notes
		 FROM modules m
		 JOIN levels l ON l.id = m.level_id
		 JOIN learning_paths lp ON lp.id = l.learning_path_id
		 WHERE lp.user_id = ? AND m.is_completed = 1
		 ORDER BY m.updated_at DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading module activity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ma model.ModuleActivity
		if err := rows.Scan(&ma.ModuleTitle, &ma.LevelName, &ma.PathTopic,
			&ma.CompletedAt, &ma.Notes); err != nil {
			return nil, fmt.Errorf("sqlite: scanning module activity: %w", err)
		}
		report.ModuleActivity = append(report.ModuleActivity, ma)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating module activity: %w", err)
	}

	pathRows, err := db.conn.QueryContext(ctx,
		`SELECT lp.topic, lp.created_at,
		        COUNT(m.id) AS total_modules,
		        COALESCE(SUM(CASE WHEN m.is_completed = 1 THEN 1 ELSE 0 END), 0) AS completed_modules
		 FROM learning_paths lp
		 LEFT JOIN levels l ON l.learning_path_id = lp.id
		 LEFT JOIN modules m ON m.level_id = l.id
		 WHERE lp.user_id = ?
		 GROUP BY lp.id, lp.topic, lp.created_at
		 ORDER BY lp.created_at DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading path activity: %w", err)
	}
	defer pathRows.Close()
	for pathRows.Next() {
		var pa model.PathActivity
		if err := pathRows.Scan(&pa.Topic, &pa.CreatedAt,
			&pa.TotalModules, &pa.CompletedModules); err != nil {
			return nil, fmt.Errorf("sqlite: scanning path activity: %w", err)
		}
		report.PathActivity = append(report.PathActivity, pa)
	}
	if err := pathRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating path activity: %w", err)
	}

	// Timestamps are stored as driver-encoded time values, which SQLite's
	// DATE() cannot parse, so the per-day bucketing happens here.
	dailyRows, err := db.conn.QueryContext(ctx,
		`SELECT m.updated_at
		 FROM modules m
		 JOIN levels l ON l.id = m.level_id
		 JOIN learning_paths lp ON lp.id = l.learning_path_id
		 WHERE lp.user_id = ? AND m.is_completed = 1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading daily activity: %w", err)
	}
	defer dailyRows.Close()
	perDay := map[string]int{}
	for dailyRows.Next() {
		var completedAt time.Time
		if err := dailyRows.Scan(&completedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning daily activity: %w", err)
		}
		perDay[completedAt.UTC().Format("2006-01-02")]++
	}
	if err := dailyRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating daily activity: %w", err)
	}
	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	if len(days) > maxDailyActivityDays {
		days = days[:maxDailyActivityDays]
	}
	for _, day := range days {
		report.DailyActivity = append(report.DailyActivity, model.DailyActivity{
			Date:             day,
			ModulesCompleted: perDay[day],
		})
	}

	return report, nil
}

// maxDailyActivityDays caps the daily-activity history in the feed.
const maxDailyActivityDays = 7

// completionRate is completed/total as a percentage rounded to one decimal
// place; 0 when there are no modules.
func completionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)*1000/float64(total)) / 10
}
