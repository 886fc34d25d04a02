package model

import "time"

// UserMetrics is the denormalized per-user progress rollup. Every field is
// derived from the learning_paths/levels/modules tables; the stored row is a
// cache of that computation, refreshed after every mutation. A path counts as
// completed iff it has at least one module and all of them are completed.
type UserMetrics struct {
	UserID                string    `json:"-"`
	TotalPaths            int       `json:"totalPaths"`
	CompletedPaths        int       `json:"completedPaths"`
	TotalModules          int       `json:"totalModules"`
	CompletedModules      int       `json:"completedModules"`
	AverageCompletionRate int       `json:"averageCompletionRate"` // 0–100
	LastUpdated           time.Time `json:"lastUpdated"`
}

// RecentActivity summarizes the user's latest actions for the metrics view.
// CompletedModuleCount is the all-time number of completed modules — the
// original product labelled this "streak days", which it never was.
type RecentActivity struct {
	LastCompletedModule  string `json:"lastCompletedModule,omitempty"` // "Title (topic)"
	LastCreatedPath      string `json:"lastCreatedPath,omitempty"`
	CompletedModuleCount int    `json:"completedModuleCount"`
}

// LevelProgress is one bucket of ProgressByLevel.
type LevelProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// ProgressByLevel buckets every level of every path into the three
// conventional tiers by substring match on the level name. Unrecognized
// names fall into Beginner.
type ProgressByLevel struct {
	Beginner     LevelProgress `json:"beginner"`
	Intermediate LevelProgress `json:"intermediate"`
	Advanced     LevelProgress `json:"advanced"`
}

// PathMetrics is the per-path completion report: aggregate counts, a
// one-decimal completion rate, and a level-by-level breakdown.
type PathMetrics struct {
	ID               string         `json:"id"`
	Topic            string         `json:"topic"`
	CreatedAt        time.Time      `json:"createdAt"`
	TotalLevels      int            `json:"totalLevels"`
	TotalModules     int            `json:"totalModules"`
	CompletedModules int            `json:"completedModules"`
	CompletionRate   float64        `json:"completionRate"`
	IsCompleted      bool           `json:"isCompleted"`
	Levels           []LevelMetrics `json:"levels"`
}

// LevelMetrics is one row of a path's level breakdown.
type LevelMetrics struct {
	Name             string  `json:"name"`
	TotalModules     int     `json:"totalModules"`
	CompletedModules int     `json:"completedModules"`
	CompletionRate   float64 `json:"completionRate"`
}

// ModuleActivity is one row of the recent-completion history.
type ModuleActivity struct {
	ModuleTitle string    `json:"moduleTitle"`
	LevelName   string    `json:"levelName"`
	PathTopic   string    `json:"pathTopic"`
	CompletedAt time.Time `json:"completedAt"`
	Notes       string    `json:"notes,omitempty"`
}

// PathActivity is one row of the recent-path history.
type PathActivity struct {
	Topic            string    `json:"topic"`
	CreatedAt        time.Time `json:"createdAt"`
	TotalModules     int       `json:"totalModules"`
	CompletedModules int       `json:"completedModules"`
}

// DailyActivity is the per-day completion count in the activity feed.
type DailyActivity struct {
	Date             string `json:"date"` // YYYY-MM-DD
	ModulesCompleted int    `json:"modulesCompleted"`
}

// ActivityReport bundles the three activity lists returned by the
// activity endpoint.
type ActivityReport struct {
	ModuleActivity []ModuleActivity `json:"moduleActivity"`
	PathActivity   []PathActivity   `json:"pathActivity"`
	DailyActivity  []DailyActivity  `json:"dailyActivity"`
}
