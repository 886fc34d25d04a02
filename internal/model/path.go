package model

import "time"

// LearningPath is a user's curriculum for one topic: an ordered sequence of
// difficulty levels, each holding ordered modules and projects.
//
// Levels is populated by the repository when the full path is loaded
// (GetByID); list queries leave it nil and return PathSummary instead.
type LearningPath struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
	Levels    []Level   `json:"levels,omitempty"`
}

// Level is one difficulty tier within a path — "Beginner", "Intermediate",
// "Advanced" by convention, but the name is free text. OrderIndex defines
// display order and is assigned positionally at insert time.
type Level struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OrderIndex int       `json:"orderIndex"`
	Modules    []Module  `json:"modules"`
	Projects   []Project `json:"projects"`
}

// Module is a single learning unit and the unit of completion tracking.
// It is the only entity with user-mutable state after creation: IsCompleted
// and Notes change through the toggle/notes endpoints.
type Module struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	YoutubeURL  string    `json:"youtubeUrl,omitempty"`
	GithubURL   string    `json:"githubUrl,omitempty"`
	IsCompleted bool      `json:"isCompleted"`
	Notes       string    `json:"notes"`
	OrderIndex  int       `json:"orderIndex"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Project is a hands-on exercise within a level. Read-mostly: no completion
// or notes state.
type Project struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	GithubURL   string `json:"githubUrl"`
	OrderIndex  int    `json:"orderIndex"`
}

// PathSummary is the list-view shape of a path: the path row plus aggregate
// counts computed with a left join, so a path with zero modules still shows
// up with zeroes.
type PathSummary struct {
	ID                   string    `json:"id"`
	Topic                string    `json:"topic"`
	CreatedAt            time.Time `json:"createdAt"`
	LevelCount           int       `json:"levelCount"`
	ModuleCount          int       `json:"moduleCount"`
	CompletedModuleCount int       `json:"completedModuleCount"`
}

// NewLevel is the inbound shape for creating or replacing a path's levels.
// IDs and order indices are assigned by the repository, never by the caller.
type NewLevel struct {
	Name     string       `json:"name"`
	Modules  []NewModule  `json:"modules"`
	Projects []NewProject `json:"projects"`
}

// NewModule carries optional completion state so that a caller replacing a
// path can round-trip IsCompleted/Notes from the previous version. Anything
// not resubmitted is reset — replacement is destructive by contract.
type NewModule struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	YoutubeURL  string `json:"youtubeUrl"`
	GithubURL   string `json:"githubUrl"`
	IsCompleted bool   `json:"isCompleted"`
	Notes       string `json:"notes"`
}

// NewProject is the inbound shape for a project.
type NewProject struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	GithubURL   string `json:"githubUrl"`
}
