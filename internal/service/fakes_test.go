package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/rs/xid"
	"github.com/sakif/learnpath/internal/apperror"
	"github.com/sakif/learnpath/internal/model"
)

// Hand-written fakes. Each embeds simple maps plus error hooks so a test
// can force any repository call to fail.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct {
	byID        map[string]*model.User
	createErr   error
	getEmailErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*model.User{}}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.byID {
		if u.Email == user.Email {
			return apperror.Conflict("a user with this email already exists")
		}
	}
	user.ID = xid.New().String()
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getEmailErr != nil {
		return nil, f.getEmailErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) GetUserByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	for _, u := range f.byID {
		if u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", googleID)
}

type fakePathRepo struct {
	lastCreate struct {
		userID string
		topic  string
		levels []model.NewLevel
	}
	createID   string
	createErr  error
	replaceErr error
	deleteErr  error
	toggleErr  error
	notesErr   error

	toggleCalls int
	notesCalls  int
}

func (f *fakePathRepo) List(context.Context, string) ([]model.PathSummary, error) {
	return []model.PathSummary{}, nil
}

func (f *fakePathRepo) GetByID(_ context.Context, _, pathID string) (*model.LearningPath, error) {
	return nil, apperror.NotFound("learning path", pathID)
}

func (f *fakePathRepo) Create(_ context.Context, userID, topic string, levels []model.NewLevel) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.lastCreate.userID = userID
	f.lastCreate.topic = topic
	f.lastCreate.levels = levels
	if f.createID == "" {
		f.createID = xid.New().String()
	}
	return f.createID, nil
}

func (f *fakePathRepo) Replace(_ context.Context, _, _, _ string, _ []model.NewLevel) error {
	return f.replaceErr
}

func (f *fakePathRepo) Delete(_ context.Context, _, _ string) error {
	return f.deleteErr
}

func (f *fakePathRepo) SetModuleCompletion(_ context.Context, _, _, _ string, _ bool) error {
	f.toggleCalls++
	return f.toggleErr
}

func (f *fakePathRepo) SetModuleNotes(_ context.Context, _, _, _, _ string) error {
	f.notesCalls++
	return f.notesErr
}

type fakeMetricsRepo struct {
	stored *model.UserMetrics

	initErr   error
	getErr    error
	recalcErr error

	initCalls   int
	recalcCalls int

	activity *model.RecentActivity
	progress *model.ProgressByLevel

	activityErr error
	progressErr error

	lastActivityLimit int
}

func (f *fakeMetricsRepo) InitUser(_ context.Context, userID string) error {
	f.initCalls++
	if f.initErr != nil {
		return f.initErr
	}
	f.stored = &model.UserMetrics{UserID: userID}
	return nil
}

func (f *fakeMetricsRepo) Get(_ context.Context, userID string) (*model.UserMetrics, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.stored == nil {
		return nil, apperror.NotFound("user metrics", userID)
	}
	return f.stored, nil
}

func (f *fakeMetricsRepo) Recalculate(_ context.Context, userID string) (*model.UserMetrics, error) {
	f.recalcCalls++
	if f.recalcErr != nil {
		return nil, f.recalcErr
	}
	f.stored = &model.UserMetrics{UserID: userID}
	return f.stored, nil
}

func (f *fakeMetricsRepo) RecentActivity(context.Context, string) (*model.RecentActivity, error) {
	if f.activityErr != nil {
		return nil, f.activityErr
	}
	if f.activity == nil {
		return &model.RecentActivity{}, nil
	}
	return f.activity, nil
}

func (f *fakeMetricsRepo) ProgressByLevel(context.Context, string) (*model.ProgressByLevel, error) {
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	if f.progress == nil {
		return &model.ProgressByLevel{}, nil
	}
	return f.progress, nil
}

func (f *fakeMetricsRepo) PathMetrics(context.Context, string) ([]model.PathMetrics, error) {
	return []model.PathMetrics{}, nil
}

func (f *fakeMetricsRepo) Activity(_ context.Context, _ string, limit int) (*model.ActivityReport, error) {
	f.lastActivityLimit = limit
	return &model.ActivityReport{}, nil
}

// validLevels returns the minimal curriculum that passes validation.
func validLevels(t *testing.T) []model.NewLevel {
	t.Helper()
	return []model.NewLevel{
		{Name: "Beginner", Modules: []model.NewModule{{Title: "Intro"}}},
	}
}
