package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/learnpath/internal/auth"
	"github.com/sakif/learnpath/internal/generator"
	"github.com/sakif/learnpath/internal/handler"
	"github.com/sakif/learnpath/internal/model"
	"github.com/sakif/learnpath/internal/repository/sqlite"
	"github.com/sakif/learnpath/internal/service"
)

// testEnv wires real services over an in-memory database behind the same
// routes the server mounts, so handler tests exercise routing, auth
// middleware, and status mapping together.
type testEnv struct {
	router *chi.Mux
	db     *sqlite.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	if err != nil {
		t.Fatalf("creating token service: %v", err)
	}
	requireAuth := auth.RequireAuth(tokens)

	authService := service.NewAuthService(db, db, tokens, auth.NewPasswordServiceForTest(4), logger)
	pathService := service.NewPathService(db, db, logger)
	metricsService := service.NewMetricsService(db, logger)

	authHandler := handler.NewAuthHandler(authService, nil, logger)
	pathHandler := handler.NewPathHandler(pathService, logger)
	metricsHandler := handler.NewMetricsHandler(metricsService, logger)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
		})
		r.Route("/learning-paths", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", pathHandler.HandleList)
			r.Post("/", pathHandler.HandleCreate)
			r.Get("/{id}", pathHandler.HandleGet)
			r.Put("/{id}", pathHandler.HandleUpdate)
			r.Delete("/{id}", pathHandler.HandleDelete)
			r.Patch("/{pathId}/modules/{moduleId}/complete", pathHandler.HandleModuleComplete)
			r.Patch("/{pathId}/modules/{moduleId}/notes", pathHandler.HandleModuleNotes)
		})
		r.Route("/user-metrics", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", metricsHandler.HandleOverview)
			r.Post("/recalculate", metricsHandler.HandleRecalculate)
			r.Get("/paths", metricsHandler.HandlePathMetrics)
			r.Get("/activity", metricsHandler.HandleActivity)
		})
	})

	return &testEnv{router: router, db: db}
}

// do sends a request through the router. token may be empty for
// unauthenticated calls.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// register creates an account through the API and returns its token.
func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "secret1",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decoding register response: %v", err)
	}
	return res.Token
}

func (e *testEnv) createPath(t *testing.T, token, topic string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/learning-paths", token, map[string]any{
		"topic": topic,
		"levels": []map[string]any{
			{
				"name": "Beginner",
				"modules": []map[string]any{
					{"title": "Intro", "description": "start"},
					{"title": "Basics"},
				},
				"projects": []map[string]any{
					{"title": "Hello", "githubUrl": "https://github.com/example/hello"},
				},
			},
			{
				"name":    "Advanced",
				"modules": []map[string]any{{"title": "Deep Dive"}},
			},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create path returned %d: %s", rr.Code, rr.Body.String())
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	return res.ID
}

func TestRegisterAndMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "me@example.com")

	rr := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var user model.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
	assert.Equal(t, "me@example.com", user.Email)
	// json:"-" fields must never leak
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestRegisterSetsCookie(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "cookie@example.com",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusCreated, rr.Code)

	cookies := rr.Result().Cookies()
	var found *http.Cookie
	for _, c := range cookies {
		if c.Name == auth.CookieName {
			found = c
		}
	}
	if assert.NotNil(t, found, "token cookie not set") {
		assert.True(t, found.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, found.SameSite)
		assert.NotEmpty(t, found.Value)
	}
}

func TestRegisterDuplicateEmailIs409(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dup@example.com")

	rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "dup@example.com",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "conflict")
}

func TestLoginWrongPasswordIs401(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "login@example.com")

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "login@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid credentials")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/learning-paths", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/learning-paths", "not-a-real-token", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestPathLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "lifecycle@example.com")
	id := env.createPath(t, token, "Go")

	// List shows the new path with aggregate counts.
	rr := env.do(t, http.MethodGet, "/api/learning-paths", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var summaries []model.PathSummary
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&summaries))
	if assert.Len(t, summaries, 1) {
		assert.Equal(t, "Go", summaries[0].Topic)
		assert.Equal(t, 2, summaries[0].LevelCount)
		assert.Equal(t, 3, summaries[0].ModuleCount)
	}

	// Get returns the nested tree.
	rr = env.do(t, http.MethodGet, "/api/learning-paths/"+id, token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var path model.LearningPath
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&path))
	assert.Len(t, path.Levels, 2)

	// Toggle a module.
	moduleID := path.Levels[0].Modules[0].ID
	rr = env.do(t, http.MethodPatch,
		fmt.Sprintf("/api/learning-paths/%s/modules/%s/complete", id, moduleID),
		token, map[string]bool{"isCompleted": true})
	assert.Equal(t, http.StatusOK, rr.Code)

	// Notes.
	rr = env.do(t, http.MethodPatch,
		fmt.Sprintf("/api/learning-paths/%s/modules/%s/notes", id, moduleID),
		token, map[string]string{"notes": "done"})
	assert.Equal(t, http.StatusOK, rr.Code)

	// Metrics reflect the toggle (1 of 3 modules → 33%).
	rr = env.do(t, http.MethodGet, "/api/user-metrics", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var overview struct {
		TotalModules          int `json:"totalModules"`
		CompletedModules      int `json:"completedModules"`
		AverageCompletionRate int `json:"averageCompletionRate"`
		RecentActivity        struct {
			LastCompletedModule string `json:"lastCompletedModule"`
		} `json:"recentActivity"`
	}
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&overview))
	assert.Equal(t, 3, overview.TotalModules)
	assert.Equal(t, 1, overview.CompletedModules)
	assert.Equal(t, 33, overview.AverageCompletionRate)
	assert.Equal(t, "Intro (Go)", overview.RecentActivity.LastCompletedModule)

	// Delete, then the path and its metrics contribution are gone.
	rr = env.do(t, http.MethodDelete, "/api/learning-paths/"+id, token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/learning-paths/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/user-metrics", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var after struct {
		TotalPaths   int `json:"totalPaths"`
		TotalModules int `json:"totalModules"`
	}
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&after))
	assert.Equal(t, 0, after.TotalPaths)
	assert.Equal(t, 0, after.TotalModules)
}

func TestPathOwnershipIs404(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.register(t, "owner@example.com")
	otherToken := env.register(t, "other@example.com")
	id := env.createPath(t, ownerToken, "Go")

	rr := env.do(t, http.MethodGet, "/api/learning-paths/"+id, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/learning-paths/"+id, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreatePathValidationIs400(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "validate@example.com")

	rr := env.do(t, http.MethodPost, "/api/learning-paths", token, map[string]any{
		"topic":  "",
		"levels": []map[string]any{{"name": "Beginner"}},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "validation_error")
}

func TestUpdatePathReplacesTree(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "update@example.com")
	id := env.createPath(t, token, "Go")

	rr := env.do(t, http.MethodPut, "/api/learning-paths/"+id, token, map[string]any{
		"topic": "Go, second edition",
		"levels": []map[string]any{
			{"name": "Beginner", "modules": []map[string]any{{"title": "Only module"}}},
		},
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/learning-paths/"+id, token, nil)
	var path model.LearningPath
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&path))
	assert.Equal(t, "Go, second edition", path.Topic)
	if assert.Len(t, path.Levels, 1) {
		assert.Len(t, path.Levels[0].Modules, 1)
	}
}

func TestRecalculateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "recalc@example.com")
	env.createPath(t, token, "Go")

	rr := env.do(t, http.MethodPost, "/api/user-metrics/recalculate", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var m model.UserMetrics
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&m))
	assert.Equal(t, 1, m.TotalPaths)
	assert.Equal(t, 3, m.TotalModules)
}

func TestPathMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "pmetrics@example.com")
	env.createPath(t, token, "Go")

	rr := env.do(t, http.MethodGet, "/api/user-metrics/paths", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var reports []model.PathMetrics
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&reports))
	if assert.Len(t, reports, 1) {
		assert.Equal(t, 2, reports[0].TotalLevels)
		assert.Len(t, reports[0].Levels, 2)
	}
}

func TestActivityEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "activity@example.com")
	env.createPath(t, token, "Go")

	rr := env.do(t, http.MethodGet, "/api/user-metrics/activity?limit=5", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var report model.ActivityReport
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&report))
	assert.Len(t, report.PathActivity, 1)
	assert.NotNil(t, report.ModuleActivity)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			assert.Empty(t, c.Value)
			assert.Negative(t, c.MaxAge)
			return
		}
	}
	t.Error("token cookie not cleared")
}

func TestGenerateEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	curriculum := `{
		"topic": "Go",
		"levels": [
			{"name": "Beginner", "modules": [{"title": "Intro"}], "projects": []},
			{"name": "Intermediate", "modules": [], "projects": []},
			{"name": "Advanced", "modules": [], "projects": []}
		]
	}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": curriculum}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer upstream.Close()

	gen, err := generator.New(generator.Config{APIKey: "k", BaseURL: upstream.URL}, logger)
	assert.NoError(t, err)
	h := handler.NewGenerateHandler(gen, logger)

	t.Run("valid topic", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/generate",
			bytes.NewBufferString(`{"topic":"Go"}`))
		rr := httptest.NewRecorder()
		h.HandleGenerate(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var draft generator.Draft
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&draft))
		assert.Equal(t, "Go", draft.Topic)
		assert.Len(t, draft.Levels, 3)
	})

	t.Run("empty topic", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/generate",
			bytes.NewBufferString(`{"topic":"  "}`))
		rr := httptest.NewRecorder()
		h.HandleGenerate(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("malformed upstream reply is 502", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := map[string]any{
				"candidates": []map[string]any{
					{"content": map[string]any{"parts": []map[string]any{{"text": "not json"}}}},
				},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer bad.Close()

		badGen, err := generator.New(generator.Config{APIKey: "k", BaseURL: bad.URL}, logger)
		assert.NoError(t, err)
		badHandler := handler.NewGenerateHandler(badGen, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/generate",
			bytes.NewBufferString(`{"topic":"Go"}`))
		rr := httptest.NewRecorder()
		badHandler.HandleGenerate(rr, req)

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Contains(t, rr.Body.String(), "generation_failed")
	})
}
