package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// okHandler records whether the wrapped handler ran and what userID it saw.
func okHandler(t *testing.T, gotUserID *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Error("UserIDFromContext() not set inside protected handler")
		}
		*gotUserID = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_NoCredential(t *testing.T) {
	ts := newTestTokenService(t)

	var userID string
	h := RequireAuth(ts)(okHandler(t, &userID))

	req := httptest.NewRequest(http.MethodGet, "/api/learning-paths", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	// Missing credential is 401, not 403 — the client should prompt for login.
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if userID != "" {
		t.Error("handler ran despite missing credential")
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	ts := newTestTokenService(t)

	var userID string
	h := RequireAuth(ts)(okHandler(t, &userID))

	req := httptest.NewRequest(http.MethodGet, "/api/learning-paths", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	// Present-but-invalid credential is 403 — the session is stale or forged.
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	var userID string
	h := RequireAuth(ts)(okHandler(t, &userID))

	req := httptest.NewRequest(http.MethodGet, "/api/learning-paths", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-42")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var userID string
	h := RequireAuth(ts)(okHandler(t, &userID))

	req := httptest.NewRequest(http.MethodGet, "/api/learning-paths", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if userID != "user-42" {
		t.Errorf("userID = %q, want %q", userID, "user-42")
	}
}

func TestRequireAuth_Cookie(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-7")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var userID string
	h := RequireAuth(ts)(okHandler(t, &userID))

	req := httptest.NewRequest(http.MethodGet, "/api/user-metrics", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if userID != "user-7" {
		t.Errorf("userID = %q, want %q", userID, "user-7")
	}
}
