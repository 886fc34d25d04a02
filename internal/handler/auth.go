package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"
	"github.com/sakif/learnpath/internal/auth"
	"github.com/sakif/learnpath/internal/service"
)

// AuthHandler owns the account endpoints: register, login, logout, me, and
// the optional Google sign-in flow. The google provider is nil when OAuth
// credentials are not configured; the server then simply never mounts the
// /google routes.
type AuthHandler struct {
	auths  *service.AuthService
	google *auth.GoogleProvider
	logger *slog.Logger
}

func NewAuthHandler(auths *service.AuthService, google *auth.GoogleProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auths: auths, google: google, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates an account and logs it in.
//
// HTTP: POST /api/auth/register
//
// The token is returned both in the body (for API clients) and as an
// HttpOnly cookie (for the dashboard).
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auths.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user registered", slog.String("userID", result.User.ID))

	setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, result)
}

// HandleLogin authenticates with email and password.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auths.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusOK, result)
}

// HandleLogout clears the token cookie. Stateless JWTs cannot be revoked
// server-side; the token stays valid until expiry but the browser no
// longer has it.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/auth/me (auth required)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, kept as a guard.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.auths.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGoogleLogin starts the Google authorization-code flow. A random
// state value in a short-lived HttpOnly cookie ties the callback to this
// browser (CSRF protection).
//
// HTTP: GET /api/auth/google/login
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback finishes the OAuth flow: verify state, exchange the
// code, upsert the account, issue the same JWT cookie as password login,
// and land on the dashboard.
//
// HTTP: GET /api/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch or missing")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// State is single-use.
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	gUser, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	result, err := h.auths.LoginWithGoogle(r.Context(), gUser)
	if err != nil {
		h.logger.Error("google callback: sign-in failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	setTokenCookie(w, result.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// setTokenCookie stores the JWT as an HttpOnly SameSite=Lax cookie with the
// same lifetime as the token itself. Secure should be set behind HTTPS.
func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
