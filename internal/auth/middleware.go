package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
// Using a package-private type (instead of a plain string) means no other
// package can read or shadow the userID value we store in the context.
type contextKey string

const userIDKey contextKey = "userID"

// CookieName is the HttpOnly cookie carrying the session JWT.
const CookieName = "token"

// RequireAuth enforces authentication on protected routes.
//
// The credential may arrive two ways:
//   - Authorization: Bearer <jwt>   (API clients)
//   - Cookie: token=<jwt>           (the browser UI; HttpOnly, so page
//     scripts can never read it — XSS cannot steal the session)
//
// A request with no credential at all gets 401; a credential that is
// present but invalid or expired gets 403. The distinction tells a client
// whether to prompt for login or to discard a stale session.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := extractToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			userID, err := tokens.Validate(raw)
			if err != nil {
				writeAuthError(w, http.StatusForbidden, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID set by
// RequireAuth. Returns ("", false) if the request never passed the
// middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractToken reads the JWT from the Authorization header, falling back to
// the session cookie.
func extractToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		raw, found := strings.CutPrefix(header, "Bearer ")
		if found && raw != "" {
			return raw, true
		}
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// writeAuthError writes the middleware's own error response. It mirrors the
// handler package's error shape but avoids importing it (the handlers
// import this package for UserIDFromContext).
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	errType := "unauthorized"
	if status == http.StatusForbidden {
		errType = "forbidden"
	}
	w.Write([]byte(`{"error":"` + errType + `","message":"` + message + `"}`))
}
