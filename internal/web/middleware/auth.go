package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	tokenContextKey   contextKey = "enroll_token"
)

// RequireAuth is middleware that requires a valid session
func RequireAuth(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sm.GetSessionFromRequest(r)
			if session == nil {
				unauthorized(w)
				return
			}

			// Add session to context
			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthOrToken accepts either a valid session or the administrative bearer
// token. An empty token disables the token path.
func RequireAuthOrToken(sm *SessionManager, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session := sm.GetSessionFromRequest(r); session != nil {
				ctx := context.WithValue(r.Context(), sessionContextKey, session)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token != "" && ok && subtle.ConstantTimeCompare([]byte(bearer), []byte(token)) == 1 {
				ctx := context.WithValue(r.Context(), tokenContextKey, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			unauthorized(w)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *Session {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return session
}

// IsTokenAuthenticated reports whether the request was admitted by the administrative token.
func IsTokenAuthenticated(ctx context.Context) bool {
	ok, _ := ctx.Value(tokenContextKey).(bool)
	return ok
}

// SetSessionInContext adds a session to the context.
// This is primarily for testing - use RequireAuth middleware in production.
func SetSessionInContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
