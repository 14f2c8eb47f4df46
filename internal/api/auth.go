package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/Fermain/night-owls-go-sub006/internal/auth"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

type ctxKey string

const callerKey ctxKey = "caller"

// Caller is the authenticated identity attached to the request context.
type Caller struct {
	UserID int64
	Phone  string
	Role   string
}

func callerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}

// authenticate requires a valid bearer token and stores the caller in the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}

		claims, err := s.auth.Tokens().Verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": auth.ErrTokenInvalid.Error()})
			return
		}

		caller := Caller{UserID: claims.UserID, Phone: claims.Phone, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
	})
}

// requireAdmin guards the admin surface. It runs after authenticate.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFromContext(r.Context())
		if !ok || caller.Role != store.RoleAdmin {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
