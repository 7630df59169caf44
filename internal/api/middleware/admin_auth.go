package middleware

import (
	"context"
	"net/http"

	"github.com/openatelier/server/internal/api/problem"
	"github.com/openatelier/server/internal/auth"
)

const adminSubjectKey contextKey = "admin_subject"

// AdminAuth guards admin endpoints with a bearer JWT carrying role=admin.
func AdminAuth(jwtManager *auth.JWTManager, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", err, env)
				return
			}

			claims, err := jwtManager.Validate(token)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", err, env)
				return
			}
			if claims.Role != "admin" {
				problem.Write(w, r, http.StatusForbidden, "about:blank", "Forbidden", auth.ErrInvalidToken, env)
				return
			}

			ctx := context.WithValue(r.Context(), adminSubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminSubject returns the authenticated admin's subject, if any.
func AdminSubject(ctx context.Context) string {
	if subject, ok := ctx.Value(adminSubjectKey).(string); ok {
		return subject
	}
	return ""
}
