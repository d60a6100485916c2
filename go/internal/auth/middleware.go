package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mcdev12/racetime/go/internal/httputil"
	"github.com/mcdev12/racetime/go/internal/models"
)

type contextKey string

const judgeContextKey contextKey = "judge"

// AdminKeyHeader carries the shared key for administrative routes.
const AdminKeyHeader = "X-Admin-Key"

// RequireJudge authenticates a bearer access token and stores the active
// judge in the request context.
func (s *Service) RequireJudge(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httputil.Error(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		principal, err := s.tokens.Verify(r.Context(), token)
		if err != nil {
			httputil.Error(w, http.StatusUnauthorized, err.Error())
			return
		}

		judge, err := s.ActiveJudge(r.Context(), principal)
		if err != nil {
			if IsAuthError(err) {
				httputil.Error(w, http.StatusUnauthorized, err.Error())
				return
			}
			httputil.ServerError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithJudge(r.Context(), judge)))
	})
}

// RequireAdminKey guards administrative routes with a shared key. An empty
// key disables the routes entirely.
func RequireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				httputil.Error(w, http.StatusForbidden, "admin key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithJudge returns a context carrying the authenticated judge.
func WithJudge(ctx context.Context, judge *models.Judge) context.Context {
	return context.WithValue(ctx, judgeContextKey, judge)
}

// JudgeFrom returns the authenticated judge stored by RequireJudge.
func JudgeFrom(ctx context.Context) (*models.Judge, bool) {
	judge, ok := ctx.Value(judgeContextKey).(*models.Judge)
	return judge, ok && judge != nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
