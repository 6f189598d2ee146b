package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/auth"
	"github.com/neexbeast/geoplaces/internal/metrics"
)

type ctxKey int

const userKey ctxKey = iota

// userFromContext returns the user stored by BearerAuth, or nil.
func userFromContext(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey).(*auth.User)
	return u
}

// BearerAuth returns middleware that resolves the Authorization: Bearer <token>
// header to a user and stores it in the request context.
func BearerAuth(authn Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeError(w, r, log, apperr.Unauthenticated("not authenticated"))
				return
			}

			u, err := authn.Authenticate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				writeError(w, r, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
		})
	}
}

// RequireRole rejects authenticated users without role. It must run after BearerAuth.
func RequireRole(role string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := userFromContext(r.Context())
			if u == nil {
				writeError(w, r, log, apperr.Unauthenticated("not authenticated"))
				return
			}
			if !u.HasRole(role) {
				writeError(w, r, log, apperr.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics records request count and duration labelled by chi route pattern,
// which keeps label cardinality independent of path parameters.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				pattern = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, pattern, strconv.Itoa(status), time.Since(start))
	})
}
