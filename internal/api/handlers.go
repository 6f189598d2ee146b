package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/validation"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = apperr.Validation("request body is required")

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	places  PlaceRepo
	reviews ReviewRepo
	routes  RouteRepo
	auth    Authenticator
	log     *slog.Logger
	now     func() time.Time
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(places PlaceRepo, reviews ReviewRepo, routes RouteRepo, authn Authenticator, log *slog.Logger) *Handlers {
	return &Handlers{
		places:  places,
		reviews: reviews,
		routes:  routes,
		auth:    authn,
		log:     log,
		now:     time.Now,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code  apperr.Kind `json:"code"`
	Error string      `json:"error"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:      http.StatusBadRequest,
	apperr.KindUnauthenticated: http.StatusUnauthorized,
	apperr.KindForbidden:       http.StatusForbidden,
	apperr.KindNotFound:        http.StatusNotFound,
	apperr.KindConflict:        http.StatusConflict,
	apperr.KindStorage:         http.StatusUnprocessableEntity,
	apperr.KindRateLimited:     http.StatusTooManyRequests,
	apperr.KindInternal:        http.StatusInternalServerError,
}

// writeError maps err to its status code and error body. Only internal and
// storage failures are logged; the rest are client errors.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	switch kind {
	case apperr.KindInternal, apperr.KindStorage:
		log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
	case apperr.KindUnauthenticated:
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	writeJSON(w, status, errorBody{Code: kind, Error: apperr.MessageOf(err)})
}

// decodeJSON decodes the request body into v and runs struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("request body must be at most %d bytes", tooLarge.Limit)
		}
		return apperr.Wrap(apperr.KindValidation, "invalid JSON body", err)
	}
	return validation.Struct(v)
}

// HealthHandlerFunc returns an http.HandlerFunc that pings the database and,
// when configured, Redis. A nil redis pinger is reported as "disabled".
func HealthHandlerFunc(db Pinger, redis Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "ok"
		redisStatus := "disabled"
		if redis != nil {
			redisStatus = "ok"
		}

		// Failures are reported per backend; neither ping aborts the other.
		var g errgroup.Group
		g.Go(func() error {
			if err := db.Ping(ctx); err != nil {
				log.Error("health check: db ping failed", "err", err)
				dbStatus = "error"
			}
			return nil
		})
		if redis != nil {
			g.Go(func() error {
				if err := redis.Ping(ctx); err != nil {
					log.Error("health check: redis ping failed", "err", err)
					redisStatus = "error"
				}
				return nil
			})
		}
		_ = g.Wait()

		status, overall := http.StatusOK, "ok"
		if dbStatus == "error" || redisStatus == "error" {
			status, overall = http.StatusServiceUnavailable, "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
