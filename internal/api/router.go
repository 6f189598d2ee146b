package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neexbeast/geoplaces/internal/auth"
)

// RouterOptions carries the cross-cutting settings of the router.
type RouterOptions struct {
	CORSOrigins     []string
	RateLimitPerIP  int
	RateLimitWindow time.Duration
	DB              Pinger
	Redis           Pinger // nil when login throttling is disabled
	Log             *slog.Logger
}

// NewRouter builds and returns the Chi router with all routes configured.
// Place endpoints are public; routes and the current-user endpoints require a
// bearer token, and moderation additionally requires the admin role.
// Fixed /places/... paths are registered before /places/{id}.
func NewRouter(h *Handlers, authn Authenticator, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.RateLimitPerIP > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimitPerIP, opts.RateLimitWindow))
	}

	r.Get("/health", HealthHandlerFunc(opts.DB, opts.Redis, opts.Log))
	r.Handle("/metrics", promhttp.Handler())

	bearer := BearerAuth(authn, opts.Log)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.With(bearer).Get("/me", h.Me)
	})
	r.With(bearer).Get("/users/me", h.Me)

	r.Route("/places", func(r chi.Router) {
		r.Post("/", h.CreatePlace)
		r.Get("/", h.ListPlaces)
		r.Get("/nearby", h.NearbyPlaces)
		r.Get("/within", h.PlacesWithin)
		r.Post("/within-polygon", h.PlacesWithinPolygon)
		r.Get("/stats/by-category", h.StatsByCategory)
		r.Get("/tags", h.ListTags)
		r.Get("/search", h.SearchPlaces)
		r.Get("/export/geojson", h.ExportGeoJSON)
		r.Get("/clustered", h.ClusteredPlaces)
		r.Get("/notifications", h.Notifications)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPlace)
			r.Put("/", h.UpdatePlace)
			r.Delete("/", h.DeletePlace)
			r.Post("/rate", h.RatePlace)
			r.Post("/reviews", h.ReviewPlace)
			r.Get("/distance", h.PlaceDistance)
			r.With(bearer, RequireRole(auth.RoleAdmin, opts.Log)).Post("/moderate", h.ModeratePlace)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(bearer)
		r.Post("/routes", h.CreateRoute)
		r.Get("/routes", h.ListRoutes)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
