package api

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/neexbeast/geoplaces/internal/auth"
	"github.com/neexbeast/geoplaces/internal/place"
	"github.com/neexbeast/geoplaces/internal/route"
)

// PlaceRepo defines the place storage operations needed by handlers.
type PlaceRepo interface {
	Create(ctx context.Context, f place.Fields) (*place.Place, error)
	Get(ctx context.Context, id int64) (*place.Place, error)
	List(ctx context.Context, f place.ListFilter) ([]place.Place, error)
	Update(ctx context.Context, id int64, u place.Update) (*place.Place, error)
	Delete(ctx context.Context, id int64) error
	Nearby(ctx context.Context, pt orb.Point, limit int) ([]place.NearbyPlace, error)
	WithinRadius(ctx context.Context, pt orb.Point, radiusM float64) ([]place.NearbyPlace, error)
	WithinPolygon(ctx context.Context, polygon []byte) ([]place.Place, error)
	DistanceTo(ctx context.Context, id int64, pt orb.Point) (*place.Distance, error)
	TextSearch(ctx context.Context, q string, limit int) ([]place.Place, error)
	StatsByCategory(ctx context.Context) ([]place.CategoryStat, error)
	ListDistinctTags(ctx context.Context, search string) ([]string, error)
	ExportGeoJSON(ctx context.Context, bbox orb.Bound) (*geojson.FeatureCollection, error)
	Cluster(ctx context.Context, k int) ([]place.Cluster, error)
	RecentModerated(ctx context.Context, pt orb.Point, radiusM float64, since time.Time, limit int) ([]place.Place, error)
	SetModerated(ctx context.Context, id int64, moderated bool) (*place.Place, error)
}

// ReviewRepo records ratings and reviews and returns the refreshed mean.
type ReviewRepo interface {
	RecordRating(ctx context.Context, placeID int64, rating float64, comment *string) (*place.RatingResult, error)
	RecordReview(ctx context.Context, placeID int64, rating float64, text *string) (*place.RatingResult, error)
}

// RouteRepo defines the route storage operations needed by handlers.
type RouteRepo interface {
	Create(ctx context.Context, userID int64, name string, line orb.LineString) (*route.Route, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]route.Route, error)
}

// Authenticator is the account service used by the auth handlers and the
// bearer middleware.
type Authenticator interface {
	Signup(ctx context.Context, username, password string) (*auth.User, error)
	Login(ctx context.Context, username, password string) (*auth.User, error)
	Token(u *auth.User) (string, error)
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
