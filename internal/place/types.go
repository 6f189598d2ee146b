package place

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Place is a stored point of interest as returned to clients.
type Place struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Description *string           `json:"description"`
	Address     *string           `json:"address"`
	Tags        []string          `json:"tags"`
	AvgRating   *float64          `json:"avg_rating"`
	Hours       json.RawMessage   `json:"hours"`
	Moderated   bool              `json:"is_moderated"`
	Geometry    *geojson.Geometry `json:"geometry"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NearbyPlace is a Place with its geodesic distance from the query point.
type NearbyPlace struct {
	Place
	DistanceM float64 `json:"distance_m"`
}

// Distance is the geodesic distance between a place and an arbitrary point.
type Distance struct {
	ID        int64   `json:"id"`
	DistanceM float64 `json:"distance_m"`
}

// CategoryStat aggregates places of one category.
type CategoryStat struct {
	Category  string   `json:"category"`
	Count     int64    `json:"count"`
	AvgRating *float64 `json:"avg_rating"`
}

// Cluster is one k-means group of places.
type Cluster struct {
	ID       int               `json:"cluster_id"`
	Count    int64             `json:"count"`
	Geometry *geojson.Geometry `json:"geometry"`
}

// RatingResult is the aggregate after a review was recorded.
type RatingResult struct {
	PlaceID   int64   `json:"place_id"`
	AvgRating float64 `json:"avg_rating"`
}
