package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/place"
)

// Query parameter defaults and bounds.
const (
	defaultListLimit   = 50
	maxListLimit       = 500
	defaultNearbyLimit = 10
	maxNearbyLimit     = 100
	defaultSearchLimit = 20
	maxSearchLimit     = 200
	defaultRadiusM     = 1000.0
	maxRadiusM         = 50_000.0
	defaultZoom        = 12
	minZoom            = 1
	maxZoom            = 20

	maxOffset = math.MaxInt32

	notificationWindowDays = 7
	maxNotifications       = 100
)

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id must be a positive integer")
	}
	return id, nil
}

// intParam reads an integer query parameter in [lo, hi], falling back to def
// when it is absent.
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	if v < lo || v > hi {
		return 0, apperr.Validation("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

// floatParam reads an optional float query parameter. ok is false when absent.
func floatParam(r *http.Request, name string) (v float64, ok bool, err error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, apperr.Validation("%s must be a number", name)
	}
	return v, true, nil
}

// pointParam reads the required lat and lon query parameters.
func pointParam(r *http.Request) (orb.Point, error) {
	lat, ok, err := floatParam(r, "lat")
	if err != nil {
		return orb.Point{}, err
	}
	if !ok {
		return orb.Point{}, apperr.Validation("lat is required")
	}
	lon, ok, err := floatParam(r, "lon")
	if err != nil {
		return orb.Point{}, err
	}
	if !ok {
		return orb.Point{}, apperr.Validation("lon is required")
	}

	pt := orb.Point{lon, lat}
	if err := place.ValidatePoint(pt); err != nil {
		return orb.Point{}, err
	}
	return pt, nil
}

// radiusParam reads radius_m: default 1000, greater than 0, at most 50000.
func radiusParam(r *http.Request) (float64, error) {
	v, ok, err := floatParam(r, "radius_m")
	if err != nil {
		return 0, err
	}
	if !ok {
		return defaultRadiusM, nil
	}
	if v <= 0 || v > maxRadiusM {
		return 0, apperr.Validation("radius_m must be greater than 0 and at most %d", int(maxRadiusM))
	}
	return v, nil
}

// listFilterParams reads the GET /places filters.
func listFilterParams(r *http.Request) (place.ListFilter, error) {
	q := r.URL.Query()
	f := place.ListFilter{Category: q.Get("category"), Tag: q.Get("tag")}

	minRating, ok, err := floatParam(r, "min_rating")
	if err != nil {
		return f, err
	}
	if ok {
		if minRating < 0 || minRating > 5 {
			return f, apperr.Validation("min_rating must be between 0 and 5")
		}
		f.MinRating = &minRating
	}

	if f.Limit, err = intParam(r, "limit", defaultListLimit, 1, maxListLimit); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(r, "offset", 0, 0, maxOffset); err != nil {
		return f, err
	}
	return f, nil
}
