package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/place"
)

type createPlaceRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Category    string          `json:"category" validate:"required,max=120"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	Address     *string         `json:"address" validate:"omitempty,max=255"`
	Tags        []string        `json:"tags"`
	Hours       json.RawMessage `json:"hours"`
	Lat         *float64        `json:"lat" validate:"required,latitude"`
	Lon         *float64        `json:"lon" validate:"required,longitude"`
}

type updatePlaceRequest struct {
	Name        *string         `json:"name" validate:"omitempty,max=255"`
	Category    *string         `json:"category" validate:"omitempty,max=120"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	Address     *string         `json:"address" validate:"omitempty,max=255"`
	Tags        *[]string       `json:"tags"`
	Hours       json.RawMessage `json:"hours"`
	Lat         *float64        `json:"lat" validate:"omitempty,latitude"`
	Lon         *float64        `json:"lon" validate:"omitempty,longitude"`
}

type rateRequest struct {
	Rating  *float64 `json:"rating" validate:"required,gte=0,lte=5"`
	Comment *string  `json:"comment" validate:"omitempty,max=2000"`
}

type reviewRequest struct {
	Rating *float64 `json:"rating" validate:"required,gte=0,lte=5"`
	Text   *string  `json:"text" validate:"omitempty,max=4000"`
}

type polygonRequest struct {
	GeoJSON json.RawMessage `json:"geojson" validate:"required"`
}

type moderateRequest struct {
	Moderated *bool `json:"moderated"`
}

// CreatePlace handles POST /places.
func (h *Handlers) CreatePlace(w http.ResponseWriter, r *http.Request) {
	var req createPlaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	p, err := h.places.Create(r.Context(), place.Fields{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Address:     req.Address,
		Tags:        req.Tags,
		Hours:       []byte(req.Hours),
		Location:    orb.Point{*req.Lon, *req.Lat},
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListPlaces handles GET /places.
func (h *Handlers) ListPlaces(w http.ResponseWriter, r *http.Request) {
	f, err := listFilterParams(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ps, err := h.places.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// GetPlace handles GET /places/{id}.
func (h *Handlers) GetPlace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p, err := h.places.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePlace handles PUT /places/{id}. Only supplied fields change.
func (h *Handlers) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req updatePlaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	p, err := h.places.Update(r.Context(), id, place.Update{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Address:     req.Address,
		Tags:        req.Tags,
		Hours:       []byte(req.Hours),
		Lat:         req.Lat,
		Lon:         req.Lon,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePlace handles DELETE /places/{id}.
func (h *Handlers) DeletePlace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.places.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// NearbyPlaces handles GET /places/nearby.
func (h *Handlers) NearbyPlaces(w http.ResponseWriter, r *http.Request) {
	pt, err := pointParam(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	limit, err := intParam(r, "limit", defaultNearbyLimit, 1, maxNearbyLimit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ps, err := h.places.Nearby(r.Context(), pt, limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// PlacesWithin handles GET /places/within.
func (h *Handlers) PlacesWithin(w http.ResponseWriter, r *http.Request) {
	pt, err := pointParam(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	radius, err := radiusParam(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ps, err := h.places.WithinRadius(r.Context(), pt, radius)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// PlacesWithinPolygon handles POST /places/within-polygon.
func (h *Handlers) PlacesWithinPolygon(w http.ResponseWriter, r *http.Request) {
	var req polygonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	polygon, err := place.ParsePolygon(req.GeoJSON)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ps, err := h.places.WithinPolygon(r.Context(), polygon)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// RatePlace handles POST /places/{id}/rate.
func (h *Handlers) RatePlace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	res, err := h.reviews.RecordRating(r.Context(), id, *req.Rating, req.Comment)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReviewPlace handles POST /places/{id}/reviews.
func (h *Handlers) ReviewPlace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	res, err := h.reviews.RecordReview(r.Context(), id, *req.Rating, req.Text)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PlaceDistance handles GET /places/{id}/distance.
func (h *Handlers) PlaceDistance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	pt, err := pointParam(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	d, err := h.places.DistanceTo(r.Context(), id, pt)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// StatsByCategory handles GET /places/stats/by-category.
func (h *Handlers) StatsByCategory(w http.ResponseWriter, r *http.Request) {
	stats, err := h.places.StatsByCategory(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListTags handles GET /places/tags.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.places.ListDistinctTags(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// SearchPlaces handles GET /places/search.
func (h *Handlers) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if err := place.ValidateSearch(q); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit, 1, maxSearchLimit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ps, err := h.places.TextSearch(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// ExportGeoJSON handles GET /places/export/geojson.
func (h *Handlers) ExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("bbox")
	if raw == "" {
		writeError(w, r, h.log, apperr.Validation("bbox is required"))
		return
	}
	bbox, err := place.ParseBBox(raw)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	fc, err := h.places.ExportGeoJSON(r.Context(), bbox)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(fc)
}

// ClusteredPlaces handles GET /places/clustered.
func (h *Handlers) ClusteredPlaces(w http.ResponseWriter, r *http.Request) {
	zoom, err := intParam(r, "zoom", defaultZoom, minZoom, maxZoom)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	cs, err := h.places.Cluster(r.Context(), place.ClusterCount(zoom))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// Notifications handles GET /places/notifications: moderated places created
// in the last week near the given point.
func (h *Handlers) Notifications(w http.ResponseWriter, r *http.Request) {
	pt, err := pointParam(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	radius, err := radiusParam(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	since := h.now().Add(-notificationWindowDays * 24 * time.Hour)
	ps, err := h.places.RecentModerated(r.Context(), pt, radius, since, maxNotifications)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// ModeratePlace handles POST /places/{id}/moderate. An empty body marks the
// place moderated.
func (h *Handlers) ModeratePlace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var req moderateRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, h.log, err)
		return
	}
	moderated := true
	if req.Moderated != nil {
		moderated = *req.Moderated
	}

	p, err := h.places.SetModerated(r.Context(), id, moderated)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.log.Info("place moderation changed", "place_id", id, "moderated", moderated, "by", userFromContext(r.Context()).Username)
	writeJSON(w, http.StatusOK, p)
}
