package place

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/neexbeast/geoplaces/internal/apperr"
)

const (
	MaxClusters      = 30
	clusterZoomScale = 1.5
)

// ValidatePoint checks that p is a finite lon/lat pair inside WGS84 bounds.
func ValidatePoint(p orb.Point) error {
	lon, lat := p.Lon(), p.Lat()
	if !finite(lon) || lon < -180 || lon > 180 {
		return apperr.Validation("lon must be between -180 and 180")
	}
	if !finite(lat) || lat < -90 || lat > 90 {
		return apperr.Validation("lat must be between -90 and 90")
	}
	return nil
}

// ParseBBox parses "lon1,lat1,lon2,lat2". The corners may be given in any order.
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, apperr.Validation("invalid bbox format, expected lon1,lat1,lon2,lat2")
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !finite(f) {
			return orb.Bound{}, apperr.Validation("invalid bbox format, expected lon1,lat1,lon2,lat2")
		}
		v[i] = f
	}

	return orb.MultiPoint{{v[0], v[1]}, {v[2], v[3]}}.Bound(), nil
}

// ParsePolygon decodes a GeoJSON Polygon or MultiPolygon geometry and returns
// it re-encoded for the database.
func ParsePolygon(raw []byte) ([]byte, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, apperr.Validation("geojson must be a valid GeoJSON geometry")
	}

	switch geom := g.Geometry().(type) {
	case orb.Polygon:
		if err := checkPolygon(geom); err != nil {
			return nil, err
		}
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return nil, apperr.Validation("multipolygon must contain at least one polygon")
		}
		for _, poly := range geom {
			if err := checkPolygon(poly); err != nil {
				return nil, err
			}
		}
	default:
		return nil, apperr.Validation("geojson must be a Polygon or MultiPolygon, got %s", g.Type)
	}

	return g.MarshalJSON()
}

func checkPolygon(poly orb.Polygon) error {
	if len(poly) == 0 {
		return apperr.Validation("polygon must have an exterior ring")
	}
	for _, ring := range poly {
		if len(ring) < 4 || !ring.Closed() {
			return apperr.Validation("polygon rings must be closed and have at least 4 positions")
		}
		for _, p := range ring {
			if err := ValidatePoint(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClusterCount maps a map zoom level to the number of k-means clusters.
func ClusterCount(zoom int) int {
	k := int(math.Round(float64(zoom) * clusterZoomScale))
	return max(1, min(MaxClusters, k))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
