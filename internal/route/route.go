// Package route holds the user-owned route record. Routes are stored geometry
// only; no path computation happens here.
package route

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/place"
)

const (
	MinPoints    = 2
	MaxNameLen   = 255
	DefaultLimit = 50
	MaxLimit     = 200
)

// Route is a named line owned by one user.
type Route struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	Name      string            `json:"name"`
	Geometry  *geojson.Geometry `json:"geometry"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewLine builds a LineString from [lon, lat] pairs.
func NewLine(points [][]float64) (orb.LineString, error) {
	if len(points) < MinPoints {
		return nil, apperr.Validation("route requires at least %d points", MinPoints)
	}

	line := make(orb.LineString, 0, len(points))
	for i, p := range points {
		if len(p) != 2 {
			return nil, apperr.Validation("point %d must be a [lon, lat] pair", i)
		}
		pt := orb.Point{p[0], p[1]}
		if err := place.ValidatePoint(pt); err != nil {
			return nil, apperr.Validation("point %d: %s", i, apperr.MessageOf(err))
		}
		line = append(line, pt)
	}
	return line, nil
}

// ValidateName checks the route name bounds.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return apperr.Validation("name must be at most %d characters", MaxNameLen)
	}
	return nil
}
