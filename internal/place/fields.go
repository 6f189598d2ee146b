package place

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/paulmach/orb"

	"github.com/neexbeast/geoplaces/internal/apperr"
)

// Field length bounds.
const (
	MaxNameLen        = 255
	MaxCategoryLen    = 120
	MaxDescriptionLen = 2000
	MaxAddressLen     = 255
	MinSearchLen      = 2
	MaxTagsListed     = 200
)

// Fields are the client-writable attributes of a new place.
type Fields struct {
	Name        string
	Category    string
	Description *string
	Address     *string
	Tags        []string
	Hours       json.RawMessage
	Location    orb.Point
}

// Validate checks required attributes and coordinate ranges.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return apperr.Validation("name is required")
	}
	if strings.TrimSpace(f.Category) == "" {
		return apperr.Validation("category is required")
	}
	if err := checkLen("name", f.Name, MaxNameLen); err != nil {
		return err
	}
	if err := checkLen("category", f.Category, MaxCategoryLen); err != nil {
		return err
	}
	if err := checkOptionalLen("description", f.Description, MaxDescriptionLen); err != nil {
		return err
	}
	if err := checkOptionalLen("address", f.Address, MaxAddressLen); err != nil {
		return err
	}
	if err := ValidateHours(f.Hours); err != nil {
		return err
	}
	return ValidatePoint(f.Location)
}

// Update is a partial update. Nil fields are left unchanged.
// Lat and Lon must be supplied together.
type Update struct {
	Name        *string
	Category    *string
	Description *string
	Address     *string
	Tags        *[]string
	Hours       json.RawMessage
	Lat         *float64
	Lon         *float64
}

// HasHours reports whether the update carries a non-null hours document.
func (u Update) HasHours() bool {
	return len(u.Hours) > 0 && string(u.Hours) != "null"
}

// Location returns the new point when both coordinates are set.
func (u Update) Location() (orb.Point, bool) {
	if u.Lat == nil || u.Lon == nil {
		return orb.Point{}, false
	}
	return orb.Point{*u.Lon, *u.Lat}, true
}

// Validate rejects empty updates and half-specified coordinates.
func (u Update) Validate() error {
	if (u.Lat == nil) != (u.Lon == nil) {
		return apperr.Validation("lat and lon must be provided together")
	}

	n := 0
	for _, set := range []bool{
		u.Name != nil, u.Category != nil, u.Description != nil, u.Address != nil,
		u.Tags != nil, u.HasHours(), u.Lat != nil,
	} {
		if set {
			n++
		}
	}
	if n == 0 {
		return apperr.Validation("no fields to update")
	}

	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return apperr.Validation("name must not be empty")
		}
		if err := checkLen("name", *u.Name, MaxNameLen); err != nil {
			return err
		}
	}
	if u.Category != nil {
		if strings.TrimSpace(*u.Category) == "" {
			return apperr.Validation("category must not be empty")
		}
		if err := checkLen("category", *u.Category, MaxCategoryLen); err != nil {
			return err
		}
	}
	if err := checkOptionalLen("description", u.Description, MaxDescriptionLen); err != nil {
		return err
	}
	if err := checkOptionalLen("address", u.Address, MaxAddressLen); err != nil {
		return err
	}
	if err := ValidateHours(u.Hours); err != nil {
		return err
	}
	if p, ok := u.Location(); ok {
		return ValidatePoint(p)
	}
	return nil
}

// ListFilter selects places for List. Zero values disable a predicate.
type ListFilter struct {
	Category  string
	Tag       string
	MinRating *float64
	Limit     int
	Offset    int
}

// ValidateHours accepts an absent document, JSON null, or a JSON object.
func ValidateHours(h json.RawMessage) error {
	if len(h) == 0 || string(h) == "null" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(h, &obj); err != nil {
		return apperr.Validation("hours must be a JSON object")
	}
	return nil
}

// ValidateSearch checks the minimum text search query length. Whitespace
// counts; the query is matched as given.
func ValidateSearch(q string) error {
	if utf8.RuneCountInString(q) < MinSearchLen {
		return apperr.Validation("q must be at least %d characters", MinSearchLen)
	}
	return nil
}

func checkLen(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return apperr.Validation("%s must be at most %d characters", field, max)
	}
	return nil
}

func checkOptionalLen(field string, v *string, max int) error {
	if v == nil {
		return nil
	}
	return checkLen(field, *v, max)
}
