package place_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/place"
)

func ptr[T any](v T) *T { return &v }

// ---- Fields ----

func TestFields_Validate_OK(t *testing.T) {
	f := place.Fields{
		Name:     "Cafe A",
		Category: "cafe",
		Hours:    json.RawMessage(`{"mon":"9-17"}`),
		Location: orb.Point{-73.0, 40.0},
	}
	require.NoError(t, f.Validate())
}

func TestFields_Validate_MissingName(t *testing.T) {
	f := place.Fields{Category: "cafe", Location: orb.Point{0, 0}}
	err := f.Validate()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestFields_Validate_LongDescription(t *testing.T) {
	f := place.Fields{
		Name:        "Cafe A",
		Category:    "cafe",
		Description: ptr(strings.Repeat("x", place.MaxDescriptionLen+1)),
	}
	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description")
}

func TestFields_Validate_OutOfRange(t *testing.T) {
	f := place.Fields{Name: "A", Category: "b", Location: orb.Point{-73.0, 91}}
	require.Error(t, f.Validate())
}

func TestFields_Validate_HoursNotObject(t *testing.T) {
	f := place.Fields{Name: "A", Category: "b", Hours: json.RawMessage(`[1,2]`)}
	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hours")
}

// ---- Update ----

func TestUpdate_Validate_Empty(t *testing.T) {
	err := place.Update{}.Validate()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdate_Validate_NullHoursIsEmpty(t *testing.T) {
	err := place.Update{Hours: json.RawMessage("null")}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fields")
}

func TestUpdate_Validate_LatWithoutLon(t *testing.T) {
	err := place.Update{Lat: ptr(40.0)}.Validate()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUpdate_Validate_LonWithoutLat(t *testing.T) {
	err := place.Update{Name: ptr("x"), Lon: ptr(-73.0)}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "together")
}

func TestUpdate_Validate_BothCoordinates(t *testing.T) {
	u := place.Update{Lat: ptr(40.0), Lon: ptr(-73.0)}
	require.NoError(t, u.Validate())
	p, ok := u.Location()
	require.True(t, ok)
	assert.Equal(t, orb.Point{-73.0, 40.0}, p)
}

func TestUpdate_Validate_BlankName(t *testing.T) {
	require.Error(t, place.Update{Name: ptr("  ")}.Validate())
}

// ---- Search ----

func TestValidateSearch(t *testing.T) {
	require.Error(t, place.ValidateSearch("a"))
	require.Error(t, place.ValidateSearch(""))
	require.NoError(t, place.ValidateSearch(" a"))
	require.NoError(t, place.ValidateSearch("ca"))
	require.NoError(t, place.ValidateSearch("кф"))
}

// ---- BBox ----

func TestParseBBox_OK(t *testing.T) {
	b, err := place.ParseBBox("-74.1,40.9,-73.9,40.5")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-74.1, 40.5}, b.Min)
	assert.Equal(t, orb.Point{-73.9, 40.9}, b.Max)
}

func TestParseBBox_Malformed(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "1,2,3,4,5", "a,b,c,d", "1,2,NaN,4"} {
		_, err := place.ParseBBox(s)
		require.Error(t, err, s)
		assert.True(t, apperr.Is(err, apperr.KindValidation), s)
	}
}

// ---- Polygon ----

func TestParsePolygon_Polygon(t *testing.T) {
	raw := []byte(`{"type":"Polygon","coordinates":[[[-74,40],[-73,40],[-73,41],[-74,41],[-74,40]]]}`)
	out, err := place.ParsePolygon(raw)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"Polygon"`)
}

func TestParsePolygon_MultiPolygon(t *testing.T) {
	raw := []byte(`{"type":"MultiPolygon","coordinates":[[[[-74,40],[-73,40],[-73,41],[-74,40]]]]}`)
	_, err := place.ParsePolygon(raw)
	require.NoError(t, err)
}

func TestParsePolygon_WrongType(t *testing.T) {
	_, err := place.ParsePolygon([]byte(`{"type":"Point","coordinates":[-73,40]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Polygon or MultiPolygon")
}

func TestParsePolygon_OpenRing(t *testing.T) {
	_, err := place.ParsePolygon([]byte(`{"type":"Polygon","coordinates":[[[-74,40],[-73,40],[-73,41],[-74,41]]]}`))
	require.Error(t, err)
}

func TestParsePolygon_Garbage(t *testing.T) {
	_, err := place.ParsePolygon([]byte(`not-json`))
	require.Error(t, err)
}

// ---- Clusters ----

func TestClusterCount(t *testing.T) {
	assert.Equal(t, 2, place.ClusterCount(1))
	assert.Equal(t, 3, place.ClusterCount(2))
	assert.Equal(t, 5, place.ClusterCount(3))
	assert.Equal(t, 18, place.ClusterCount(12))
	assert.Equal(t, 30, place.ClusterCount(20))
	assert.Equal(t, 1, place.ClusterCount(0))
}
