package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/place"
)

// placeColumns is the fixed projection every place query scans with scanPlace.
const placeColumns = `id, name, category, description, address, tags, avg_rating, hours,
	is_moderated, ST_AsGeoJSON(geom) AS geometry, created_at`

// geogPoint builds a geography point from two placeholders (lon, lat).
func geogPoint(lon, lat string) string {
	return "ST_SetSRID(ST_MakePoint(" + lon + ", " + lat + "), 4326)::geography"
}

const msgPlaceNotFound = "place not found"

// PlaceRepository issues the place queries. Spatial predicates and distances
// are computed by PostGIS; distances are geodesic metres on the WGS84 spheroid.
type PlaceRepository struct {
	q Querier
}

// NewPlaceRepository constructs a PlaceRepository. *pgxpool.Pool satisfies Querier.
func NewPlaceRepository(q Querier) *PlaceRepository {
	return &PlaceRepository{q: q}
}

// Create inserts a place and returns it with id and created_at assigned.
func (r *PlaceRepository) Create(ctx context.Context, f place.Fields) (p *place.Place, err error) {
	defer observe("place_create", time.Now(), &err)

	if err := f.Validate(); err != nil {
		return nil, err
	}
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}

	q := `
		INSERT INTO places (name, category, description, address, tags, hours, geom)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, ST_SetSRID(ST_MakePoint($7, $8), 4326))
		RETURNING ` + placeColumns

	row := r.q.QueryRow(ctx, q,
		f.Name, f.Category, f.Description, f.Address, tags, hoursArg(f.Hours),
		f.Location.Lon(), f.Location.Lat(),
	)
	p, err = scanPlace(row)
	if err != nil {
		return nil, fmt.Errorf("inserting place: %w", translate(err, msgPlaceNotFound, "place already exists"))
	}
	return p, nil
}

// Get returns the place with id or a NotFound error.
func (r *PlaceRepository) Get(ctx context.Context, id int64) (p *place.Place, err error) {
	defer observe("place_get", time.Now(), &err)

	p, err = scanPlace(r.q.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(msgPlaceNotFound)
		}
		return nil, fmt.Errorf("querying place %d: %w", id, err)
	}
	return p, nil
}

// List returns places newest id first. Set filters are combined with AND.
func (r *PlaceRepository) List(ctx context.Context, f place.ListFilter) (ps []place.Place, err error) {
	defer observe("place_list", time.Now(), &err)

	var b query
	if f.Category != "" {
		b.where("category = " + b.arg(f.Category))
	}
	if f.Tag != "" {
		b.where(b.arg(f.Tag) + " = ANY(tags)")
	}
	if f.MinRating != nil {
		b.where("avg_rating >= " + b.arg(*f.MinRating))
	}

	sql := `SELECT ` + placeColumns + ` FROM places` + b.whereClause() +
		` ORDER BY id DESC LIMIT ` + b.arg(f.Limit) + ` OFFSET ` + b.arg(f.Offset)

	rows, err := r.q.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("listing places: %w", err)
	}
	return collectPlaces(rows)
}

// Update applies the supplied fields of u to place id.
func (r *PlaceRepository) Update(ctx context.Context, id int64, u place.Update) (p *place.Place, err error) {
	defer observe("place_update", time.Now(), &err)

	if err := u.Validate(); err != nil {
		return nil, err
	}

	var b query
	var sets []string
	if u.Name != nil {
		sets = append(sets, "name = "+b.arg(*u.Name))
	}
	if u.Category != nil {
		sets = append(sets, "category = "+b.arg(*u.Category))
	}
	if u.Description != nil {
		sets = append(sets, "description = "+b.arg(*u.Description))
	}
	if u.Address != nil {
		sets = append(sets, "address = "+b.arg(*u.Address))
	}
	if u.Tags != nil {
		tags := *u.Tags
		if tags == nil {
			tags = []string{}
		}
		sets = append(sets, "tags = "+b.arg(tags))
	}
	if u.HasHours() {
		sets = append(sets, "hours = "+b.arg(string(u.Hours))+"::jsonb")
	}
	if pt, ok := u.Location(); ok {
		sets = append(sets, "geom = ST_SetSRID(ST_MakePoint("+b.arg(pt.Lon())+", "+b.arg(pt.Lat())+"), 4326)")
	}

	sql := `UPDATE places SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + b.arg(id) + ` RETURNING ` + placeColumns

	p, err = scanPlace(r.q.QueryRow(ctx, sql, b.args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(msgPlaceNotFound)
		}
		return nil, fmt.Errorf("updating place %d: %w", id, translate(err, msgPlaceNotFound, "place already exists"))
	}
	return p, nil
}

// Delete removes place id. Its reviews go with it.
func (r *PlaceRepository) Delete(ctx context.Context, id int64) (err error) {
	defer observe("place_delete", time.Now(), &err)

	tag, err := r.q.Exec(ctx, `DELETE FROM places WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting place %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(msgPlaceNotFound)
	}
	return nil
}

// Nearby returns the limit places closest to pt, nearest first.
func (r *PlaceRepository) Nearby(ctx context.Context, pt orb.Point, limit int) (ps []place.NearbyPlace, err error) {
	defer observe("place_nearby", time.Now(), &err)

	sql := `SELECT ` + placeColumns + `,
			ST_Distance(geom::geography, ` + geogPoint("$1", "$2") + `) AS distance_m
		FROM places
		ORDER BY distance_m ASC, id ASC
		LIMIT $3`

	rows, err := r.q.Query(ctx, sql, pt.Lon(), pt.Lat(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying nearby places: %w", err)
	}
	return collectNearby(rows)
}

// WithinRadius returns every place at most radiusM metres from pt, nearest first.
// A place exactly radiusM away is included.
func (r *PlaceRepository) WithinRadius(ctx context.Context, pt orb.Point, radiusM float64) (ps []place.NearbyPlace, err error) {
	defer observe("place_within_radius", time.Now(), &err)

	sql := `SELECT ` + placeColumns + `,
			ST_Distance(geom::geography, ` + geogPoint("$1", "$2") + `) AS distance_m
		FROM places
		WHERE ST_DWithin(geom::geography, ` + geogPoint("$1", "$2") + `, $3)
		ORDER BY distance_m ASC, id ASC`

	rows, err := r.q.Query(ctx, sql, pt.Lon(), pt.Lat(), radiusM)
	if err != nil {
		return nil, fmt.Errorf("querying places within radius: %w", err)
	}
	return collectNearby(rows)
}

// WithinPolygon returns places inside a GeoJSON Polygon or MultiPolygon.
// polygon must already have been checked with place.ParsePolygon.
func (r *PlaceRepository) WithinPolygon(ctx context.Context, polygon []byte) (ps []place.Place, err error) {
	defer observe("place_within_polygon", time.Now(), &err)

	sql := `SELECT ` + placeColumns + ` FROM places
		WHERE ST_Within(geom, ST_SetSRID(ST_GeomFromGeoJSON($1), 4326))
		ORDER BY id DESC`

	rows, err := r.q.Query(ctx, sql, string(polygon))
	if err != nil {
		return nil, fmt.Errorf("querying places within polygon: %w", err)
	}
	return collectPlaces(rows)
}

// DistanceTo returns the geodesic distance from place id to pt.
func (r *PlaceRepository) DistanceTo(ctx context.Context, id int64, pt orb.Point) (d *place.Distance, err error) {
	defer observe("place_distance", time.Now(), &err)

	sql := `SELECT id, ST_Distance(geom::geography, ` + geogPoint("$1", "$2") + `)
		FROM places WHERE id = $3`

	d = &place.Distance{}
	if err := r.q.QueryRow(ctx, sql, pt.Lon(), pt.Lat(), id).Scan(&d.ID, &d.DistanceM); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(msgPlaceNotFound)
		}
		return nil, fmt.Errorf("measuring distance to place %d: %w", id, err)
	}
	return d, nil
}

// TextSearch matches q case-insensitively as a literal substring of name,
// address or description.
func (r *PlaceRepository) TextSearch(ctx context.Context, q string, limit int) (ps []place.Place, err error) {
	defer observe("place_search", time.Now(), &err)

	if err := place.ValidateSearch(q); err != nil {
		return nil, err
	}
	pattern := "%" + escapeLike(q) + "%"

	sql := `SELECT ` + placeColumns + ` FROM places
		WHERE name ILIKE $1 OR address ILIKE $1 OR description ILIKE $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := r.q.Query(ctx, sql, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching places: %w", err)
	}
	return collectPlaces(rows)
}

// StatsByCategory returns place counts and mean rating per category, largest first.
func (r *PlaceRepository) StatsByCategory(ctx context.Context) (stats []place.CategoryStat, err error) {
	defer observe("place_stats", time.Now(), &err)

	rows, err := r.q.Query(ctx, `
		SELECT category, COUNT(*), AVG(avg_rating)
		FROM places
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying category stats: %w", err)
	}
	defer rows.Close()

	stats = []place.CategoryStat{}
	for rows.Next() {
		var s place.CategoryStat
		if err := rows.Scan(&s.Category, &s.Count, &s.AvgRating); err != nil {
			return nil, fmt.Errorf("scanning category stat row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category stat rows: %w", err)
	}
	return stats, nil
}

// ListDistinctTags returns up to place.MaxTagsListed tags in alphabetical
// order, optionally filtered by a case-insensitive substring.
func (r *PlaceRepository) ListDistinctTags(ctx context.Context, search string) (tags []string, err error) {
	defer observe("place_tags", time.Now(), &err)

	var b query
	if s := strings.TrimSpace(search); s != "" {
		b.where("tag ILIKE " + b.arg("%"+escapeLike(s)+"%"))
	}
	sql := `SELECT DISTINCT tag FROM places CROSS JOIN LATERAL unnest(tags) AS tag` +
		b.whereClause() + ` ORDER BY tag LIMIT ` + b.arg(place.MaxTagsListed)

	rows, err := r.q.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	tags = []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag rows: %w", err)
	}
	return tags, nil
}

// ExportGeoJSON returns the places intersecting bbox as a FeatureCollection.
func (r *PlaceRepository) ExportGeoJSON(ctx context.Context, bbox orb.Bound) (fc *geojson.FeatureCollection, err error) {
	defer observe("place_export", time.Now(), &err)

	sql := `SELECT ` + placeColumns + ` FROM places
		WHERE ST_Intersects(geom, ST_MakeEnvelope($1, $2, $3, $4, 4326))
		ORDER BY id ASC`

	rows, err := r.q.Query(ctx, sql, bbox.Min.Lon(), bbox.Min.Lat(), bbox.Max.Lon(), bbox.Max.Lat())
	if err != nil {
		return nil, fmt.Errorf("exporting places: %w", err)
	}
	ps, err := collectPlaces(rows)
	if err != nil {
		return nil, err
	}

	fc = geojson.NewFeatureCollection()
	for _, p := range ps {
		f := geojson.NewFeature(p.Geometry.Geometry())
		f.Properties = geojson.Properties{
			"id":         p.ID,
			"name":       p.Name,
			"category":   p.Category,
			"address":    p.Address,
			"tags":       p.Tags,
			"avg_rating": p.AvgRating,
			"created_at": p.CreatedAt,
		}
		fc.Append(f)
	}
	return fc, nil
}

// Cluster groups all places into at most k k-means clusters and returns
// each cluster's centroid and size. Assignment is not stable across calls.
func (r *PlaceRepository) Cluster(ctx context.Context, k int) (cs []place.Cluster, err error) {
	defer observe("place_cluster", time.Now(), &err)

	rows, err := r.q.Query(ctx, `
		WITH clustered AS (
			SELECT ST_ClusterKMeans(geom, LEAST($1::int, (SELECT COUNT(*)::int FROM places))) OVER () AS cid,
			       geom
			FROM places
		)
		SELECT cid, COUNT(*), ST_AsGeoJSON(ST_Centroid(ST_Collect(geom)))
		FROM clustered
		GROUP BY cid
		ORDER BY cid`, k)
	if err != nil {
		return nil, fmt.Errorf("clustering places: %w", err)
	}
	defer rows.Close()

	cs = []place.Cluster{}
	for rows.Next() {
		var c place.Cluster
		var geometry string
		if err := rows.Scan(&c.ID, &c.Count, &geometry); err != nil {
			return nil, fmt.Errorf("scanning cluster row: %w", err)
		}
		if c.Geometry, err = geojson.UnmarshalGeometry([]byte(geometry)); err != nil {
			return nil, fmt.Errorf("decoding centroid of cluster %d: %w", c.ID, err)
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cluster rows: %w", err)
	}
	return cs, nil
}

// RecentModerated returns moderated places created after since within
// radiusM of pt, newest first.
func (r *PlaceRepository) RecentModerated(ctx context.Context, pt orb.Point, radiusM float64, since time.Time, limit int) (ps []place.Place, err error) {
	defer observe("place_notifications", time.Now(), &err)

	sql := `SELECT ` + placeColumns + ` FROM places
		WHERE is_moderated
		  AND created_at > $1
		  AND ST_DWithin(geom::geography, ` + geogPoint("$2", "$3") + `, $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5`

	rows, err := r.q.Query(ctx, sql, since, pt.Lon(), pt.Lat(), radiusM, limit)
	if err != nil {
		return nil, fmt.Errorf("querying moderated places: %w", err)
	}
	return collectPlaces(rows)
}

// SetModerated sets the moderation flag of place id.
func (r *PlaceRepository) SetModerated(ctx context.Context, id int64, moderated bool) (p *place.Place, err error) {
	defer observe("place_moderate", time.Now(), &err)

	p, err = scanPlace(r.q.QueryRow(ctx,
		`UPDATE places SET is_moderated = $1 WHERE id = $2 RETURNING `+placeColumns, moderated, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(msgPlaceNotFound)
		}
		return nil, fmt.Errorf("moderating place %d: %w", id, err)
	}
	return p, nil
}

// scanPlace scans placeColumns followed by any extra destinations.
func scanPlace(row pgx.Row, extra ...any) (*place.Place, error) {
	var (
		p        place.Place
		hours    []byte
		geometry string
	)
	dest := append([]any{
		&p.ID, &p.Name, &p.Category, &p.Description, &p.Address, &p.Tags,
		&p.AvgRating, &hours, &p.Moderated, &geometry, &p.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if p.Tags == nil {
		p.Tags = []string{}
	}
	if len(hours) > 0 {
		p.Hours = json.RawMessage(hours)
	}
	g, err := geojson.UnmarshalGeometry([]byte(geometry))
	if err != nil {
		return nil, fmt.Errorf("decoding geometry of place %d: %w", p.ID, err)
	}
	p.Geometry = g
	return &p, nil
}

func collectPlaces(rows pgx.Rows) ([]place.Place, error) {
	defer rows.Close()

	ps := []place.Place{}
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning place row: %w", err)
		}
		ps = append(ps, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating place rows: %w", err)
	}
	return ps, nil
}

func collectNearby(rows pgx.Rows) ([]place.NearbyPlace, error) {
	defer rows.Close()

	ps := []place.NearbyPlace{}
	for rows.Next() {
		var d float64
		p, err := scanPlace(rows, &d)
		if err != nil {
			return nil, fmt.Errorf("scanning place row: %w", err)
		}
		ps = append(ps, place.NearbyPlace{Place: *p, DistanceM: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating place rows: %w", err)
	}
	return ps, nil
}

// hoursArg returns the hours document as a jsonb parameter, or nil for SQL NULL.
func hoursArg(h json.RawMessage) any {
	if len(h) == 0 || string(h) == "null" {
		return nil
	}
	return string(h)
}
