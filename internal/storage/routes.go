package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/route"
)

const routeColumns = `id, user_id, name, ST_AsGeoJSON(geom) AS geometry, created_at`

// RouteRepository stores user-owned line geometries. Every read is scoped to
// the owning user.
type RouteRepository struct {
	q Querier
}

// NewRouteRepository constructs a RouteRepository.
func NewRouteRepository(q Querier) *RouteRepository {
	return &RouteRepository{q: q}
}

// Create stores a route for userID.
func (r *RouteRepository) Create(ctx context.Context, userID int64, name string, line orb.LineString) (rt *route.Route, err error) {
	defer observe("route_create", time.Now(), &err)

	if err := route.ValidateName(name); err != nil {
		return nil, err
	}
	if len(line) < route.MinPoints {
		return nil, apperr.Validation("route requires at least %d points", route.MinPoints)
	}
	geom, err := geojson.NewGeometry(line).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding route geometry: %w", err)
	}

	rt, err = scanRoute(r.q.QueryRow(ctx, `
		INSERT INTO routes (user_id, name, geom)
		VALUES ($1, $2, ST_SetSRID(ST_GeomFromGeoJSON($3), 4326))
		RETURNING `+routeColumns, userID, name, string(geom)))
	if err != nil {
		return nil, fmt.Errorf("inserting route for user %d: %w", userID, translate(err, "user not found", "route already exists"))
	}
	return rt, nil
}

// ListByUser returns the routes of userID, newest first.
func (r *RouteRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) (rs []route.Route, err error) {
	defer observe("route_list", time.Now(), &err)

	rows, err := r.q.Query(ctx, `
		SELECT `+routeColumns+`
		FROM routes
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing routes for user %d: %w", userID, err)
	}
	defer rows.Close()

	rs = []route.Route{}
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning route row: %w", err)
		}
		rs = append(rs, *rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating route rows: %w", err)
	}
	return rs, nil
}

func scanRoute(row pgx.Row) (*route.Route, error) {
	var (
		rt       route.Route
		geometry string
	)
	if err := row.Scan(&rt.ID, &rt.UserID, &rt.Name, &geometry, &rt.CreatedAt); err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry([]byte(geometry))
	if err != nil {
		return nil, fmt.Errorf("decoding geometry of route %d: %w", rt.ID, err)
	}
	rt.Geometry = g
	return &rt, nil
}
