package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/routeimport/internal/core"
)

const selectRoute = `
SELECT r.id, r.name, r.distance, r.rating, r.creation_date, r.version,
       c.id, c.x, c.y, c.owner_route_id,
       f.id, f.x, f.y, f.name, f.owner_route_id,
       t.id, t.x, t.y, t.name, t.owner_route_id
FROM routes r
JOIN coordinates c ON c.id = r.coordinates_id
JOIN locations f ON f.id = r.from_location_id
JOIN locations t ON t.id = r.to_location_id`

// routeOrder maps sort keys to ORDER BY columns. Only these keys reach SQL.
var routeOrder = map[string]string{
	"id":            "r.id",
	"name":          `r.name COLLATE "C"`,
	"distance":      "r.distance",
	"rating":        "r.rating",
	"creation_date": "r.creation_date",
}

func orderBy(sortBy string, desc bool) string {
	col, ok := routeOrder[sortBy]
	if !ok {
		col = routeOrder["id"]
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	if col == routeOrder["id"] {
		return " ORDER BY r.id " + dir
	}
	return " ORDER BY " + col + " " + dir + ", r.id ASC"
}

type routeScan struct {
	route     core.Route
	coordsOwn pgtype.Int8
	fromName  pgtype.Text
	fromOwn   pgtype.Int8
	toName    pgtype.Text
	toOwn     pgtype.Int8
	created   pgtype.Timestamptz
}

func (s *routeScan) dest() []any {
	r := &s.route
	return []any{
		&r.ID, &r.Name, &r.Distance, &r.Rating, &s.created, &r.Version,
		&r.Coordinates.ID, &r.Coordinates.X, &r.Coordinates.Y, &s.coordsOwn,
		&r.From.ID, &r.From.X, &r.From.Y, &s.fromName, &s.fromOwn,
		&r.To.ID, &r.To.X, &r.To.Y, &s.toName, &s.toOwn,
	}
}

func (s *routeScan) value() core.Route {
	r := s.route
	r.CreationDate = s.created.Time.UTC()
	r.Coordinates.OwnerRouteID = int8Ptr(s.coordsOwn)
	r.From.Name = textPtr(s.fromName)
	r.From.OwnerRouteID = int8Ptr(s.fromOwn)
	r.To.Name = textPtr(s.toName)
	r.To.OwnerRouteID = int8Ptr(s.toOwn)
	return r
}

func (q *Queries) queryRoutes(ctx context.Context, op, sql string, args ...any) ([]core.Route, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer rows.Close()

	var out []core.Route
	for rows.Next() {
		var s routeScan
		if err := rows.Scan(s.dest()...); err != nil {
			return nil, errors.Wrap(err, op+": scan")
		}
		out = append(out, s.value())
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, op)
	}
	return out, nil
}

func (q *Queries) queryRoute(ctx context.Context, op string, id int64, sql string, args ...any) (core.Route, error) {
	var s routeScan
	if err := q.db.QueryRow(ctx, sql, args...).Scan(s.dest()...); err != nil {
		return core.Route{}, mapNoRows(err, op, "route", id)
	}
	return s.value(), nil
}

func (q *Queries) GetRoute(ctx context.Context, id int64) (core.Route, error) {
	return q.queryRoute(ctx, "get route", id, selectRoute+" WHERE r.id = $1", id)
}

func (q *Queries) FindRouteByName(ctx context.Context, name string, excludeID int64) (core.Route, error) {
	return q.queryRoute(ctx, "find route by name", 0,
		selectRoute+" WHERE lower(r.name) = lower(btrim($1)) AND r.id <> $2",
		name, excludeID)
}

func (q *Queries) InsertRoute(ctx context.Context, rec core.RouteRecord) (core.Route, error) {
	var id int64
	err := q.db.QueryRow(ctx, `
		INSERT INTO routes (name, coordinates_id, from_location_id, to_location_id, distance, rating, creation_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		rec.Name, rec.CoordinatesID, rec.FromID, rec.ToID, rec.Distance, rec.Rating, timestamptz(rec.CreationDate),
	).Scan(&id)
	if err != nil {
		return core.Route{}, duplicateName(mapError(err, "insert route"), rec.Name)
	}
	return q.GetRoute(ctx, id)
}

func (q *Queries) UpdateRoute(ctx context.Context, rec core.RouteRecord, expectedVersion int64) (core.Route, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE routes
		SET name = $2, coordinates_id = $3, from_location_id = $4, to_location_id = $5,
		    distance = $6, rating = $7, version = version + 1
		WHERE id = $1 AND version = $8`,
		rec.ID, rec.Name, rec.CoordinatesID, rec.FromID, rec.ToID, rec.Distance, rec.Rating, expectedVersion,
	)
	if err != nil {
		return core.Route{}, duplicateName(mapError(err, "update route"), rec.Name)
	}
	if tag.RowsAffected() == 0 {
		if _, err := q.GetRoute(ctx, rec.ID); err != nil {
			return core.Route{}, err
		}
		return core.Route{}, fmt.Errorf("update route %d at version %d: %w", rec.ID, expectedVersion, core.ErrVersionConflict)
	}
	return q.GetRoute(ctx, rec.ID)
}

func (q *Queries) DeleteRoute(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete route")
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "route", ID: id}
	}
	return nil
}

func (q *Queries) ListRoutes(ctx context.Context, f core.RouteFilter) ([]core.Route, int64, error) {
	const where = ` WHERE ($1 = '' OR position(lower($1) in lower(r.name)) > 0)`

	var total int64
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM routes r`+where, f.NameContains).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count routes")
	}

	limit := "ALL"
	if f.Limit > 0 {
		limit = fmt.Sprint(f.Limit)
	}
	routes, err := q.queryRoutes(ctx, "list routes",
		selectRoute+where+orderBy(f.SortBy, f.Descending)+" LIMIT "+limit+" OFFSET $2",
		f.NameContains, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	return routes, total, nil
}

func (q *Queries) RoutesByCoordinates(ctx context.Context, coordinatesID, excludeRouteID int64) ([]core.Route, error) {
	return q.queryRoutes(ctx, "routes by coordinates",
		selectRoute+" WHERE r.coordinates_id = $1 AND r.id <> $2 ORDER BY r.id",
		coordinatesID, excludeRouteID)
}

func (q *Queries) RoutesByLocation(ctx context.Context, locationID, excludeRouteID int64) ([]core.Route, error) {
	return q.queryRoutes(ctx, "routes by location",
		selectRoute+" WHERE (r.from_location_id = $1 OR r.to_location_id = $1) AND r.id <> $2 ORDER BY r.id",
		locationID, excludeRouteID)
}

func (q *Queries) RouteWithMaxName(ctx context.Context) (core.Route, error) {
	return q.queryRoute(ctx, "route with max name", 0,
		selectRoute+orderBy("name", true)+" LIMIT 1")
}

func (q *Queries) CountRoutesRatingBelow(ctx context.Context, threshold int64) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM routes WHERE rating < $1`, threshold).Scan(&n); err != nil {
		return 0, mapError(err, "count routes by rating")
	}
	return n, nil
}

func (q *Queries) RoutesRatingAbove(ctx context.Context, threshold int64) ([]core.Route, error) {
	return q.queryRoutes(ctx, "routes by rating",
		selectRoute+" WHERE r.rating > $1"+orderBy("rating", true), threshold)
}

func (q *Queries) RoutesBetween(ctx context.Context, bq core.BetweenQuery) ([]core.Route, error) {
	where, args := betweenWhere(bq)
	return q.queryRoutes(ctx, "routes between", selectRoute+where+orderBy(bq.SortBy, false), args...)
}

// betweenWhere builds the endpoint filter. Each side is matched on the
// location name, or on x and y when coordinates are given.
func betweenWhere(bq core.BetweenQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	side := func(alias, name string, xy *[2]float64) {
		if xy != nil {
			args = append(args, xy[0], xy[1])
			conds = append(conds, fmt.Sprintf("%s.x = $%d AND %s.y = $%d", alias, len(args)-1, alias, len(args)))
			return
		}
		args = append(args, name)
		conds = append(conds, fmt.Sprintf("%s.name = $%d", alias, len(args)))
	}
	side("f", bq.FromName, bq.FromXY)
	side("t", bq.ToName, bq.ToXY)
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Nullable column helpers.

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func textPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int8Of(p *int64) pgtype.Int8 {
	if p == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *p, Valid: true}
}

func textOf(p *string) pgtype.Text {
	if p == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *p, Valid: true}
}
