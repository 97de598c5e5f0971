package database

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/routeimport/internal/core"
)

// ============================================================================
// Coordinates
// ============================================================================

const selectCoordinates = `SELECT id, x, y, owner_route_id FROM coordinates`

func scanCoordinates(row pgx.Row) (core.Coordinates, error) {
	var (
		c     core.Coordinates
		owner pgtype.Int8
	)
	if err := row.Scan(&c.ID, &c.X, &c.Y, &owner); err != nil {
		return core.Coordinates{}, err
	}
	c.OwnerRouteID = int8Ptr(owner)
	return c, nil
}

func (q *Queries) FindCoordinates(ctx context.Context, v core.CoordinatesValue) (core.Coordinates, error) {
	c, err := scanCoordinates(q.db.QueryRow(ctx, selectCoordinates+` WHERE x = $1 AND y = $2`, v.X, v.Y))
	if err != nil {
		return core.Coordinates{}, mapNoRows(err, "find coordinates", "coordinates", 0)
	}
	return c, nil
}

func (q *Queries) GetCoordinates(ctx context.Context, id int64) (core.Coordinates, error) {
	c, err := scanCoordinates(q.db.QueryRow(ctx, selectCoordinates+` WHERE id = $1`, id))
	if err != nil {
		return core.Coordinates{}, mapNoRows(err, "get coordinates", "coordinates", id)
	}
	return c, nil
}

// InsertCoordinates leaves the transaction usable when the value already
// exists: the conflict is reported as core.ErrConflict without aborting.
func (q *Queries) InsertCoordinates(ctx context.Context, v core.CoordinatesValue) (core.Coordinates, error) {
	c, err := scanCoordinates(q.db.QueryRow(ctx, `
		INSERT INTO coordinates (x, y) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
		RETURNING id, x, y, owner_route_id`, v.X, v.Y))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Coordinates{}, errors.Wrap(core.ErrConflict, "insert coordinates")
	}
	if err != nil {
		return core.Coordinates{}, mapError(err, "insert coordinates")
	}
	return c, nil
}

func (q *Queries) DeleteCoordinates(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM coordinates WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete coordinates")
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "coordinates", ID: id}
	}
	return nil
}

func (q *Queries) CoordinatesUsage(ctx context.Context, id, excludeRouteID int64) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM routes
		WHERE coordinates_id = $1 AND ($2 = 0 OR id <> $2)`, id, excludeRouteID).Scan(&n)
	if err != nil {
		return 0, mapError(err, "coordinates usage")
	}
	return n, nil
}

func (q *Queries) SetCoordinatesOwner(ctx context.Context, id int64, owner *int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE coordinates SET owner_route_id = $2 WHERE id = $1`, id, int8Of(owner))
	if err != nil {
		return mapError(err, "set coordinates owner")
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "coordinates", ID: id}
	}
	return nil
}

func (q *Queries) ListCoordinates(ctx context.Context) ([]core.Coordinates, error) {
	rows, err := q.db.Query(ctx, selectCoordinates+` ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list coordinates")
	}
	defer rows.Close()

	var out []core.Coordinates
	for rows.Next() {
		c, err := scanCoordinates(rows)
		if err != nil {
			return nil, errors.Wrap(err, "list coordinates: scan")
		}
		out = append(out, c)
	}
	return out, mapError(rows.Err(), "list coordinates")
}

// ============================================================================
// Locations
// ============================================================================

const selectLocation = `SELECT id, x, y, name, owner_route_id FROM locations`

func scanLocation(row pgx.Row) (core.Location, error) {
	var (
		l     core.Location
		name  pgtype.Text
		owner pgtype.Int8
	)
	if err := row.Scan(&l.ID, &l.X, &l.Y, &name, &owner); err != nil {
		return core.Location{}, err
	}
	l.Name = textPtr(name)
	l.OwnerRouteID = int8Ptr(owner)
	return l, nil
}

func (q *Queries) FindLocation(ctx context.Context, v core.LocationValue) (core.Location, error) {
	l, err := scanLocation(q.db.QueryRow(ctx,
		selectLocation+` WHERE x = $1 AND y = $2 AND name IS NOT DISTINCT FROM $3`,
		v.X, v.Y, textOf(v.Name)))
	if err != nil {
		return core.Location{}, mapNoRows(err, "find location", "location", 0)
	}
	return l, nil
}

func (q *Queries) GetLocation(ctx context.Context, id int64) (core.Location, error) {
	l, err := scanLocation(q.db.QueryRow(ctx, selectLocation+` WHERE id = $1`, id))
	if err != nil {
		return core.Location{}, mapNoRows(err, "get location", "location", id)
	}
	return l, nil
}

func (q *Queries) InsertLocation(ctx context.Context, v core.LocationValue) (core.Location, error) {
	l, err := scanLocation(q.db.QueryRow(ctx, `
		INSERT INTO locations (x, y, name) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
		RETURNING id, x, y, name, owner_route_id`, v.X, v.Y, textOf(v.Name)))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Location{}, errors.Wrap(core.ErrConflict, "insert location")
	}
	if err != nil {
		return core.Location{}, mapError(err, "insert location")
	}
	return l, nil
}

func (q *Queries) DeleteLocation(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete location")
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "location", ID: id}
	}
	return nil
}

func (q *Queries) LocationUsage(ctx context.Context, id, excludeRouteID int64) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM routes
		WHERE (from_location_id = $1 OR to_location_id = $1) AND ($2 = 0 OR id <> $2)`,
		id, excludeRouteID).Scan(&n)
	if err != nil {
		return 0, mapError(err, "location usage")
	}
	return n, nil
}

func (q *Queries) SetLocationOwner(ctx context.Context, id int64, owner *int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE locations SET owner_route_id = $2 WHERE id = $1`, id, int8Of(owner))
	if err != nil {
		return mapError(err, "set location owner")
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "location", ID: id}
	}
	return nil
}

func (q *Queries) ListLocations(ctx context.Context) ([]core.Location, error) {
	rows, err := q.db.Query(ctx, selectLocation+` ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list locations")
	}
	defer rows.Close()

	var out []core.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "list locations: scan")
		}
		out = append(out, l)
	}
	return out, mapError(rows.Err(), "list locations")
}

func (q *Queries) ListLocationNames(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, `
		SELECT DISTINCT name COLLATE "C" AS name FROM locations
		WHERE name IS NOT NULL
		ORDER BY 1`)
	if err != nil {
		return nil, mapError(err, "list location names")
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err, "list location names")
	}
	return names, nil
}
