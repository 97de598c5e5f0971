package database

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/routeimport/internal/core"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"route name index", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: routeNameIndex}, core.ErrDuplicateName},
		{"coordinates value", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "coordinates_value_key"}, core.ErrConflict},
		{"serialization", &pgconn.PgError{Code: codeSerializationFailure}, core.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, core.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: codeForeignKeyViolation, ConstraintName: "routes_coordinates_id_fkey"}, ErrReferenced},
		{"check", &pgconn.PgError{Code: codeCheckViolation, ConstraintName: "coordinates_y_check"}, core.ErrInvalidRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err, "op"), tt.target)
		})
	}
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, mapError(nil, "op"))

	boom := errors.New("connection refused")
	err := mapError(boom, "get route")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "get route")

	err = mapError(&pgconn.PgError{Code: "XX000", Message: "internal"}, "get route")
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Contains(t, err.Error(), "XX000")
}

func TestDuplicateName_FillsName(t *testing.T) {
	err := duplicateName(mapError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: routeNameIndex}, "insert"), "Alpha")
	var dup *core.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Alpha", dup.Name)
}

func TestMapNoRows(t *testing.T) {
	err := mapNoRows(pgx.ErrNoRows, "get route", "route", 7)
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(7), nf.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, " ORDER BY r.id ASC", orderBy("", false))
	assert.Equal(t, " ORDER BY r.id DESC", orderBy("id", true))
	assert.Equal(t, " ORDER BY r.distance DESC, r.id ASC", orderBy("distance", true))
	assert.Equal(t, ` ORDER BY r.name COLLATE "C" ASC, r.id ASC`, orderBy("name", false))
	assert.Equal(t, " ORDER BY r.id ASC", orderBy("1; drop table routes", false), "unknown keys never reach SQL")
}

func TestBetweenWhere(t *testing.T) {
	where, args := betweenWhere(core.BetweenQuery{FromName: "Depot", ToXY: &[2]float64{1, 2}})
	assert.Equal(t, " WHERE f.name = $1 AND t.x = $2 AND t.y = $3", where)
	assert.Equal(t, []any{"Depot", 1.0, 2.0}, args)

	where, args = betweenWhere(core.BetweenQuery{FromXY: &[2]float64{3, 4}, ToName: "End"})
	assert.Equal(t, " WHERE f.x = $1 AND f.y = $2 AND t.name = $3", where)
	assert.Equal(t, []any{3.0, 4.0, "End"}, args)
}

func TestSchemaIsEmbedded(t *testing.T) {
	for _, table := range []string{"coordinates", "locations", "routes", "import_operations"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, schema, routeNameIndex)
}
