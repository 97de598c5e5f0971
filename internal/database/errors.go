package database

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/routeimport/internal/core"
)

// SQLSTATE codes the repositories react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

const routeNameIndex = "routes_name_lower_key"

// ErrReferenced is returned when a delete is blocked by a route still
// referencing the row.
var ErrReferenced = errors.New("row is still referenced")

// mapError translates driver errors into core errors and wraps the rest
// with op.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errors.Wrap(err, op)
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		if pgErr.ConstraintName == routeNameIndex {
			return &core.DuplicateNameError{}
		}
		return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, core.ErrConflict)
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%s: %w", op, core.ErrConflict)
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, ErrReferenced)
	case codeCheckViolation:
		return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, core.ErrInvalidRoute)
	default:
		return errors.Wrapf(err, "%s (%s)", op, pgErr.Code)
	}
}

// mapNoRows turns pgx.ErrNoRows into a *core.NotFoundError for entity id.
func mapNoRows(err error, op, entity string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return mapError(err, op)
}

// duplicateName fills in the name of a *core.DuplicateNameError produced
// by mapError.
func duplicateName(err error, name string) error {
	var dup *core.DuplicateNameError
	if errors.As(err, &dup) && dup.Name == "" {
		dup.Name = name
	}
	return err
}
