package persistence

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"onlyjobs_server/pkg/apperr"
)

// uniqueViolation is the Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// mapError converts driver errors into the shared error taxonomy. Unique
// violations surface as retryable conflicts carrying the constraint name, so
// callers can attach to the existing row instead of failing.
func mapError(err error, resource, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(resource)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.UniquenessConflict(pgErr.ConstraintName, err)
	}
	return apperr.DatabaseError(operation, err)
}
