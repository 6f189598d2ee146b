package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/neexbeast/geoplaces/internal/apperr"
)

// PostgreSQL SQLSTATE codes translated into domain errors.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// translate maps integrity violations onto domain errors so no engine codes
// reach clients. Other errors are returned unchanged.
func translate(err error, notFound, conflict string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation:
		return apperr.Wrap(apperr.KindNotFound, notFound, err)
	case pgUniqueViolation:
		return apperr.Wrap(apperr.KindConflict, conflict, err)
	case pgCheckViolation:
		return apperr.Wrap(apperr.KindStorage, "value violates a storage constraint", err)
	}
	return err
}
