package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the repositories react to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// MapError translates database errors to domain errors. sql.ErrNoRows and
// foreign key violations become notFoundErr, unique violations become
// duplicateErr. Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	switch pgCode(err) {
	case pgUniqueViolation:
		return duplicateErr
	case pgForeignKeyViolation:
		return notFoundErr
	}
	return err
}

// IsRetryable reports whether err is a serialization failure or deadlock that a
// fresh transaction may not hit again.
func IsRetryable(err error) bool {
	switch pgCode(err) {
	case pgSerializationFailure, pgDeadlockDetected:
		return true
	}
	return false
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
