package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// isUniqueViolation Postgres unique constraint ihlali mi
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// nullString boş string'i NULL olarak yazar
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
