package repository

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQL error codes the services react to.
const (
	pgUniqueViolation       = "23505"
	pgInsufficientPrivilege = "42501"
	pgReadOnlyTransaction   = "25006"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

// IsWriteRejected reports whether the database refused a write because of
// privileges or a read-only session.
func IsWriteRejected(err error) bool {
	switch pgCode(err) {
	case pgInsufficientPrivilege, pgReadOnlyTransaction:
		return true
	default:
		return false
	}
}

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
