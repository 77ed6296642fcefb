package db

import (
	"errors"
	"strings"
)

// IsUniqueViolation reports whether any error in the chain references a
// unique constraint. When constraintName is provided, the helper looks for
// the constraint text; otherwise any duplicate-key failure matches. SQLite's
// wording is covered so test databases behave like Postgres here.
func IsUniqueViolation(err error, constraintName string) bool {
	return chainContains(err, func(msg string) bool {
		if constraintName != "" {
			return strings.Contains(msg, constraintName)
		}
		return strings.Contains(msg, "duplicate key value") ||
			strings.Contains(msg, "UNIQUE constraint failed")
	})
}

// IsLockContention reports whether any error in the chain looks like a
// row-lock timeout, deadlock, or serialization failure, the cases a caller
// may retry.
func IsLockContention(err error) bool {
	return chainContains(err, func(msg string) bool {
		for _, marker := range []string{
			"could not obtain lock",      // pg lock_not_available (55P03)
			"deadlock detected",          // pg deadlock_detected (40P01)
			"could not serialize access", // pg serialization_failure (40001)
			"canceling statement due to lock timeout",
			"database is locked", // sqlite busy
			"database table is locked",
		} {
			if strings.Contains(msg, marker) {
				return true
			}
		}
		return false
	})
}

func chainContains(err error, match func(msg string) bool) bool {
	for err != nil {
		if match(err.Error()) {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
