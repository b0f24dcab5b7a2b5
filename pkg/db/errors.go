package db

import "strings"

// IsUniqueViolation reports whether err is a unique constraint failure on
// either supported driver. When constraintName is provided the helper also
// requires the constraint text in the message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
