package model

import "regexp"

// userIDPattern is the canonical user_id shape: U followed by five digits.
var userIDPattern = regexp.MustCompile(`^U\d{5}$`)

// Row is one parsed, validated input tuple from the CSV. LoginCount and
// PostCount are the new authoritative totals for the user, not increments
// (see the monotonic-guard semantics in internal/pipeline/worker.go).
type Row struct {
	Index      int
	UserID     string
	LoginCount int
	PostCount  int
}

// ValidUserID reports whether id matches the required U##### pattern.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}
