package cache

import (
	"strings"
)

// Key identifies one cached student result.
type Key struct {
	// Year is the batch year the portal page belongs to (e.g. "2023").
	Year string

	// Semester is the roman numeral semester (e.g. "I").
	Semester string

	// RegNo is the full registration number.
	RegNo string
}

// String generates a deterministic cache key string.
// Format: beu:result:year:semester:regno
//
// Example:
//
//	beu:result:2023:I:22104134010
func (k Key) String() string {
	parts := []string{
		"beu",
		"result",
		strings.TrimSpace(k.Year),
		strings.ToUpper(strings.TrimSpace(k.Semester)),
		strings.TrimSpace(k.RegNo),
	}
	return strings.Join(parts, ":")
}
