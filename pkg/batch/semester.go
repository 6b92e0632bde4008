package batch

import (
	"strings"
)

var romanSemesters = []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII"}

var ordinalSemesters = map[string]string{
	"1st": "I", "2nd": "II", "3rd": "III", "4th": "IV",
	"5th": "V", "6th": "VI", "7th": "VII", "8th": "VIII",
}

// Semester normalizes a semester given either as a roman numeral ("iv") or
// as the ordinal token used by the semester services ("4th").
func Semester(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if roman, ok := ordinalSemesters[strings.ToLower(s)]; ok {
		return roman, true
	}
	upper := strings.ToUpper(s)
	for _, r := range romanSemesters {
		if upper == r {
			return r, true
		}
	}
	return "", false
}
