package person

import (
	"regexp"
	"strconv"
)

var yearPattern = regexp.MustCompile(`(?:^|[^0-9])([0-9]{4})(?:[^0-9]|$)`)

// Year extracts the first four digit year from a date string in any of the
// supported notations. Qualified dates and ranges yield their first year.
func Year(date string) (int, bool) {
	m := yearPattern.FindStringSubmatch(date)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}
