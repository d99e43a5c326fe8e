package gedcom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var months = []string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

var qualifiers = []string{"ABT", "BEF", "AFT", "CAL", "EST"}

var (
	yearOnly  = regexp.MustCompile(`^\d{4}$`)
	isoMonth  = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	isoDay    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	rangeDate = regexp.MustCompile(`^BET\s+.+\s+AND\s+.+$`)
)

// NormalizeDate converts a GEDCOM date to the stored notation without adding
// precision: "15 MAR 1950" becomes "1950-03-15", "MAR 1950" becomes
// "1950-03" and "1950" stays "1950". Qualifiers are kept as a prefix and
// ranges and periods pass through upper-cased. Dates that cannot be read
// return false.
func NormalizeDate(value string) (string, bool) {
	s := strings.ToUpper(strings.Join(strings.Fields(value), " "))
	if s == "" {
		return "", false
	}
	if rangeDate.MatchString(s) || strings.HasPrefix(s, "FROM ") || strings.HasPrefix(s, "TO ") {
		return s, true
	}
	qualifier, rest := splitQualifier(s)
	core, ok := normalizeCore(rest)
	if !ok {
		return "", false
	}
	if qualifier != "" {
		return qualifier + " " + core, true
	}
	return core, true
}

func splitQualifier(s string) (string, string) {
	for _, q := range qualifiers {
		if strings.HasPrefix(s, q+" ") {
			return q, strings.TrimSpace(s[len(q):])
		}
	}
	return "", s
}

func normalizeCore(s string) (string, bool) {
	if m := isoDay.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return s, validDay(m[1], month, day)
	}
	if m := isoMonth.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		return s, month >= 1 && month <= 12
	}
	parts := strings.Fields(s)
	switch len(parts) {
	case 1:
		if yearOnly.MatchString(parts[0]) {
			return parts[0], true
		}
	case 2:
		month := monthNumber(parts[0])
		if month > 0 && yearOnly.MatchString(parts[1]) {
			return fmt.Sprintf("%s-%02d", parts[1], month), true
		}
	case 3:
		day, err := strconv.Atoi(parts[0])
		month := monthNumber(parts[1])
		if err == nil && yearOnly.MatchString(parts[2]) && validDay(parts[2], month, day) {
			return fmt.Sprintf("%s-%02d-%02d", parts[2], month, day), true
		}
	}
	return "", false
}

// validDay reports whether day exists in the month of the given year.
func validDay(year string, month, day int) bool {
	y, err := strconv.Atoi(year)
	if err != nil || month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= time.Date(y, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func monthNumber(s string) int {
	for i, m := range months {
		if m == s {
			return i + 1
		}
	}
	return 0
}

// FormatDate is the inverse of NormalizeDate. Values it cannot read yield an
// empty string.
func FormatDate(normalized string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(normalized), " "))
	if s == "" {
		return ""
	}
	if rangeDate.MatchString(s) || strings.HasPrefix(s, "FROM ") || strings.HasPrefix(s, "TO ") {
		return s
	}
	qualifier, rest := splitQualifier(s)
	core := formatCore(rest)
	if core == "" {
		return ""
	}
	if qualifier != "" {
		return qualifier + " " + core
	}
	return core
}

func formatCore(s string) string {
	if m := isoDay.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if !validDay(m[1], month, day) {
			return ""
		}
		return fmt.Sprintf("%d %s %s", day, months[month-1], m[1])
	}
	if m := isoMonth.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return ""
		}
		return months[month-1] + " " + m[1]
	}
	if yearOnly.MatchString(s) {
		return s
	}
	// Already in GEDCOM form.
	if core, ok := normalizeCore(s); ok {
		return formatCore(core)
	}
	return ""
}
