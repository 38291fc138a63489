package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numericDateRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})(?:[ ,]+(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	monthDateRe   = regexp.MustCompile(`^(\d{1,2})[ -]([A-Za-z]{3,9})[ -](\d{4})$`)
)

var monthsByName = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parseAlertDate parses the two date grammars that appear in bank alerts:
// numeric "DD/MM/YY[YY] [HH:MM[:SS]]" and named-month "DD Mon YYYY". The
// parsed components are validated by round-tripping through calendar math,
// so "31/02/25" or an hour of 25 is rejected rather than normalized.
func parseAlertDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)

	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		year = windowYear(year)

		hour, minute, sec := 0, 0, 0
		if m[4] != "" {
			hour, _ = strconv.Atoi(m[4])
			minute, _ = strconv.Atoi(m[5])
			if m[6] != "" {
				sec, _ = strconv.Atoi(m[6])
			}
		}
		return makeValidDate(year, time.Month(month), day, hour, minute, sec)
	}

	if m := monthDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := monthsByName[strings.ToLower(m[2])[:3]]
		if !ok {
			return time.Time{}, false
		}
		year, _ := strconv.Atoi(m[3])
		return makeValidDate(year, month, day, 0, 0, 0)
	}

	return time.Time{}, false
}

// windowYear expands a 2-digit year: 00-69 land in 2000-2069, 70-99 in
// 1970-1999. 4-digit years pass through.
func windowYear(y int) int {
	if y >= 100 {
		return y
	}
	if y < 70 {
		return 2000 + y
	}
	return 1900 + y
}

// makeValidDate builds a UTC time and rejects components the calendar
// normalized away (February 30 becomes March 2, which no longer matches).
func makeValidDate(year int, month time.Month, day, hour, minute, sec int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 ||
		hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
