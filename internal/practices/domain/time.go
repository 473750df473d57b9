package domain

import "time"

// timeLayouts are accepted when parsing stored timestamps. The store has
// historically held both zoned and naive ISO 8601 strings.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses a stored timestamp string. The second return value is
// false for empty or malformed input; callers must fail open on it.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders a timestamp the way the store expects it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// DaysSince returns the number of whole days between then and now.
// Negative spans (clock skew, future dates) count as zero days.
func DaysSince(now, then time.Time) int {
	d := now.Sub(then)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
