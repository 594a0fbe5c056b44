package usage

import "time"

// Day truncates t to the start of its UTC calendar day.
// All day-boundary decisions (issuance, tracking, reporting) go through here.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// NextReset returns the start of the UTC day after t.
func NextReset(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}
