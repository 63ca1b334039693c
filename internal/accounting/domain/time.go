package accounting

import "time"

const (
	dayKeyLayout   = "20060102"
	monthKeyLayout = "200601"
)

// DayOf truncates a timestamp to its UTC calendar date.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthOf truncates a timestamp to the first day of its UTC month.
func MonthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayKey renders a compact sortable key for a calendar date.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// MonthKey renders a compact sortable key for a calendar month.
func MonthKey(t time.Time) string {
	return t.UTC().Format(monthKeyLayout)
}
