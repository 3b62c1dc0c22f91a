package billing

import "time"

// Clock supplies the current instant. Billing rules never read the wall clock directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the billing time zone.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// Date builds a calendar date. All calendar dates are UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DaysBetween returns the whole number of calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

func addMonths(d time.Time, n int) time.Time {
	return Date(d.Year(), d.Month()+time.Month(n), d.Day())
}
