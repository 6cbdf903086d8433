package alarm

import "time"

// NextOccurrence returns the first instant strictly after now, in now's
// location, that falls on weekday at hour:minute.
func NextOccurrence(now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	loc := now.Location()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	days := (int(weekday) - int(candidate.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
