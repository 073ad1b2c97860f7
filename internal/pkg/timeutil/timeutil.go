// Package timeutil computes day windows in the operator's local time zone and
// applies the midnight-shift policy for feeds that fabricate 00:00 publish
// times.
package timeutil

import "time"

// LocalDayBounds returns the [start, end) window of the given local calendar
// day as UTC instants.
func LocalDayBounds(target time.Time) (time.Time, time.Time) {
	local := target.In(time.Local)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

// ParseDay parses a YYYY-MM-DD string as a local calendar day.
func ParseDay(value string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", value, time.Local)
}

// DayString formats an instant as the local calendar day it falls on.
func DayString(t time.Time) string {
	return t.In(time.Local).Format("2006-01-02")
}

// ShiftMidnightPublish advances publishedAt by shiftDays when the upstream
// reported a bare 00:00 publish time, a known sentinel for "time unknown".
// A non-positive shift disables the policy.
func ShiftMidnightPublish(publishedAt time.Time, isMidnightPublish bool, shiftDays int) time.Time {
	if !isMidnightPublish || shiftDays <= 0 {
		return publishedAt
	}
	return publishedAt.AddDate(0, 0, shiftDays)
}
