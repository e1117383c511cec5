package eligibility

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string as a civil date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// WeekNumber maps a date to its 1-based week index counted from the epoch
// date. Both instants are truncated to civil midnight in loc before
// differencing, so time of day never affects the result. Dates before the
// epoch clamp to week 1 by design.
func WeekNumber(date, epoch time.Time, loc *time.Location) int {
	days := daysBetween(civilMidnight(date, loc), civilMidnight(epoch, loc))
	if days < 0 {
		return 1
	}
	return days/7 + 1
}

// WeekDateRange returns the 7-day calendar span covered by the given week
// number: the epoch date shifted by whole weeks, through six days later.
func WeekDateRange(week int, epoch time.Time, loc *time.Location) (time.Time, time.Time) {
	if week < 1 {
		week = 1
	}
	start := civilMidnight(epoch, loc).AddDate(0, 0, 7*(week-1))
	return start, start.AddDate(0, 0, 6)
}

func civilMidnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days between two civil midnights. The dates
// are re-anchored in UTC so daylight-saving transitions cannot skew the
// division into whole days.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(au.Sub(bu) / (24 * time.Hour))
}
