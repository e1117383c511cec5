package eligibility

import (
	"fmt"
)

// Presentation helpers for evaluation results. They format the numeric
// payload of a Result for end users and play no part in the admission
// decision itself.

// Clock12 renders minutes-since-midnight as a 12-hour clock string,
// e.g. 1050 becomes "5:30 PM".
func Clock12(minute int) string {
	h := minute / 60 % 24
	m := minute % 60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, suffix)
}

// WaitPhrase renders a minute count as combined hours and minutes, omitting
// zero units and pluralising units whose magnitude is not one:
// 70 becomes "1 hour and 10 minutes", 60 becomes "1 hour".
func WaitPhrase(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	h := minutes / 60
	m := minutes % 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%s and %s", pluralUnit(h, "hour"), pluralUnit(m, "minute"))
	case h > 0:
		return pluralUnit(h, "hour")
	default:
		return pluralUnit(m, "minute")
	}
}

func pluralUnit(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ClassDays names the session days for a class type.
func ClassDays(c ClassType) string {
	switch c {
	case ClassWeekend:
		return "Saturday and Sunday"
	case ClassWeekday:
		return "Monday through Friday"
	default:
		return "any class day"
	}
}

// Message composes a user-facing sentence for an evaluation outcome. The
// structured result (reason category plus numeric parameters) remains the
// contract; this wording is display only.
func Message(res Result, classType ClassType) string {
	if res.Allowed {
		if res.Status == StatusLate {
			return fmt.Sprintf("Checked in %s after class start; you are marked late.", WaitPhrase(res.MinutesLate))
		}
		return "Checked in on time."
	}

	switch res.Reason {
	case ReasonWrongDay:
		return fmt.Sprintf("You are registered for %s classes (%s, %s to %s); today is %s.",
			classType,
			ClassDays(classType),
			Clock12(res.Rule.StartMinute),
			Clock12(res.Rule.EndMinute),
			res.LocalTime.Weekday().String(),
		)
	case ReasonTooEarly:
		return fmt.Sprintf("Class starts at %s. Check-in opens in %s.",
			Clock12(res.Rule.StartMinute),
			WaitPhrase(res.WaitMinutes),
		)
	case ReasonClassEnded:
		return fmt.Sprintf("Today's class ended at %s. Check-in is closed.", Clock12(res.Rule.EndMinute))
	default:
		return "Check-in is not available right now."
	}
}
