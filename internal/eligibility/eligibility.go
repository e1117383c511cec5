// Package eligibility implements the attendance admission rules: whether a
// student may check in at a given instant, and whether the check-in counts
// as on time or late. The evaluator is a pure function of its inputs; it
// never reads configuration, storage, or the system clock.
package eligibility

import (
	"fmt"
	"time"
)

// ClassType is a student's enrollment category.
type ClassType string

const (
	ClassWeekend ClassType = "weekend"
	ClassWeekday ClassType = "weekday"
	ClassBoth    ClassType = "both"
)

// Valid reports whether the class type is a supported value.
func (c ClassType) Valid() bool {
	switch c {
	case ClassWeekend, ClassWeekday, ClassBoth:
		return true
	default:
		return false
	}
}

// Matches reports whether the class type admits the given day type.
// ClassBoth is a wildcard matching either day type.
func (c ClassType) Matches(d DayType) bool {
	return c == ClassBoth || string(c) == string(d)
}

// DayType classifies a calendar day as a weekend or weekday session day.
// It is derived per evaluation from the local civil date, never stored.
type DayType string

const (
	DayWeekend DayType = "weekend"
	DayWeekday DayType = "weekday"
)

// DayTypeOf returns the day type for the civil day-of-week of t.
func DayTypeOf(t time.Time) DayType {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return DayWeekend
	default:
		return DayWeekday
	}
}

// Status classifies an admitted check-in.
type Status string

const (
	StatusOnTime Status = "on_time"
	StatusLate   Status = "late"
)

// Reason categorises a denied check-in.
type Reason string

const (
	ReasonWrongDay   Reason = "wrong_day"
	ReasonTooEarly   Reason = "too_early"
	ReasonClassEnded Reason = "class_ended"
)

// Rule describes the admission window for one day type. Times are minutes
// since local midnight. Admission opens EarlyLoginMinutes before StartMinute
// and closes at EndMinute; arrivals within LateThresholdMinutes of the start
// still count as on time.
type Rule struct {
	StartMinute          int
	EndMinute            int
	LateThresholdMinutes int
	EarlyLoginMinutes    int
}

func (r Rule) validate() error {
	if r.StartMinute < 0 || r.EndMinute > 24*60 {
		return fmt.Errorf("rule times out of range: start=%d end=%d", r.StartMinute, r.EndMinute)
	}
	if r.StartMinute >= r.EndMinute {
		return fmt.Errorf("start minute %d must precede end minute %d", r.StartMinute, r.EndMinute)
	}
	if r.LateThresholdMinutes < 0 {
		return fmt.Errorf("late threshold must not be negative")
	}
	if r.EarlyLoginMinutes < 0 {
		return fmt.Errorf("early login window must not be negative")
	}
	return nil
}

// ParseClock converts an "HH:MM" wall-clock string to minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}

// Schedule holds one admission rule per day type.
type Schedule struct {
	Weekend Rule
	Weekday Rule
}

// Rule returns the rule for the given day type.
func (s Schedule) Rule(d DayType) Rule {
	if d == DayWeekend {
		return s.Weekend
	}
	return s.Weekday
}

// Result is the outcome of one admission evaluation. It is constructed
// fresh per call and carries the resolved local instant so callers can
// derive the week number without converting time zones twice.
type Result struct {
	Allowed     bool
	DayType     DayType
	Status      Status
	MinutesLate int
	Reason      Reason
	LocalTime   time.Time

	// WaitMinutes is set on too_early denials: how long until admission opens.
	WaitMinutes int
	// Rule is the schedule rule the decision was made against. On wrong_day
	// denials it is the rule for the student's registered class type, so the
	// caller can name the class days and hours.
	Rule Rule
}

// Evaluator applies the schedule rules in a fixed organisational time zone.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	schedule Schedule
	loc      *time.Location
}

// NewEvaluator validates the schedule once and returns an evaluator.
// Malformed rules are a configuration fault surfaced at startup, never
// during evaluation.
func NewEvaluator(schedule Schedule, loc *time.Location) (*Evaluator, error) {
	if loc == nil {
		return nil, fmt.Errorf("time zone location required")
	}
	if err := schedule.Weekend.validate(); err != nil {
		return nil, fmt.Errorf("weekend rule: %w", err)
	}
	if err := schedule.Weekday.validate(); err != nil {
		return nil, fmt.Errorf("weekday rule: %w", err)
	}
	return &Evaluator{schedule: schedule, loc: loc}, nil
}

// Location exposes the evaluator's time zone so callers resolve dates
// consistently with the admission decision.
func (e *Evaluator) Location() *time.Location {
	return e.loc
}

// Schedule returns the validated schedule table.
func (e *Evaluator) Schedule() Schedule {
	return e.schedule
}

// Evaluate decides admission for the given class type at the given instant.
// The caller supplies the instant; defaulting to the real clock is a
// call-boundary concern.
//
// The boundary comparisons are deliberate: equality with the early-open
// minute is admitted, equality with the end minute is admitted, and equality
// with the late-threshold minute is still on time. Only the strict
// inequalities reject or mark late.
func (e *Evaluator) Evaluate(classType ClassType, at time.Time) Result {
	local := at.In(e.loc).Truncate(time.Second)
	dayType := DayTypeOf(local)
	res := Result{DayType: dayType, LocalTime: local}

	if !classType.Matches(dayType) {
		res.Reason = ReasonWrongDay
		res.Rule = e.schedule.Rule(DayType(classType))
		return res
	}

	rule := e.schedule.Rule(dayType)
	res.Rule = rule

	nowMin := local.Hour()*60 + local.Minute()
	earlyOpenMin := rule.StartMinute - rule.EarlyLoginMinutes
	lateThresholdMin := rule.StartMinute + rule.LateThresholdMinutes

	switch {
	case nowMin < earlyOpenMin:
		res.Reason = ReasonTooEarly
		res.WaitMinutes = earlyOpenMin - nowMin
	case nowMin > rule.EndMinute:
		res.Reason = ReasonClassEnded
	case nowMin > lateThresholdMin:
		res.Allowed = true
		res.Status = StatusLate
		res.MinutesLate = nowMin - rule.StartMinute
	default:
		res.Allowed = true
		res.Status = StatusOnTime
	}
	return res
}
