package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSchedule() Schedule {
	return Schedule{
		Weekend: Rule{StartMinute: 12 * 60, EndMinute: 13*60 + 30, LateThresholdMinutes: 15, EarlyLoginMinutes: 60},
		Weekday: Rule{StartMinute: 17*60 + 30, EndMinute: 19*60 + 30, LateThresholdMinutes: 15, EarlyLoginMinutes: 60},
	}
}

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator(defaultSchedule(), eastern(t))
	require.NoError(t, err)
	return ev
}

func TestEvaluateScenarios(t *testing.T) {
	loc := eastern(t)
	ev := newTestEvaluator(t)

	// 2024-03-04 is a Monday, 2024-03-09 a Saturday.
	monday := func(hour, min int) time.Time {
		return time.Date(2024, 3, 4, hour, min, 0, 0, loc)
	}
	saturday := func(hour, min int) time.Time {
		return time.Date(2024, 3, 9, hour, min, 0, 0, loc)
	}

	tests := []struct {
		name        string
		classType   ClassType
		at          time.Time
		wantAllowed bool
		wantStatus  Status
		wantLate    int
		wantReason  Reason
		wantDayType DayType
		wantWait    int
	}{
		{
			name:        "weekday on time within early window",
			classType:   ClassWeekday,
			at:          monday(17, 0),
			wantAllowed: true,
			wantStatus:  StatusOnTime,
			wantDayType: DayWeekday,
		},
		{
			name:        "weekday too early",
			classType:   ClassWeekday,
			at:          monday(15, 30),
			wantReason:  ReasonTooEarly,
			wantDayType: DayWeekday,
			wantWait:    60,
		},
		{
			name:        "weekday late",
			classType:   ClassWeekday,
			at:          monday(17, 50),
			wantAllowed: true,
			wantStatus:  StatusLate,
			wantLate:    20,
			wantDayType: DayWeekday,
		},
		{
			name:        "weekday student on saturday",
			classType:   ClassWeekday,
			at:          saturday(17, 0),
			wantReason:  ReasonWrongDay,
			wantDayType: DayWeekend,
		},
		{
			name:        "weekend on time within early window",
			classType:   ClassWeekend,
			at:          saturday(11, 30),
			wantAllowed: true,
			wantStatus:  StatusOnTime,
			wantDayType: DayWeekend,
		},
		{
			name:        "weekend too early",
			classType:   ClassWeekend,
			at:          saturday(10, 30),
			wantReason:  ReasonTooEarly,
			wantDayType: DayWeekend,
			wantWait:    30,
		},
		{
			name:        "both on weekday",
			classType:   ClassBoth,
			at:          monday(17, 0),
			wantAllowed: true,
			wantStatus:  StatusOnTime,
			wantDayType: DayWeekday,
		},
		{
			name:        "both on weekend",
			classType:   ClassBoth,
			at:          saturday(11, 30),
			wantAllowed: true,
			wantStatus:  StatusOnTime,
			wantDayType: DayWeekend,
		},
		{
			name:        "weekday after class ended",
			classType:   ClassWeekday,
			at:          monday(19, 31),
			wantReason:  ReasonClassEnded,
			wantDayType: DayWeekday,
		},
		{
			name:        "weekend student on monday",
			classType:   ClassWeekend,
			at:          monday(12, 30),
			wantReason:  ReasonWrongDay,
			wantDayType: DayWeekday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ev.Evaluate(tt.classType, tt.at)
			assert.Equal(t, tt.wantAllowed, res.Allowed)
			assert.Equal(t, tt.wantDayType, res.DayType)
			if tt.wantAllowed {
				assert.Equal(t, tt.wantStatus, res.Status)
				assert.Equal(t, tt.wantLate, res.MinutesLate)
				assert.Empty(t, res.Reason)
			} else {
				assert.Equal(t, tt.wantReason, res.Reason)
				assert.Empty(t, res.Status)
				assert.Zero(t, res.MinutesLate)
			}
			if tt.wantReason == ReasonTooEarly {
				assert.Equal(t, tt.wantWait, res.WaitMinutes)
			}
		})
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	loc := eastern(t)
	ev := newTestEvaluator(t)
	at := func(hour, min int) time.Time {
		return time.Date(2024, 3, 4, hour, min, 0, 0, loc)
	}

	// Early-open boundary: 16:30 exactly is admitted, 16:29 is not.
	res := ev.Evaluate(ClassWeekday, at(16, 30))
	assert.True(t, res.Allowed)
	assert.Equal(t, StatusOnTime, res.Status)

	res = ev.Evaluate(ClassWeekday, at(16, 29))
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonTooEarly, res.Reason)
	assert.Equal(t, 1, res.WaitMinutes)

	// Late-threshold boundary: 17:45 exactly is still on time, 17:46 is late.
	res = ev.Evaluate(ClassWeekday, at(17, 45))
	assert.True(t, res.Allowed)
	assert.Equal(t, StatusOnTime, res.Status)
	assert.Zero(t, res.MinutesLate)

	res = ev.Evaluate(ClassWeekday, at(17, 46))
	assert.True(t, res.Allowed)
	assert.Equal(t, StatusLate, res.Status)
	assert.Equal(t, 16, res.MinutesLate)

	// End boundary: 19:30 exactly is admitted, 19:31 is rejected.
	res = ev.Evaluate(ClassWeekday, at(19, 30))
	assert.True(t, res.Allowed)
	assert.Equal(t, StatusLate, res.Status)
	assert.Equal(t, 120, res.MinutesLate)

	res = ev.Evaluate(ClassWeekday, at(19, 31))
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonClassEnded, res.Reason)
}

func TestEvaluateTransitionsExactlyOnce(t *testing.T) {
	loc := eastern(t)
	ev := newTestEvaluator(t)

	var transitions []string
	last := ""
	prevLate := -1
	for min := 16*60 + 30; min <= 19*60 + 45; min++ {
		res := ev.Evaluate(ClassWeekday, time.Date(2024, 3, 4, min/60, min%60, 0, 0, loc))
		state := "ended"
		if res.Allowed {
			state = string(res.Status)
			if res.Status == StatusLate {
				assert.Greater(t, res.MinutesLate, prevLate, "minutes late must strictly increase")
				prevLate = res.MinutesLate
			}
		}
		if state != last {
			transitions = append(transitions, state)
			last = state
		}
	}
	assert.Equal(t, []string{"on_time", "late", "ended"}, transitions)
}

func TestEvaluateUsesCivilTimeAcrossDST(t *testing.T) {
	ev := newTestEvaluator(t)

	// 2024-03-04 is under EST (UTC-5); 2024-07-01 is under EDT (UTC-4).
	// Both UTC instants correspond to 17:00 Eastern on a Monday.
	winter := time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC)
	summer := time.Date(2024, 7, 1, 21, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{winter, summer} {
		res := ev.Evaluate(ClassWeekday, at)
		assert.True(t, res.Allowed)
		assert.Equal(t, StatusOnTime, res.Status)
		assert.Equal(t, 17, res.LocalTime.Hour())
		assert.Equal(t, 0, res.LocalTime.Minute())
	}
}

func TestEvaluateBothNeverWrongDay(t *testing.T) {
	loc := eastern(t)
	ev := newTestEvaluator(t)

	// Sweep a full week at a fixed hour.
	for day := 4; day <= 10; day++ {
		res := ev.Evaluate(ClassBoth, time.Date(2024, 3, day, 9, 0, 0, 0, loc))
		assert.NotEqual(t, ReasonWrongDay, res.Reason)
	}
}

func TestEvaluateWrongDayCarriesRegisteredRule(t *testing.T) {
	loc := eastern(t)
	ev := newTestEvaluator(t)

	res := ev.Evaluate(ClassWeekend, time.Date(2024, 3, 4, 12, 30, 0, 0, loc))
	require.False(t, res.Allowed)
	assert.Equal(t, ReasonWrongDay, res.Reason)
	assert.Equal(t, DayWeekday, res.DayType)
	assert.Equal(t, defaultSchedule().Weekend, res.Rule)
}

func TestNewEvaluatorRejectsMalformedSchedule(t *testing.T) {
	loc := eastern(t)

	bad := defaultSchedule()
	bad.Weekday.StartMinute = bad.Weekday.EndMinute
	_, err := NewEvaluator(bad, loc)
	assert.Error(t, err)

	bad = defaultSchedule()
	bad.Weekend.EarlyLoginMinutes = -1
	_, err = NewEvaluator(bad, loc)
	assert.Error(t, err)

	_, err = NewEvaluator(defaultSchedule(), nil)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "00:00", want: 0},
		{raw: "12:00", want: 720},
		{raw: "17:30", want: 1050},
		{raw: "23:59", want: 1439},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "noon", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
