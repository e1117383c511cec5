package dto

import (
	"time"

	"github.com/classhour/checkin-api/internal/eligibility"
)

// CheckinRequest is the payload students submit from the kiosk page.
// Timestamp is honoured only outside production so tests and demos can pin
// the evaluation instant.
type CheckinRequest struct {
	Name      string     `json:"name" validate:"required,min=2"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// CheckinResponse reports the admission decision for one check-in attempt.
// Reason and the numeric fields are the contract; Message is display only.
type CheckinResponse struct {
	Allowed     bool                `json:"allowed"`
	DayType     eligibility.DayType `json:"day_type"`
	Status      eligibility.Status  `json:"status,omitempty"`
	MinutesLate int                 `json:"minutes_late"`
	Reason      eligibility.Reason  `json:"reason,omitempty"`
	WaitMinutes int                 `json:"wait_minutes,omitempty"`
	Message     string              `json:"message"`
	LocalTime   time.Time           `json:"local_time"`
	WeekNumber  int                 `json:"week_number,omitempty"`
	RecordID    string              `json:"record_id,omitempty"`
}
