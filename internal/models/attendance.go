package models

import (
	"time"

	"github.com/classhour/checkin-api/internal/eligibility"
)

// CheckinRecord is a persisted attendance event. The local timestamp, day
// type, status and week number are extracted from the evaluation result at
// check-in time; the record itself is owned by storage.
type CheckinRecord struct {
	ID          string              `db:"id" json:"id"`
	StudentID   string              `db:"student_id" json:"student_id"`
	CheckinAt   time.Time           `db:"checkin_at" json:"checkin_at"`
	CheckinDate time.Time           `db:"checkin_date" json:"checkin_date"`
	DayType     eligibility.DayType `db:"day_type" json:"day_type"`
	Status      eligibility.Status  `db:"status" json:"status"`
	MinutesLate int                 `db:"minutes_late" json:"minutes_late"`
	WeekNumber  int                 `db:"week_number" json:"week_number"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
}

// CheckinRecordDetail extends the record with student metadata for listings.
type CheckinRecordDetail struct {
	CheckinRecord
	StudentName      string                `db:"student_name" json:"student_name"`
	StudentClassType eligibility.ClassType `db:"student_class_type" json:"student_class_type"`
}

// CheckinFilter defines query filters for attendance listings.
type CheckinFilter struct {
	StudentID  string
	WeekNumber *int
	Status     *eligibility.Status
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// WeeklyReportRow aggregates one student's attendance inside a report week.
type WeeklyReportRow struct {
	StudentID   string                `db:"student_id" json:"student_id"`
	StudentName string                `db:"student_name" json:"student_name"`
	ClassType   eligibility.ClassType `db:"class_type" json:"class_type"`
	Checkins    int                   `db:"checkins" json:"checkins"`
	OnTime      int                   `db:"on_time" json:"on_time"`
	Late        int                   `db:"late" json:"late"`
	MinutesLate int                   `db:"minutes_late" json:"minutes_late"`
}
