package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
)

func TestCheckinRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCheckinRepository(db)

	mock.ExpectExec("INSERT INTO checkins").
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.CheckinRecord{
		StudentID:   "s-1",
		CheckinAt:   time.Now(),
		CheckinDate: time.Now().Truncate(24 * time.Hour),
		DayType:     eligibility.DayWeekday,
		Status:      eligibility.StatusOnTime,
		WeekNumber:  3,
	}
	inserted, err := repo.Insert(context.Background(), record)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckinRepositoryInsertDuplicateIsNotAnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCheckinRepository(db)

	// ON CONFLICT DO NOTHING reports zero affected rows for duplicates.
	mock.ExpectExec("INSERT INTO checkins").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Insert(context.Background(), &models.CheckinRecord{StudentID: "s-1"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckinRepositoryExistsForDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCheckinRepository(db)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("s-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsForDate(context.Background(), "s-1", date)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckinRepositoryListFiltersByWeek(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCheckinRepository(db)

	week := 3
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "checkin_at", "checkin_date", "day_type", "status", "minutes_late", "week_number", "created_at",
		"student_name", "student_class_type",
	}).AddRow("c-1", "s-1", time.Now(), time.Now(), "weekday", "late", 20, 3, time.Now(), "Ada Lovelace", "weekday")

	mock.ExpectQuery("SELECT a.id, a.student_id").
		WithArgs(week).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(week).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.CheckinFilter{WeekNumber: &week})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, eligibility.StatusLate, records[0].Status)
	assert.Equal(t, 20, records[0].MinutesLate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckinRepositoryWeeklyReport(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCheckinRepository(db)

	from := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 6)
	rows := sqlmock.NewRows([]string{"student_id", "student_name", "class_type", "checkins", "on_time", "late", "minutes_late"}).
		AddRow("s-1", "Ada Lovelace", "weekday", 4, 3, 1, 12).
		AddRow("s-2", "Grace Hopper", "weekend", 0, 0, 0, 0)

	mock.ExpectQuery("SELECT s.id AS student_id").
		WithArgs(from, to).
		WillReturnRows(rows)

	report, err := repo.WeeklyReport(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, 4, report[0].Checkins)
	assert.Zero(t, report[1].Checkins, "students with no check-ins still appear")
	assert.NoError(t, mock.ExpectationsWereMet())
}
