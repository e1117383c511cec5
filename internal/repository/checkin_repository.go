package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classhour/checkin-api/internal/models"
)

// CheckinRepository handles persistence for attendance events.
type CheckinRepository struct {
	db *sqlx.DB
}

// NewCheckinRepository constructs the repository.
func NewCheckinRepository(db *sqlx.DB) *CheckinRepository {
	return &CheckinRepository{db: db}
}

// Insert stores a check-in. It returns false without error when the student
// already has a record for the same civil date; the unique index on
// (student_id, checkin_date) is the source of truth for duplicates.
func (r *CheckinRepository) Insert(ctx context.Context, record *models.CheckinRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = time.Now().UTC()
	query := `INSERT INTO checkins (id, student_id, checkin_at, checkin_date, day_type, status, minutes_late, week_number, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (student_id, checkin_date) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query,
		record.ID, record.StudentID, record.CheckinAt, record.CheckinDate,
		record.DayType, record.Status, record.MinutesLate, record.WeekNumber, record.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert checkin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert checkin rows: %w", err)
	}
	return affected > 0, nil
}

// ExistsForDate reports whether the student already checked in on the date.
func (r *CheckinRepository) ExistsForDate(ctx context.Context, studentID string, date time.Time) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM checkins WHERE student_id = $1 AND checkin_date = $2"
	if err := r.db.GetContext(ctx, &count, query, studentID, date); err != nil {
		return false, fmt.Errorf("check existing checkin: %w", err)
	}
	return count > 0, nil
}

// List returns attendance events matching the filter, with student metadata.
func (r *CheckinRepository) List(ctx context.Context, filter models.CheckinFilter) ([]models.CheckinRecordDetail, int, error) {
	base := "FROM checkins a JOIN students s ON s.id = a.student_id"
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.WeekNumber != nil {
		conditions = append(conditions, fmt.Sprintf("a.week_number = $%d", len(args)+1))
		args = append(args, *filter.WeekNumber)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.checkin_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.checkin_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"checkin_at":   "a.checkin_at",
		"status":       "a.status",
		"student_name": "s.full_name",
	}
	if sortBy == "" {
		sortBy = "checkin_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "a.checkin_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.checkin_at, a.checkin_date, a.day_type, a.status, a.minutes_late, a.week_number, a.created_at,
        s.full_name AS student_name, s.class_type AS student_class_type
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var records []models.CheckinRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list checkins: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count checkins: %w", err)
	}
	return records, total, nil
}

// WeeklyReport aggregates per-student attendance inside the date span.
// Every active student appears, including those with no check-ins.
func (r *CheckinRepository) WeeklyReport(ctx context.Context, from, to time.Time) ([]models.WeeklyReportRow, error) {
	query := `SELECT s.id AS student_id, s.full_name AS student_name, s.class_type,
        COUNT(a.id) AS checkins,
        COUNT(a.id) FILTER (WHERE a.status = 'on_time') AS on_time,
        COUNT(a.id) FILTER (WHERE a.status = 'late') AS late,
        COALESCE(SUM(a.minutes_late), 0) AS minutes_late
        FROM students s
        LEFT JOIN checkins a ON a.student_id = s.id AND a.checkin_date BETWEEN $1 AND $2
        WHERE s.active = TRUE
        GROUP BY s.id, s.full_name, s.class_type
        ORDER BY s.full_name ASC`
	var rows []models.WeeklyReportRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("weekly report: %w", err)
	}
	return rows, nil
}
