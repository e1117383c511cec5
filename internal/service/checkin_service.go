package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classhour/checkin-api/internal/dto"
	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
	appErrors "github.com/classhour/checkin-api/pkg/errors"
)

// StudentFinder resolves roster entries for the check-in flow.
type StudentFinder interface {
	FindByName(ctx context.Context, name string) (*models.Student, error)
}

// CheckinStore persists and queries attendance records.
type CheckinStore interface {
	Insert(ctx context.Context, record *models.CheckinRecord) (bool, error)
	List(ctx context.Context, filter models.CheckinFilter) ([]models.CheckinRecordDetail, int, error)
}

// DedupCache is the fast path for same-day duplicate suppression. The unique
// constraint on (student_id, checkin_date) remains the source of truth.
type DedupCache interface {
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// CheckinService orchestrates the student check-in flow: roster lookup,
// eligibility evaluation at a single instant, duplicate suppression and
// record persistence.
type CheckinService struct {
	students  StudentFinder
	checkins  CheckinStore
	cache     DedupCache
	evaluator *eligibility.Evaluator
	epoch     time.Time
	dedupTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCheckinService constructs the service. The epoch is the local calendar
// date that anchors week one of the program.
func NewCheckinService(
	students StudentFinder,
	checkins CheckinStore,
	cache DedupCache,
	evaluator *eligibility.Evaluator,
	epoch time.Time,
	dedupTTL time.Duration,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *CheckinService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if dedupTTL <= 0 {
		dedupTTL = 12 * time.Hour
	}
	return &CheckinService{
		students:  students,
		checkins:  checkins,
		cache:     cache,
		evaluator: evaluator,
		epoch:     epoch,
		dedupTTL:  dedupTTL,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Checkin evaluates one attempt at the given instant. A denied attempt is not
// an error: the decision comes back in the response with Allowed=false and a
// machine-readable Reason. Errors are reserved for unknown students,
// duplicates and infrastructure failures.
func (s *CheckinService) Checkin(ctx context.Context, req dto.CheckinRequest, at time.Time) (*dto.CheckinResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name is required")
	}

	name := strings.TrimSpace(req.Name)
	student, err := s.students.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUnknownStudent
		}
		return nil, fmt.Errorf("find student %q: %w", name, err)
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrUnknownStudent, "student is no longer active")
	}

	res := s.evaluator.Evaluate(student.ClassType, at)
	week := eligibility.WeekNumber(res.LocalTime, s.epoch, s.evaluator.Location())
	if s.metrics != nil {
		s.metrics.RecordEvaluation(res)
	}

	resp := &dto.CheckinResponse{
		Allowed:     res.Allowed,
		DayType:     res.DayType,
		Status:      res.Status,
		MinutesLate: res.MinutesLate,
		Reason:      res.Reason,
		WaitMinutes: res.WaitMinutes,
		Message:     eligibility.Message(res, student.ClassType),
		LocalTime:   res.LocalTime,
		WeekNumber:  week,
	}

	if !res.Allowed {
		s.logger.Info("check-in denied",
			zap.String("student_id", student.ID),
			zap.String("reason", string(res.Reason)),
		)
		return resp, nil
	}

	local := res.LocalTime
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.evaluator.Location())
	dedupKey := fmt.Sprintf("checkin:dedup:%s:%s", student.ID, date.Format(eligibility.DateLayout))

	if s.cache != nil {
		ok, err := s.cache.SetNX(ctx, dedupKey, local.Format(time.RFC3339), s.dedupTTL)
		if err != nil {
			// Cache trouble must not block check-ins; the unique index catches
			// duplicates anyway.
			s.logger.Warn("dedup cache unavailable", zap.Error(err))
		} else if !ok {
			return nil, appErrors.ErrDuplicateCheckin
		}
	}

	record := &models.CheckinRecord{
		StudentID:   student.ID,
		CheckinAt:   local,
		CheckinDate: date,
		DayType:     res.DayType,
		Status:      res.Status,
		MinutesLate: res.MinutesLate,
		WeekNumber:  week,
	}
	inserted, err := s.checkins.Insert(ctx, record)
	if err != nil {
		if s.cache != nil {
			if delErr := s.cache.Delete(ctx, dedupKey); delErr != nil {
				s.logger.Warn("dedup key rollback failed", zap.Error(delErr))
			}
		}
		return nil, fmt.Errorf("persist check-in for %s: %w", student.ID, err)
	}
	if !inserted {
		return nil, appErrors.ErrDuplicateCheckin
	}

	resp.RecordID = record.ID
	s.logger.Info("check-in recorded",
		zap.String("student_id", student.ID),
		zap.String("record_id", record.ID),
		zap.String("status", string(res.Status)),
		zap.Int("week", week),
	)
	return resp, nil
}

// List returns attendance records for the admin surface.
func (s *CheckinService) List(ctx context.Context, filter models.CheckinFilter) ([]models.CheckinRecordDetail, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	records, total, err := s.checkins.List(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("list check-ins: %w", err)
	}

	return records, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	}, nil
}
