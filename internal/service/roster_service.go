package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classhour/checkin-api/internal/dto"
	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
	appErrors "github.com/classhour/checkin-api/pkg/errors"
)

// StudentStore is the roster persistence surface used by RosterService.
type StudentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	GetByID(ctx context.Context, id string) (*models.Student, error)
	FindByName(ctx context.Context, name string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// RosterService manages the student roster.
type RosterService struct {
	students  StudentStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs the service.
func NewRosterService(students StudentStore, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &RosterService{students: students, validator: validate, logger: logger}
}

// List returns roster entries with pagination metadata.
func (s *RosterService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("list students: %w", err)
	}

	return students, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	}, nil
}

// Get fetches one student by id.
func (s *RosterService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}
	return student, nil
}

// Create adds a student to the roster. Names are unique case-insensitively
// because check-in resolves students by name alone.
func (s *RosterService) Create(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	name := strings.TrimSpace(req.FullName)
	if existing, err := s.students.FindByName(ctx, name); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this name is already on the roster")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check roster for %q: %w", name, err)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	student := &models.Student{
		FullName:  name,
		ClassType: eligibility.ClassType(req.ClassType),
		Active:    active,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	s.logger.Info("student added",
		zap.String("student_id", student.ID),
		zap.String("class_type", string(student.ClassType)),
	)
	return student, nil
}

// Update applies the non-nil fields to a roster entry.
func (s *RosterService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if !strings.EqualFold(name, student.FullName) {
			if existing, err := s.students.FindByName(ctx, name); err == nil && existing != nil && existing.ID != id {
				return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this name is already on the roster")
			} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("check roster for %q: %w", name, err)
			}
		}
		student.FullName = name
	}
	if req.ClassType != nil {
		student.ClassType = eligibility.ClassType(*req.ClassType)
	}
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.students.Update(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("update student %s: %w", id, err)
	}
	return student, nil
}

// Delete removes a roster entry. Attendance history is kept.
func (s *RosterService) Delete(ctx context.Context, id string) error {
	if err := s.students.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return fmt.Errorf("delete student %s: %w", id, err)
	}
	s.logger.Info("student removed", zap.String("student_id", id))
	return nil
}

// ImportCSV bulk-loads roster rows of the form "full_name,class_type". A
// header row is skipped when detected. Rows fail individually; one bad line
// never aborts the rest of the file.
func (s *RosterService) ImportCSV(ctx context.Context, r io.Reader) (*dto.ImportRosterResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &dto.ImportRosterResult{}
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Failures = append(result.Failures, dto.ImportRowFailure{Line: line, Reason: "malformed CSV row"})
			continue
		}
		if line == 1 && len(row) >= 1 && strings.EqualFold(strings.TrimSpace(row[0]), "full_name") {
			continue
		}
		result.Processed++

		if len(row) < 2 {
			result.Failures = append(result.Failures, dto.ImportRowFailure{Line: line, Reason: "expected columns: full_name, class_type"})
			continue
		}

		req := dto.CreateStudentRequest{
			FullName:  strings.TrimSpace(row[0]),
			ClassType: strings.ToLower(strings.TrimSpace(row[1])),
		}
		if _, err := s.Create(ctx, req); err != nil {
			result.Failures = append(result.Failures, dto.ImportRowFailure{Line: line, Reason: appErrors.FromError(err).Message})
			continue
		}
		result.Created++
	}

	s.logger.Info("roster import finished",
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("failed", len(result.Failures)),
	)
	return result, nil
}
