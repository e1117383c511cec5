package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhour/checkin-api/internal/dto"
	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
	appErrors "github.com/classhour/checkin-api/pkg/errors"
)

type stubStudentStore struct {
	byName  map[string]*models.Student
	created []*models.Student
}

func newStubStudentStore() *stubStudentStore {
	return &stubStudentStore{byName: map[string]*models.Student{}}
}

func (s *stubStudentStore) List(_ context.Context, _ models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (s *stubStudentStore) GetByID(_ context.Context, id string) (*models.Student, error) {
	for _, student := range s.byName {
		if student.ID == id {
			return student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubStudentStore) FindByName(_ context.Context, name string) (*models.Student, error) {
	if student, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubStudentStore) Create(_ context.Context, student *models.Student) error {
	student.ID = "s-" + student.FullName
	s.byName[strings.ToLower(student.FullName)] = student
	s.created = append(s.created, student)
	return nil
}

func (s *stubStudentStore) Update(_ context.Context, _ *models.Student) error { return nil }

func (s *stubStudentStore) Delete(_ context.Context, _ string) error { return nil }

func TestRosterCreate(t *testing.T) {
	store := newStubStudentStore()
	svc := NewRosterService(store, NewValidator(), nil)

	student, err := svc.Create(context.Background(), dto.CreateStudentRequest{
		FullName:  "  Ada Lovelace  ",
		ClassType: "weekday",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", student.FullName)
	assert.Equal(t, eligibility.ClassWeekday, student.ClassType)
	assert.True(t, student.Active)
}

func TestRosterCreateRejectsBadClassType(t *testing.T) {
	svc := NewRosterService(newStubStudentStore(), NewValidator(), nil)

	_, err := svc.Create(context.Background(), dto.CreateStudentRequest{
		FullName:  "Ada Lovelace",
		ClassType: "evenings",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRosterCreateRejectsDuplicateName(t *testing.T) {
	store := newStubStudentStore()
	svc := NewRosterService(store, NewValidator(), nil)

	_, err := svc.Create(context.Background(), dto.CreateStudentRequest{FullName: "Ada Lovelace", ClassType: "both"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), dto.CreateStudentRequest{FullName: "ada lovelace", ClassType: "weekend"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRosterImportCSV(t *testing.T) {
	store := newStubStudentStore()
	svc := NewRosterService(store, NewValidator(), nil)

	csv := strings.Join([]string{
		"full_name,class_type",
		"Ada Lovelace,weekday",
		"Grace Hopper,weekend",
		"Short,",
		"Katherine Johnson,both",
		"Ada Lovelace,weekday",
	}, "\n")

	result, err := svc.ImportCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 3, result.Created)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, 4, result.Failures[0].Line)
	assert.Equal(t, 6, result.Failures[1].Line)
	require.Len(t, store.created, 3)
}

func TestRosterImportCSVWithoutHeader(t *testing.T) {
	store := newStubStudentStore()
	svc := NewRosterService(store, NewValidator(), nil)

	result, err := svc.ImportCSV(context.Background(), strings.NewReader("Ada Lovelace,weekday\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Failures)
}
