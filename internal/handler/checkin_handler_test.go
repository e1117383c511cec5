package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhour/checkin-api/internal/dto"
	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
	"github.com/classhour/checkin-api/internal/service"
)

type fakeStudents struct {
	student *models.Student
}

func (f *fakeStudents) FindByName(_ context.Context, _ string) (*models.Student, error) {
	if f.student == nil {
		return nil, sql.ErrNoRows
	}
	return f.student, nil
}

type fakeCheckins struct {
	inserted bool
}

func (f *fakeCheckins) Insert(_ context.Context, record *models.CheckinRecord) (bool, error) {
	record.ID = "rec-1"
	return f.inserted, nil
}

func (f *fakeCheckins) List(_ context.Context, _ models.CheckinFilter) ([]models.CheckinRecordDetail, int, error) {
	return nil, 0, nil
}

type fakeDedup struct{ ok bool }

func (f *fakeDedup) SetNX(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	return f.ok, nil
}

func (f *fakeDedup) Delete(_ context.Context, _ string) error { return nil }

func newCheckinRouter(t *testing.T, student *models.Student, inserted, dedupOK bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	schedule := eligibility.Schedule{
		Weekend: eligibility.Rule{StartMinute: 720, EndMinute: 810, LateThresholdMinutes: 15, EarlyLoginMinutes: 60},
		Weekday: eligibility.Rule{StartMinute: 1050, EndMinute: 1170, LateThresholdMinutes: 15, EarlyLoginMinutes: 60},
	}
	ev, err := eligibility.NewEvaluator(schedule, loc)
	require.NoError(t, err)
	epoch, err := eligibility.ParseDate("2024-01-06", loc)
	require.NoError(t, err)

	svc := service.NewCheckinService(
		&fakeStudents{student: student},
		&fakeCheckins{inserted: inserted},
		&fakeDedup{ok: dedupOK},
		ev, epoch, time.Hour, nil, service.NewValidator(), nil,
	)

	router := gin.New()
	h := NewCheckinHandler(svc, nil, "development", nil)
	router.POST("/checkin", h.Checkin)
	return router
}

func postCheckin(t *testing.T, router *gin.Engine, name, pinned string) *httptest.ResponseRecorder {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at, err := time.ParseInLocation("2006-01-02 15:04", pinned, loc)
	require.NoError(t, err)

	body, err := json.Marshal(dto.CheckinRequest{Name: name, Timestamp: &at})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/checkin", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeCheckin(t *testing.T, rec *httptest.ResponseRecorder) dto.CheckinResponse {
	t.Helper()
	var envelope struct {
		Data dto.CheckinResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestCheckinEndpointOnTime(t *testing.T) {
	student := &models.Student{ID: "s-1", FullName: "Ada Lovelace", ClassType: eligibility.ClassWeekday, Active: true}
	router := newCheckinRouter(t, student, true, true)

	rec := postCheckin(t, router, "Ada Lovelace", "2024-03-04 17:40")
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeCheckin(t, rec)
	assert.True(t, resp.Allowed)
	assert.Equal(t, eligibility.StatusOnTime, resp.Status)
	assert.Equal(t, 9, resp.WeekNumber)
	assert.Equal(t, "rec-1", resp.RecordID)
	assert.NotEmpty(t, resp.Message)
}

func TestCheckinEndpointWrongDayIs200(t *testing.T) {
	student := &models.Student{ID: "s-1", FullName: "Grace Hopper", ClassType: eligibility.ClassWeekend, Active: true}
	router := newCheckinRouter(t, student, true, true)

	rec := postCheckin(t, router, "Grace Hopper", "2024-03-04 12:30")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeCheckin(t, rec)
	assert.False(t, resp.Allowed)
	assert.Equal(t, eligibility.ReasonWrongDay, resp.Reason)
	assert.Empty(t, resp.RecordID)
}

func TestCheckinEndpointUnknownStudentIs404(t *testing.T) {
	router := newCheckinRouter(t, nil, true, true)

	rec := postCheckin(t, router, "Nobody Here", "2024-03-04 17:40")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckinEndpointDuplicateIs409(t *testing.T) {
	student := &models.Student{ID: "s-1", FullName: "Ada Lovelace", ClassType: eligibility.ClassWeekday, Active: true}
	router := newCheckinRouter(t, student, true, false)

	rec := postCheckin(t, router, "Ada Lovelace", "2024-03-04 17:40")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckinEndpointRejectsMalformedBody(t *testing.T) {
	student := &models.Student{ID: "s-1", FullName: "Ada Lovelace", ClassType: eligibility.ClassWeekday, Active: true}
	router := newCheckinRouter(t, student, true, true)

	req := httptest.NewRequest(http.MethodPost, "/checkin", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
