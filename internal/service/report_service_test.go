package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhour/checkin-api/internal/dto"
	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
	"github.com/classhour/checkin-api/internal/repository"
	appErrors "github.com/classhour/checkin-api/pkg/errors"
	"github.com/classhour/checkin-api/pkg/jobs"
	"github.com/classhour/checkin-api/pkg/storage"
)

type stubWeeklyReporter struct {
	rows  []models.WeeklyReportRow
	from  time.Time
	to    time.Time
	calls int
}

func (s *stubWeeklyReporter) WeeklyReport(_ context.Context, from, to time.Time) ([]models.WeeklyReportRow, error) {
	s.calls++
	s.from, s.to = from, to
	return s.rows, nil
}

type stubReportCache struct {
	data map[string][]byte
}

func newStubReportCache() *stubReportCache {
	return &stubReportCache{data: map[string][]byte{}}
}

func (s *stubReportCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubReportCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

func (s *stubReportCache) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range s.data {
		if strings.HasPrefix(key, strings.TrimSuffix(pattern, "*")) {
			delete(s.data, key)
		}
	}
	return nil
}

type stubJobStore struct {
	jobs map[string]*models.ReportJob
	seq  int
}

func newStubJobStore() *stubJobStore {
	return &stubJobStore{jobs: map[string]*models.ReportJob{}}
}

func (s *stubJobStore) Create(_ context.Context, job *models.ReportJob) error {
	s.seq++
	if job.ID == "" {
		job.ID = "job-" + strconv.Itoa(s.seq)
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *stubJobStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, errNoJob
	}
	copied := *job
	return &copied, nil
}

func (s *stubJobStore) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := s.jobs[id]
	if !ok {
		return errNoJob
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.StartedAt != nil {
		job.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *stubJobStore) ListFinishedBefore(_ context.Context, _ time.Time, _ int) ([]models.ReportJob, error) {
	return nil, nil
}

var errNoJob = assert.AnError

func newReportFixture(t *testing.T, reporter *stubWeeklyReporter) (*ReportService, *stubJobStore, *stubReportCache) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	epoch, err := eligibility.ParseDate("2024-01-06", loc)
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-test-secret", time.Hour)

	jobsRepo := newStubJobStore()
	cache := newStubReportCache()
	svc := NewReportService(reporter, jobsRepo, cache, nil, store, signer, ReportServiceConfig{
		Epoch:    epoch,
		Location: loc,
		Workers:  1,
	}, NewValidator(), nil)
	return svc, jobsRepo, cache
}

func TestWeeklyUsesProgramWeekDateRange(t *testing.T) {
	reporter := &stubWeeklyReporter{rows: []models.WeeklyReportRow{
		{StudentID: "s-1", StudentName: "Ada Lovelace", ClassType: eligibility.ClassWeekday, Checkins: 4, OnTime: 3, Late: 1, MinutesLate: 12},
	}}
	svc, _, _ := newReportFixture(t, reporter)

	resp, err := svc.Weekly(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, resp.WeekNumber)
	assert.Equal(t, "2024-01-20", resp.StartDate)
	assert.Equal(t, "2024-01-26", resp.EndDate)
	assert.Equal(t, "2024-01-20", reporter.from.Format(eligibility.DateLayout))
	assert.Equal(t, "2024-01-26", reporter.to.Format(eligibility.DateLayout))
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, 4, resp.Rows[0].Checkins)
}

func TestWeeklyServesSecondCallFromCache(t *testing.T) {
	reporter := &stubWeeklyReporter{}
	svc, _, _ := newReportFixture(t, reporter)

	_, err := svc.Weekly(context.Background(), 2)
	require.NoError(t, err)
	_, err = svc.Weekly(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, 1, reporter.calls)
}

func TestWeeklyRejectsWeekZero(t *testing.T) {
	svc, _, _ := newReportFixture(t, &stubWeeklyReporter{})

	_, err := svc.Weekly(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInvalidateWeekDropsCachedReport(t *testing.T) {
	reporter := &stubWeeklyReporter{}
	svc, _, cache := newReportFixture(t, reporter)

	_, err := svc.Weekly(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, cache.data, 1)

	loc, _ := time.LoadLocation("America/New_York")
	svc.InvalidateWeek(context.Background(), time.Date(2024, 3, 4, 17, 40, 0, 0, loc))
	assert.Empty(t, cache.data)
}

func TestCreateExportQueuesJob(t *testing.T) {
	svc, jobsRepo, _ := newReportFixture(t, &stubWeeklyReporter{})

	resp, err := svc.CreateExport(context.Background(), dto.ReportExportRequest{WeekNumber: 3, Format: "csv"}, "u-1")
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	stored, err := jobsRepo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.WeekNumber)
	assert.Equal(t, models.ReportFormatCSV, stored.Format)
	assert.Equal(t, "u-1", stored.CreatedBy)
}

func TestCreateExportRejectsBadFormat(t *testing.T) {
	svc, _, _ := newReportFixture(t, &stubWeeklyReporter{})

	_, err := svc.CreateExport(context.Background(), dto.ReportExportRequest{WeekNumber: 3, Format: "xlsx"}, "u-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProcessJobCompletesCSVExport(t *testing.T) {
	reporter := &stubWeeklyReporter{rows: []models.WeeklyReportRow{
		{StudentID: "s-1", StudentName: "Ada Lovelace", ClassType: eligibility.ClassWeekday, Checkins: 2, OnTime: 1, Late: 1, MinutesLate: 25},
	}}
	svc, jobsRepo, _ := newReportFixture(t, reporter)

	resp, err := svc.CreateExport(context.Background(), dto.ReportExportRequest{WeekNumber: 3, Format: "csv"}, "u-1")
	require.NoError(t, err)

	err = svc.processJob(context.Background(), jobs.Job{ID: resp.ID, Type: "weekly-export", Payload: resp.ID})
	require.NoError(t, err)

	job, err := jobsRepo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	require.NotNil(t, job.FilePath)

	token := strings.TrimPrefix(*job.ResultURL, "/api/v1/reports/download/")
	file, downloaded, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, job.ID, downloaded.ID)
}

func TestDownloadRejectsTamperedToken(t *testing.T) {
	svc, _, _ := newReportFixture(t, &stubWeeklyReporter{})

	_, _, err := svc.Download(context.Background(), "job-1.9999999999.cGF0aA.deadbeef")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStatusReportsProgress(t *testing.T) {
	svc, _, _ := newReportFixture(t, &stubWeeklyReporter{})

	resp, err := svc.CreateExport(context.Background(), dto.ReportExportRequest{WeekNumber: 2, Format: "pdf"}, "u-1")
	require.NoError(t, err)

	status, err := svc.Status(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, status.Status)
	assert.Nil(t, status.ResultURL)
}
