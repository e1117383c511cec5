package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classhour/checkin-api/internal/dto"
	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
	"github.com/classhour/checkin-api/internal/repository"
	appErrors "github.com/classhour/checkin-api/pkg/errors"
	"github.com/classhour/checkin-api/pkg/export"
	"github.com/classhour/checkin-api/pkg/jobs"
	"github.com/classhour/checkin-api/pkg/storage"
)

// WeeklyReporter aggregates attendance rows for a date window.
type WeeklyReporter interface {
	WeeklyReport(ctx context.Context, from, to time.Time) ([]models.WeeklyReportRow, error)
}

// ReportJobStore persists export job lifecycle state.
type ReportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

// ReportCache caches rendered weekly reports.
type ReportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ReportServiceConfig tunes caching, worker and signed URL behaviour.
type ReportServiceConfig struct {
	Epoch        time.Time
	Location     *time.Location
	CacheTTL     time.Duration
	SignedURLTTL time.Duration
	Workers      int
	Retries      int
	DownloadPath string
}

// ReportService produces weekly attendance reports, both synchronously as
// JSON and asynchronously as downloadable CSV/PDF exports.
type ReportService struct {
	checkins WeeklyReporter
	jobsRepo ReportJobStore
	cache    ReportCache
	metrics  *MetricsService

	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	queue   *jobs.Queue

	epoch        time.Time
	loc          *time.Location
	cacheTTL     time.Duration
	urlTTL       time.Duration
	downloadPath string

	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs the service and its export worker queue. Call
// Start to begin processing queued exports and Stop on shutdown.
func NewReportService(
	checkins WeeklyReporter,
	jobsRepo ReportJobStore,
	cache ReportCache,
	metrics *MetricsService,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	cfg ReportServiceConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 24 * time.Hour
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/reports/download"
	}

	s := &ReportService{
		checkins:     checkins,
		jobsRepo:     jobsRepo,
		cache:        cache,
		metrics:      metrics,
		storage:      store,
		signer:       signer,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		epoch:        cfg.Epoch,
		loc:          cfg.Location,
		cacheTTL:     cfg.CacheTTL,
		urlTTL:       cfg.SignedURLTTL,
		downloadPath: cfg.DownloadPath,
		validator:    validate,
		logger:       logger,
	}
	s.queue = jobs.NewQueue("report-export", s.processJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ReportService) Start() { s.queue.Start() }

// Stop drains the export queue.
func (s *ReportService) Stop() { s.queue.Stop() }

// CurrentWeek returns the program week containing the given instant.
func (s *ReportService) CurrentWeek(at time.Time) int {
	return eligibility.WeekNumber(at, s.epoch, s.loc)
}

// Weekly returns the JSON report for one program week, served from cache when
// fresh.
func (s *ReportService) Weekly(ctx context.Context, week int) (*dto.WeeklyReportResponse, error) {
	if week < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "week number must be at least 1")
	}

	cacheKey := fmt.Sprintf("report:week:%d", week)
	if s.cache != nil {
		start := time.Now()
		var cached dto.WeeklyReportResponse
		err := s.cache.Get(ctx, cacheKey, &cached)
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		}
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("report cache read failed", zap.Error(err))
		}
	}

	resp, err := s.generate(ctx, week)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		start := time.Now()
		if err := s.cache.Set(ctx, cacheKey, resp, s.cacheTTL); err != nil {
			s.logger.Warn("report cache write failed", zap.Error(err))
		} else if s.metrics != nil {
			s.metrics.ObserveCacheWrite(time.Since(start))
		}
	}
	return resp, nil
}

func (s *ReportService) generate(ctx context.Context, week int) (*dto.WeeklyReportResponse, error) {
	from, to := eligibility.WeekDateRange(week, s.epoch, s.loc)
	rows, err := s.checkins.WeeklyReport(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate week %d: %w", week, err)
	}
	return &dto.WeeklyReportResponse{
		WeekNumber: week,
		StartDate:  from.Format(eligibility.DateLayout),
		EndDate:    to.Format(eligibility.DateLayout),
		Rows:       rows,
	}, nil
}

// InvalidateWeek drops the cached report for the week containing the given
// local time. Called after each successful check-in.
func (s *ReportService) InvalidateWeek(ctx context.Context, local time.Time) {
	if s.cache == nil {
		return
	}
	week := eligibility.WeekNumber(local, s.epoch, s.loc)
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("report:week:%d", week)); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Int("week", week), zap.Error(err))
	}
}

// CreateExport queues an asynchronous export of one week.
func (s *ReportService) CreateExport(ctx context.Context, req dto.ReportExportRequest, createdBy string) (*dto.ReportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}

	job := &models.ReportJob{
		WeekNumber: req.WeekNumber,
		Format:     models.ReportFormat(req.Format),
		Status:     models.ReportStatusQueued,
		CreatedBy:  createdBy,
	}
	if err := s.jobsRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "weekly-export", Payload: job.ID}); err != nil {
		msg := err.Error()
		failed := models.ReportStatusFailed
		now := time.Now().UTC()
		if updErr := s.jobsRepo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updErr != nil {
			s.logger.Error("mark job failed", zap.String("job_id", job.ID), zap.Error(updErr))
		}
		return nil, appErrors.Wrap(err, "EXPORT_QUEUE_FULL", 503, "export queue is busy, retry shortly")
	}

	s.logger.Info("export queued",
		zap.String("job_id", job.ID),
		zap.Int("week", job.WeekNumber),
		zap.String("format", string(job.Format)),
	)
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// Status reports the lifecycle of one export job.
func (s *ReportService) Status(ctx context.Context, id string) (*dto.ReportStatusResponse, error) {
	job, err := s.jobsRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get export job %s: %w", id, err)
	}

	resp := &dto.ReportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}
	if job.Status == models.ReportStatusCompleted && job.FinishedAt != nil {
		expires := job.FinishedAt.Add(s.urlTTL)
		resp.ExpiresAt = &expires
	}
	return resp, nil
}

// Download validates a signed token and opens the export file it references.
func (s *ReportService) Download(ctx context.Context, token string) (*os.File, *models.ReportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download link")
	}

	job, err := s.jobsRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, fmt.Errorf("get export job %s: %w", jobID, err)
	}
	if job.FilePath == nil || *job.FilePath != relPath {
		return nil, nil, appErrors.ErrNotFound
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file no longer available")
	}
	return file, job, nil
}

// Cleanup removes export files whose signed URLs have expired.
func (s *ReportService) Cleanup(ctx context.Context) error {
	cutoff := time.Now().Add(-s.urlTTL)
	expired, err := s.jobsRepo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		return err
	}
	for _, job := range expired {
		if job.FilePath == nil {
			continue
		}
		if err := s.storage.Delete(*job.FilePath); err != nil {
			s.logger.Warn("delete expired export", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.urlTTL); err != nil {
		return err
	}
	return nil
}

func (s *ReportService) processJob(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok || jobID == "" {
		return fmt.Errorf("export job payload missing id")
	}

	record, err := s.jobsRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}

	processing := models.ReportStatusProcessing
	started := time.Now().UTC()
	progress := 10
	if err := s.jobsRepo.Update(ctx, jobID, repository.UpdateReportJobParams{
		Status:    &processing,
		Progress:  &progress,
		StartedAt: &started,
	}); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	report, err := s.generate(ctx, record.WeekNumber)
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}

	data := buildReportDataset(report)
	var payload []byte
	switch record.Format {
	case models.ReportFormatPDF:
		title := fmt.Sprintf("Weekly Attendance Report: Week %d (%s to %s)", report.WeekNumber, report.StartDate, report.EndDate)
		payload, err = s.pdf.Render(data, title)
	default:
		payload, err = s.csv.Render(data)
	}
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}

	filename := fmt.Sprintf("weekly-report-w%02d-%s.%s", record.WeekNumber, record.ID, record.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}

	token, _, err := s.signer.Generate(record.ID, relPath)
	if err != nil {
		return s.failJob(ctx, jobID, err)
	}
	resultURL := s.downloadPath + "/" + token

	completed := models.ReportStatusCompleted
	finished := time.Now().UTC()
	done := 100
	if err := s.jobsRepo.Update(ctx, jobID, repository.UpdateReportJobParams{
		Status:     &completed,
		Progress:   &done,
		FilePath:   &relPath,
		ResultURL:  &resultURL,
		FinishedAt: &finished,
	}); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	s.logger.Info("export completed",
		zap.String("job_id", jobID),
		zap.Int("week", record.WeekNumber),
		zap.String("file", relPath),
	)
	return nil
}

func (s *ReportService) failJob(ctx context.Context, jobID string, cause error) error {
	msg := cause.Error()
	failed := models.ReportStatusFailed
	finished := time.Now().UTC()
	if err := s.jobsRepo.Update(ctx, jobID, repository.UpdateReportJobParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &finished,
	}); err != nil {
		s.logger.Error("mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
	return cause
}

func buildReportDataset(report *dto.WeeklyReportResponse) export.Dataset {
	headers := []string{"Student", "Class Type", "Check-ins", "On Time", "Late", "Minutes Late"}
	rows := make([]map[string]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, map[string]string{
			"Student":      row.StudentName,
			"Class Type":   string(row.ClassType),
			"Check-ins":    strconv.Itoa(row.Checkins),
			"On Time":      strconv.Itoa(row.OnTime),
			"Late":         strconv.Itoa(row.Late),
			"Minutes Late": strconv.Itoa(row.MinutesLate),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
