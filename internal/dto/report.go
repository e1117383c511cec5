package dto

import (
	"time"

	"github.com/classhour/checkin-api/internal/models"
)

// WeeklyReportResponse is the synchronous JSON report for one week.
type WeeklyReportResponse struct {
	WeekNumber int                      `json:"week_number"`
	StartDate  string                   `json:"start_date"`
	EndDate    string                   `json:"end_date"`
	Rows       []models.WeeklyReportRow `json:"rows"`
}

// ReportExportRequest queues an asynchronous export.
type ReportExportRequest struct {
	WeekNumber int    `json:"week_number" validate:"required,min=1"`
	Format     string `json:"format" validate:"required,report_format"`
}

// ReportJobResponse acknowledges a queued export.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress to pollers.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
}
