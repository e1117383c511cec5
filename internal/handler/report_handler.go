package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classhour/checkin-api/internal/dto"
	"github.com/classhour/checkin-api/internal/middleware"
	"github.com/classhour/checkin-api/internal/models"
	"github.com/classhour/checkin-api/internal/service"
	appErrors "github.com/classhour/checkin-api/pkg/errors"
	"github.com/classhour/checkin-api/pkg/response"
)

// ReportHandler serves weekly attendance reports and export jobs.
type ReportHandler struct {
	reports *service.ReportService
	logger  *zap.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports *service.ReportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, logger: logger}
}

// Weekly godoc
// @Summary      Weekly attendance report
// @Description  Aggregated attendance for one program week; defaults to the current week
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        week query int false "Program week number"
// @Success      200 {object} response.Envelope{data=dto.WeeklyReportResponse}
// @Router       /reports/weekly [get]
func (h *ReportHandler) Weekly(c *gin.Context) {
	week := h.reports.CurrentWeek(time.Now())
	if raw := c.Query("week"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "week must be a positive integer"))
			return
		}
		week = parsed
	}

	report, err := h.reports.Weekly(c.Request.Context(), week)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary      Queue a report export
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.ReportExportRequest true "Export request"
// @Success      202 {object} response.Envelope{data=dto.ReportJobResponse}
// @Router       /reports/export [post]
func (h *ReportHandler) Export(c *gin.Context) {
	var req dto.ReportExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request"))
		return
	}

	createdBy := ""
	if claims := middleware.ClaimsFrom(c); claims != nil {
		createdBy = claims.UserID
	}

	job, err := h.reports.CreateExport(c.Request.Context(), req, createdBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary      Export job status
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job ID"
// @Success      200 {object} response.Envelope{data=dto.ReportStatusResponse}
// @Failure      404 {object} response.Envelope
// @Router       /reports/jobs/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	status, err := h.reports.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary      Download a finished export
// @Description  The signed token in the path is the sole credential
// @Tags         reports
// @Produce      application/octet-stream
// @Param        token path string true "Signed download token"
// @Success      200 {file} file
// @Failure      403 {object} response.Envelope
// @Router       /reports/download/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	file, job, err := h.reports.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "text/csv"
	if job.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
	}
	filename := fmt.Sprintf("weekly-report-w%02d.%s", job.WeekNumber, job.Format)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		h.logger.Warn("stream export file", zap.String("job_id", job.ID), zap.Error(err))
	}
}
