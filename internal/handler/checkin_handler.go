package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classhour/checkin-api/internal/dto"
	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
	"github.com/classhour/checkin-api/internal/service"
	"github.com/classhour/checkin-api/pkg/config"
	appErrors "github.com/classhour/checkin-api/pkg/errors"
	"github.com/classhour/checkin-api/pkg/response"
)

// CheckinHandler serves the public kiosk check-in endpoint and the admin
// attendance listing.
type CheckinHandler struct {
	checkins *service.CheckinService
	reports  *service.ReportService
	env      string
	logger   *zap.Logger
}

// NewCheckinHandler constructs the handler.
func NewCheckinHandler(checkins *service.CheckinService, reports *service.ReportService, env string, logger *zap.Logger) *CheckinHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckinHandler{checkins: checkins, reports: reports, env: env, logger: logger}
}

// Checkin godoc
// @Summary      Student check-in
// @Description  Evaluates attendance eligibility for the named student at the current instant
// @Tags         checkin
// @Accept       json
// @Produce      json
// @Param        request body dto.CheckinRequest true "Check-in payload"
// @Success      201 {object} response.Envelope{data=dto.CheckinResponse}
// @Success      200 {object} response.Envelope{data=dto.CheckinResponse}
// @Failure      404 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Router       /checkin [post]
func (h *CheckinHandler) Checkin(c *gin.Context) {
	var req dto.CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload"))
		return
	}

	// Pinned timestamps are for demos and tests only; production always
	// evaluates at the server clock.
	at := time.Now()
	if req.Timestamp != nil && h.env != config.EnvProduction {
		at = *req.Timestamp
	}

	resp, err := h.checkins.Checkin(c.Request.Context(), req, at)
	if err != nil {
		response.Error(c, err)
		return
	}

	if resp.Allowed && h.reports != nil {
		h.reports.InvalidateWeek(c.Request.Context(), resp.LocalTime)
	}

	status := http.StatusOK
	if resp.RecordID != "" {
		status = http.StatusCreated
	}
	response.JSON(c, status, resp, nil)
}

// List godoc
// @Summary      List attendance records
// @Tags         checkin
// @Produce      json
// @Security     BearerAuth
// @Param        week query int false "Program week number"
// @Param        status query string false "on_time or late"
// @Param        student_id query string false "Filter by student"
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Success      200 {object} response.Envelope{data=[]models.CheckinRecordDetail}
// @Router       /checkins [get]
func (h *CheckinHandler) List(c *gin.Context) {
	filter := models.CheckinFilter{
		StudentID: c.Query("student_id"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("week"); raw != "" {
		week, err := strconv.Atoi(raw)
		if err != nil || week < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "week must be a positive integer"))
			return
		}
		filter.WeekNumber = &week
	}
	if raw := c.Query("status"); raw != "" {
		status := eligibility.Status(raw)
		if status != eligibility.StatusOnTime && status != eligibility.StatusLate {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be on_time or late"))
			return
		}
		filter.Status = &status
	}
	if from, ok := dateQuery(c, "date_from"); ok {
		filter.DateFrom = &from
	} else if c.Query("date_from") != "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date_from must be YYYY-MM-DD"))
		return
	}
	if to, ok := dateQuery(c, "date_to"); ok {
		filter.DateTo = &to
	} else if c.Query("date_to") != "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date_to must be YYYY-MM-DD"))
		return
	}

	records, pagination, err := h.checkins.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func dateQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, false
	}
	value, err := time.Parse(eligibility.DateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return value, true
}
