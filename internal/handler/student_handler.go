package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classhour/checkin-api/internal/dto"
	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
	"github.com/classhour/checkin-api/internal/service"
	appErrors "github.com/classhour/checkin-api/pkg/errors"
	"github.com/classhour/checkin-api/pkg/response"
)

// StudentHandler serves roster management endpoints.
type StudentHandler struct {
	roster *service.RosterService
	logger *zap.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(roster *service.RosterService, logger *zap.Logger) *StudentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentHandler{roster: roster, logger: logger}
}

// List godoc
// @Summary      List roster entries
// @Tags         students
// @Produce      json
// @Security     BearerAuth
// @Param        search query string false "Name search"
// @Param        class_type query string false "weekend, weekday or both"
// @Param        active query bool false "Filter by active flag"
// @Success      200 {object} response.Envelope{data=[]models.Student}
// @Router       /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:    c.Query("search"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("class_type"); raw != "" {
		classType := eligibility.ClassType(raw)
		if !classType.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_type must be weekend, weekday or both"))
			return
		}
		filter.ClassType = &classType
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	students, pagination, err := h.roster.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary      Get one roster entry
// @Tags         students
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Student ID"
// @Success      200 {object} response.Envelope{data=models.Student}
// @Failure      404 {object} response.Envelope
// @Router       /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.roster.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary      Add a student
// @Tags         students
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreateStudentRequest true "Student payload"
// @Success      201 {object} response.Envelope{data=models.Student}
// @Failure      409 {object} response.Envelope
// @Router       /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload"))
		return
	}

	student, err := h.roster.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary      Update a student
// @Tags         students
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Student ID"
// @Param        request body dto.UpdateStudentRequest true "Fields to update"
// @Success      200 {object} response.Envelope{data=models.Student}
// @Router       /students/{id} [patch]
func (h *StudentHandler) Update(c *gin.Context) {
	var req dto.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload"))
		return
	}

	student, err := h.roster.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary      Remove a student
// @Tags         students
// @Security     BearerAuth
// @Param        id path string true "Student ID"
// @Success      204
// @Router       /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.roster.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary      Bulk import roster from CSV
// @Description  Accepts a multipart file with full_name,class_type rows
// @Tags         students
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "CSV file"
// @Success      200 {object} response.Envelope{data=dto.ImportRosterResult}
// @Router       /students/import [post]
func (h *StudentHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart field 'file' is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.roster.ImportCSV(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
