package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/models"
)

// NewValidator returns a validator with the domain tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// RegisterValidations installs the custom tags used by request DTOs.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("class_type", func(fl validator.FieldLevel) bool {
		return eligibility.ClassType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("report_format", func(fl validator.FieldLevel) bool {
		return models.ReportFormat(fl.Field().String()).Valid()
	})
}
