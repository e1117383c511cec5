package dto

// CreateStudentRequest adds one student to the roster.
type CreateStudentRequest struct {
	FullName  string `json:"full_name" validate:"required,min=2"`
	ClassType string `json:"class_type" validate:"required,class_type"`
	Active    *bool  `json:"active"`
}

// UpdateStudentRequest modifies roster fields; nil fields are untouched.
type UpdateStudentRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=2"`
	ClassType *string `json:"class_type" validate:"omitempty,class_type"`
	Active    *bool   `json:"active"`
}

// ImportRosterResult summarises a CSV bulk import.
type ImportRosterResult struct {
	Processed int                `json:"processed"`
	Created   int                `json:"created"`
	Failures  []ImportRowFailure `json:"failures,omitempty"`
}

// ImportRowFailure names the line and cause of a rejected CSV row.
type ImportRowFailure struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}
