package models

import (
	"time"

	"github.com/classhour/checkin-api/internal/eligibility"
)

// Student is a roster entry eligible to check in.
type Student struct {
	ID        string                `db:"id" json:"id"`
	FullName  string                `db:"full_name" json:"full_name"`
	ClassType eligibility.ClassType `db:"class_type" json:"class_type"`
	Active    bool                  `db:"active" json:"active"`
	CreatedAt time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt time.Time             `db:"updated_at" json:"updated_at"`
}

// StudentFilter defines query filters for roster listings.
type StudentFilter struct {
	Search    string
	ClassType *eligibility.ClassType
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
