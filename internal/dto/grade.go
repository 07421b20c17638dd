package dto

import "github.com/spicer-enrichment/registrar-api/internal/models"

// GradeInput is a raw score as sent by the grade entry form. Any grade or
// points supplied alongside it are ignored.
type GradeInput struct {
	Score interface{} `json:"score"`
}

// UpdateGradesRequest is the body of PUT /admin/update-grades/:id, keyed by course record key.
type UpdateGradesRequest struct {
	Grades map[string]GradeInput `json:"grades" validate:"required"`
}

// UpdateGradesResponse reports the stored grades and the recomputed running GPA.
type UpdateGradesResponse struct {
	StudentID     string               `json:"studentId"`
	CumulativeGPA float64              `json:"cumulativeGPA"`
	ScaleVersion  string               `json:"scaleVersion"`
	Grades        []models.CourseGrade `json:"grades"`
	IgnoredKeys   []string             `json:"ignoredKeys,omitempty"`
	InvalidScores []string             `json:"invalidScores,omitempty"`
}
