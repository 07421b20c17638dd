package models

import "time"

// CourseGrade is the stored score of one catalog course for a student.
// LetterGrade and GradePoints are derived with the live-entry grading scale.
type CourseGrade struct {
	StudentID    string    `db:"student_id" json:"student_id"`
	CourseKey    string    `db:"course_key" json:"course_key"`
	Score        float64   `db:"score" json:"score"`
	LetterGrade  string    `db:"letter_grade" json:"letter_grade"`
	GradePoints  float64   `db:"grade_points" json:"grade_points"`
	CreditHours  int       `db:"credit_hours" json:"credit_hours"`
	ScaleVersion string    `db:"scale_version" json:"scale_version"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreMap indexes stored scores by course key.
func ScoreMap(grades []CourseGrade) map[string]float64 {
	scores := make(map[string]float64, len(grades))
	for _, g := range grades {
		scores[g.CourseKey] = g.Score
	}
	return scores
}
