// Package gradeengine turns raw per-course scores into letter grades, grade points,
// semester and cumulative GPAs, and transcript records.
//
// Everything here is pure: inputs are snapshots, nothing is persisted and every call
// is safe for concurrent use.
package gradeengine

import (
	"errors"
	"fmt"
	"math"
)

// GradeFail is the failing letter grade shared by every scale.
const GradeFail = "F"

var (
	// ErrDivisionUndefined is returned when an average is requested over zero credit hours.
	ErrDivisionUndefined = errors.New("division undefined: zero total credit hours")
	// ErrInvalidScore marks a score input that was not numeric and was replaced by 0.
	ErrInvalidScore = errors.New("invalid score")
)

// Grade is the outcome of a scale lookup for one course.
type Grade struct {
	LetterGrade string  `json:"letter_grade"`
	GradePoints float64 `json:"grade_points"`
}

// CourseResult is a scored catalog course.
type CourseResult struct {
	Course      CourseDefinition `json:"course"`
	Score       float64          `json:"score"`
	LetterGrade string           `json:"letter_grade"`
	GradePoints float64          `json:"grade_points"`
}

// SemesterSummary aggregates the results of one semester.
type SemesterSummary struct {
	Semester         Semester       `json:"semester"`
	Results          []CourseResult `json:"results"`
	TotalCreditHours int            `json:"total_credit_hours"`
	TotalGradePoints float64        `json:"total_grade_points"`
	SGPA             float64        `json:"sgpa"`
	Passed           bool           `json:"passed"`
}

// StudentIdentity is the subset of student data printed on a transcript.
type StudentIdentity struct {
	ID                 string `json:"id"`
	RegistrationNumber string `json:"registration_number"`
	Name               string `json:"name"`
	DateOfBirth        string `json:"date_of_birth"`
	BasisOfAdmission   string `json:"basis_of_admission"`
}

// TranscriptRecord is the structured transcript handed to renderers.
type TranscriptRecord struct {
	Student      StudentIdentity   `json:"student"`
	ScaleVersion string            `json:"scale_version"`
	Semesters    []SemesterSummary `json:"semesters"`
	CGPA         float64           `json:"cgpa"`
}

// ClampScore forces a score into [0,100]; NaN becomes 0.
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// DeriveGrade returns the first scale entry whose minimum is at or below score.
func DeriveGrade(scale GradingScale, score float64, creditHours int) Grade {
	score = ClampScore(score)
	for _, entry := range scale.entries {
		if score >= entry.MinimumScore {
			return Grade{LetterGrade: entry.LetterGrade, GradePoints: entry.GPAValue * float64(creditHours)}
		}
	}
	return Grade{LetterGrade: GradeFail, GradePoints: 0}
}

// ScoreCourse derives the grade for a single course.
func ScoreCourse(scale GradingScale, course CourseDefinition, score float64) CourseResult {
	score = ClampScore(score)
	grade := DeriveGrade(scale, score, course.CreditHours)
	return CourseResult{
		Course:      course,
		Score:       score,
		LetterGrade: grade.LetterGrade,
		GradePoints: grade.GradePoints,
	}
}

// SummarizeSemester totals a semester's results. An empty or zero-credit semester yields ErrDivisionUndefined.
func SummarizeSemester(semester Semester, results []CourseResult) (SemesterSummary, error) {
	summary := SemesterSummary{
		Semester: semester,
		Results:  make([]CourseResult, len(results)),
		Passed:   true,
	}
	copy(summary.Results, results)
	for _, result := range results {
		summary.TotalCreditHours += result.Course.CreditHours
		summary.TotalGradePoints += result.GradePoints
		if result.LetterGrade == GradeFail {
			summary.Passed = false
		}
	}
	if summary.TotalCreditHours == 0 {
		return SemesterSummary{}, fmt.Errorf("semester %s: %w", semester, ErrDivisionUndefined)
	}
	summary.SGPA = summary.TotalGradePoints / float64(summary.TotalCreditHours)
	return summary, nil
}

// ComputeCumulativeGPA is the running GPA stored with a student: total points over
// total credit hours, rounded to two decimals.
func ComputeCumulativeGPA(results []CourseResult) (float64, error) {
	var points float64
	var credits int
	for _, result := range results {
		points += result.GradePoints
		credits += result.Course.CreditHours
	}
	if credits == 0 {
		return 0, fmt.Errorf("cumulative gpa: %w", ErrDivisionUndefined)
	}
	return math.Round(points/float64(credits)*100) / 100, nil
}

// Engine binds a catalog to the live-entry and transcript scales.
type Engine struct {
	catalog    []CourseDefinition
	live       GradingScale
	transcript GradingScale
}

// Option customises an Engine.
type Option func(*Engine)

// WithCatalog replaces the compiled-in catalog.
func WithCatalog(courses []CourseDefinition) Option {
	return func(e *Engine) {
		e.catalog = make([]CourseDefinition, len(courses))
		copy(e.catalog, courses)
	}
}

// WithTranscriptScale replaces the transcript scale.
func WithTranscriptScale(scale GradingScale) Option {
	return func(e *Engine) { e.transcript = scale }
}

// WithLiveEntryScale replaces the live-entry scale.
func WithLiveEntryScale(scale GradingScale) Option {
	return func(e *Engine) { e.live = scale }
}

// New returns an engine over the compiled-in catalog and scales.
func New(opts ...Option) *Engine {
	e := &Engine{
		catalog:    Catalog(),
		live:       LiveEntryScale(),
		transcript: TranscriptScale(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() []CourseDefinition {
	out := make([]CourseDefinition, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// BuildTranscript scores every catalog course with the transcript scale, grouped by semester.
// Scores are looked up by record key; absent keys count as 0 and unknown keys are never read.
//
// "Religions of the World" is printed as RELB152 but scored from RELB151_2. Earlier
// transcripts looked scores up by printed code and so showed the Christian Beliefs II
// score on that line as well.
func (e *Engine) BuildTranscript(identity StudentIdentity, scores map[string]float64) (*TranscriptRecord, error) {
	record := &TranscriptRecord{
		Student:      identity,
		ScaleVersion: e.transcript.Version(),
		Semesters:    make([]SemesterSummary, 0, 2),
	}
	var weighted float64
	var credits int
	for _, semester := range Semesters() {
		courses := FilterBySemester(e.catalog, semester)
		results := make([]CourseResult, 0, len(courses))
		for _, course := range courses {
			results = append(results, ScoreCourse(e.transcript, course, scores[course.RecordKey()]))
		}
		summary, err := SummarizeSemester(semester, results)
		if err != nil {
			return nil, err
		}
		record.Semesters = append(record.Semesters, summary)
		weighted += summary.SGPA * float64(summary.TotalCreditHours)
		credits += summary.TotalCreditHours
	}
	if credits == 0 {
		return nil, fmt.Errorf("cgpa: %w", ErrDivisionUndefined)
	}
	record.CGPA = weighted / float64(credits)
	return record, nil
}

// LiveResults scores every catalog course with the live-entry scale.
func (e *Engine) LiveResults(scores map[string]float64) []CourseResult {
	results := make([]CourseResult, 0, len(e.catalog))
	for _, course := range e.catalog {
		results = append(results, ScoreCourse(e.live, course, scores[course.RecordKey()]))
	}
	return results
}

// CumulativeGPA scores the catalog with the live-entry scale and returns the results with the running GPA.
func (e *Engine) CumulativeGPA(scores map[string]float64) ([]CourseResult, float64, error) {
	results := e.LiveResults(scores)
	gpa, err := ComputeCumulativeGPA(results)
	if err != nil {
		return nil, 0, err
	}
	return results, gpa, nil
}

// LiveEntryScale returns the scale used for grade entry and the running GPA.
func (e *Engine) LiveEntryScale() GradingScale { return e.live }

// TranscriptScale returns the scale used for transcripts.
func (e *Engine) TranscriptScale() GradingScale { return e.transcript }
