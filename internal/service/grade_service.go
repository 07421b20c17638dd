package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/spicer-enrichment/registrar-api/internal/dto"
	"github.com/spicer-enrichment/registrar-api/internal/gradeengine"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
)

type gradeStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type gradeStore interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.CourseGrade, error)
	SaveGrades(ctx context.Context, studentID string, grades []models.CourseGrade, cumulativeGPA float64) error
}

type transcriptInvalidator interface {
	InvalidateTranscript(ctx context.Context, student *models.Student)
}

// GradeService applies grade entry submissions and keeps the running GPA current.
type GradeService struct {
	students    gradeStudentReader
	grades      gradeStore
	engine      *gradeengine.Engine
	transcripts transcriptInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(students gradeStudentReader, grades gradeStore, engine *gradeengine.Engine, transcripts transcriptInvalidator, metrics *MetricsService, logger *zap.Logger) *GradeService {
	if engine == nil {
		engine = gradeengine.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{students: students, grades: grades, engine: engine, transcripts: transcripts, metrics: metrics, logger: logger}
}

// UpdateGrades merges the submitted scores into the stored ones, derives grades with
// the live-entry scale and stores the recomputed cumulative GPA.
//
// Keys outside the catalog are ignored. Non-numeric scores are stored as 0 and reported.
func (s *GradeService) UpdateGrades(ctx context.Context, studentID string, req dto.UpdateGradesRequest) (*dto.UpdateGradesResponse, error) {
	if req.Grades == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grades is required")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	existing, err := s.grades.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grades")
	}
	scores := models.ScoreMap(existing)

	known := make(map[string]struct{})
	for _, course := range s.engine.Catalog() {
		known[course.RecordKey()] = struct{}{}
	}

	resp := &dto.UpdateGradesResponse{StudentID: studentID}
	for key, input := range req.Grades {
		if _, ok := known[key]; !ok {
			resp.IgnoredKeys = append(resp.IgnoredKeys, key)
			continue
		}
		score, err := gradeengine.ParseScore(input.Score)
		if err != nil {
			s.logger.Warn("invalid score replaced with 0", zap.String("student_id", studentID), zap.String("course_key", key), zap.Error(err))
			resp.InvalidScores = append(resp.InvalidScores, key)
		}
		scores[key] = score
	}
	sort.Strings(resp.IgnoredKeys)
	sort.Strings(resp.InvalidScores)

	results, gpa, err := s.engine.CumulativeGPA(scores)
	if err != nil {
		return nil, gradeComputationError(err)
	}

	version := s.engine.LiveEntryScale().Version()
	grades := make([]models.CourseGrade, 0, len(results))
	for _, result := range results {
		grades = append(grades, courseGradeFromResult(result, version))
	}

	if err := s.grades.SaveGrades(ctx, studentID, grades, gpa); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grades")
	}

	if s.transcripts != nil {
		s.transcripts.InvalidateTranscript(ctx, student)
	}
	s.metrics.GradeUpdate(len(resp.InvalidScores))
	s.logger.Info("grades updated", zap.String("student_id", studentID), zap.Float64("cumulative_gpa", gpa))

	resp.CumulativeGPA = gpa
	resp.ScaleVersion = version
	resp.Grades = grades
	return resp, nil
}

func gradeComputationError(err error) error {
	if errors.Is(err, gradeengine.ErrDivisionUndefined) {
		return appErrors.Wrap(err, appErrors.ErrGradeComputation.Code, appErrors.ErrGradeComputation.Status, "cannot compute gpa: zero credit hours")
	}
	return appErrors.Wrap(err, appErrors.ErrGradeComputation.Code, appErrors.ErrGradeComputation.Status, appErrors.ErrGradeComputation.Message)
}
