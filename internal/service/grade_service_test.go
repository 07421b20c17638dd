package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spicer-enrichment/registrar-api/internal/dto"
	"github.com/spicer-enrichment/registrar-api/internal/gradeengine"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
)

type gradeStoreStub struct {
	grades   map[string][]models.CourseGrade
	savedGPA float64
	saveErr  error
}

func (s *gradeStoreStub) ListByStudent(ctx context.Context, studentID string) ([]models.CourseGrade, error) {
	return s.grades[studentID], nil
}

func (s *gradeStoreStub) SaveGrades(ctx context.Context, studentID string, grades []models.CourseGrade, gpa float64) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.grades[studentID] = grades
	s.savedGPA = gpa
	return nil
}

type invalidatorStub struct {
	invalidated []string
}

func (i *invalidatorStub) InvalidateTranscript(ctx context.Context, student *models.Student) {
	i.invalidated = append(i.invalidated, student.ID)
}

func newGradeServiceForTest(t *testing.T, engine *gradeengine.Engine) (*GradeService, *gradeStoreStub, *invalidatorStub, *observer.ObservedLogs) {
	t.Helper()
	students := newStudentStoreStub()
	students.students["stu-1"] = &models.Student{ID: "stu-1", FullName: "Ruth Mensah"}
	store := &gradeStoreStub{grades: map[string][]models.CourseGrade{
		"stu-1": {{StudentID: "stu-1", CourseKey: "RELB291", Score: 80}},
	}}
	invalidator := &invalidatorStub{}
	core, logs := observer.New(zap.WarnLevel)
	svc := NewGradeService(students, store, engine, invalidator, NewMetricsService(), zap.New(core))
	return svc, store, invalidator, logs
}

func TestGradeServiceUpdateGrades(t *testing.T) {
	svc, store, invalidator, logs := newGradeServiceForTest(t, nil)

	resp, err := svc.UpdateGrades(context.Background(), "stu-1", dto.UpdateGradesRequest{Grades: map[string]dto.GradeInput{
		"RELB151":   {Score: "95"},
		"RELB125":   {Score: "abc"},
		"RELB151_2": {Score: float64(72)},
		"MATH101":   {Score: 100},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"MATH101"}, resp.IgnoredKeys)
	assert.Equal(t, []string{"RELB125"}, resp.InvalidScores)
	assert.Equal(t, "live-v1", resp.ScaleVersion)
	require.Len(t, resp.Grades, 10)

	byKey := map[string]models.CourseGrade{}
	for _, g := range resp.Grades {
		byKey[g.CourseKey] = g
	}
	assert.Equal(t, "A", byKey["RELB151"].LetterGrade)
	assert.InDelta(t, 8.0, byKey["RELB151"].GradePoints, 1e-9)
	assert.Equal(t, "B+", byKey["RELB291"].LetterGrade)
	assert.Equal(t, "F", byKey["RELB125"].LetterGrade)
	assert.Zero(t, byKey["RELB125"].Score)
	assert.Equal(t, "B-", byKey["RELB151_2"].LetterGrade)

	// (8 + 6.6 + 5.4) / 24
	assert.InDelta(t, 0.83, resp.CumulativeGPA, 1e-9)
	assert.InDelta(t, 0.83, store.savedGPA, 1e-9)
	assert.Equal(t, []string{"stu-1"}, invalidator.invalidated)
	assert.Equal(t, 1, logs.FilterMessage("invalid score replaced with 0").Len())
}

func TestGradeServiceUpdateGradesErrors(t *testing.T) {
	svc, store, _, _ := newGradeServiceForTest(t, nil)

	_, err := svc.UpdateGrades(context.Background(), "missing", dto.UpdateGradesRequest{Grades: map[string]dto.GradeInput{}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateGrades(context.Background(), "stu-1", dto.UpdateGradesRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	store.saveErr = sql.ErrNoRows
	_, err = svc.UpdateGrades(context.Background(), "stu-1", dto.UpdateGradesRequest{Grades: map[string]dto.GradeInput{}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceZeroCreditCatalogIsComputationError(t *testing.T) {
	engine := gradeengine.New(gradeengine.WithCatalog([]gradeengine.CourseDefinition{
		{Code: "AUDIT100", Title: "Audit", CreditHours: 0, Semester: gradeengine.SemesterI},
	}))
	svc, _, invalidator, _ := newGradeServiceForTest(t, engine)

	_, err := svc.UpdateGrades(context.Background(), "stu-1", dto.UpdateGradesRequest{Grades: map[string]dto.GradeInput{"AUDIT100": {Score: 90}}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrGradeComputation.Code, appErr.Code)
	assert.Equal(t, 422, appErr.Status)
	assert.ErrorIs(t, err, gradeengine.ErrDivisionUndefined)
	assert.Empty(t, invalidator.invalidated)
}
