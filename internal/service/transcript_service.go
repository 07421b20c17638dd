package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spicer-enrichment/registrar-api/internal/gradeengine"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
	"github.com/spicer-enrichment/registrar-api/pkg/export"
)

const transcriptCachePrefix = "transcript:"

type transcriptStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListAll(ctx context.Context) ([]models.Student, error)
}

type transcriptGradeReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.CourseGrade, error)
	ListByStudents(ctx context.Context, studentIDs []string) (map[string][]models.CourseGrade, error)
}

type transcriptRenderer interface {
	Render(record *gradeengine.TranscriptRecord, completedOn time.Time) ([]byte, error)
}

// TranscriptDocument is a rendered transcript ready for download.
type TranscriptDocument struct {
	Filename string
	Content  []byte
}

// TranscriptService builds transcript records and documents.
type TranscriptService struct {
	students transcriptStudentReader
	grades   transcriptGradeReader
	engine   *gradeengine.Engine
	renderer transcriptRenderer
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewTranscriptService constructs a TranscriptService.
func NewTranscriptService(students transcriptStudentReader, grades transcriptGradeReader, engine *gradeengine.Engine, renderer transcriptRenderer, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *TranscriptService {
	if engine == nil {
		engine = gradeengine.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptService{
		students: students,
		grades:   grades,
		engine:   engine,
		renderer: renderer,
		cache:    cache,
		metrics:  metrics,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Record returns the transcript record of one student, served from cache when possible.
func (s *TranscriptService) Record(ctx context.Context, studentID string) (*gradeengine.TranscriptRecord, error) {
	record, err := s.record(ctx, studentID)
	if err != nil {
		return nil, err
	}
	s.metrics.TranscriptIssued(TranscriptKindJSON, 1)
	return record, nil
}

// PDF renders the transcript of one student.
func (s *TranscriptService) PDF(ctx context.Context, studentID string) (*TranscriptDocument, error) {
	record, err := s.record(ctx, studentID)
	if err != nil {
		return nil, err
	}
	content, err := s.renderer.Render(record, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}
	s.metrics.TranscriptIssued(TranscriptKindPDF, 1)
	return &TranscriptDocument{Filename: transcriptFilename(record.Student), Content: content}, nil
}

// CountStudents reports how many transcripts a bulk archive would contain.
func (s *TranscriptService) CountStudents(ctx context.Context) (int, error) {
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return len(students), nil
}

// WriteArchive renders every student's transcript into a ZIP written to w.
// progress, when set, is called after each transcript with the number done so far.
func (s *TranscriptService) WriteArchive(ctx context.Context, w io.Writer, progress func(done, total int)) (int, error) {
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if len(students) == 0 {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "no students found")
	}

	ids := make([]string, len(students))
	for i, student := range students {
		ids[i] = student.ID
	}
	gradesByStudent, err := s.grades.ListByStudents(ctx, ids)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grades")
	}

	completedOn := s.now()
	bundle := export.NewZipBundle(w)
	for i := range students {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		record, err := s.build(&students[i], gradesByStudent[students[i].ID])
		if err != nil {
			return 0, err
		}
		content, err := s.renderer.Render(record, completedOn)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		if _, err := bundle.Add(transcriptFilename(record.Student), content); err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add transcript to archive")
		}
		if progress != nil {
			progress(i+1, len(students))
		}
	}
	if err := bundle.Close(); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finish archive")
	}
	s.metrics.TranscriptIssued(TranscriptKindArchive, len(students))
	return len(students), nil
}

// InvalidateTranscript drops the cached record built from the given student row.
func (s *TranscriptService) InvalidateTranscript(ctx context.Context, student *models.Student) {
	if student == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, transcriptCacheKey(student))
}

// transcriptCacheKey includes the row version of the student. Saving grades bumps
// students.updated_at in the same transaction, so a record built from older grades
// can only ever be stored under a key that is no longer read.
func transcriptCacheKey(student *models.Student) string {
	return transcriptCachePrefix + student.ID + ":" + strconv.FormatInt(student.UpdatedAt.UnixMicro(), 10)
}

func (s *TranscriptService) record(ctx context.Context, studentID string) (*gradeengine.TranscriptRecord, error) {
	// The student row must be read before the grades for the key to be safe.
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	key := transcriptCacheKey(student)
	var cached gradeengine.TranscriptRecord
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	grades, err := s.grades.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grades")
	}
	record, err := s.build(student, grades)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, record, s.cacheTTL)
	return record, nil
}

func (s *TranscriptService) build(student *models.Student, grades []models.CourseGrade) (*gradeengine.TranscriptRecord, error) {
	identity := gradeengine.StudentIdentity{
		ID:                 student.ID,
		RegistrationNumber: student.RegistrationNumber,
		Name:               student.FullName,
		DateOfBirth:        student.DateOfBirth,
		BasisOfAdmission:   student.BasisOfAdmission,
	}
	record, err := s.engine.BuildTranscript(identity, models.ScoreMap(grades))
	if err != nil {
		s.logger.Error("transcript computation failed", zap.String("student_id", student.ID), zap.Error(err))
		return nil, gradeComputationError(err)
	}
	return record, nil
}

func transcriptFilename(student gradeengine.StudentIdentity) string {
	base := student.RegistrationNumber
	if base == "" {
		base = student.Name
	}
	return export.SafeFilename(base + ".pdf")
}
