package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/spicer-enrichment/registrar-api/internal/dto"
	"github.com/spicer-enrichment/registrar-api/internal/gradeengine"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
)

const (
	registrationSeqDigits = 3
	registrationAttempts  = 3
	uniqueViolation       = "23505"
)

type studentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	LatestRegistrationNumber(ctx context.Context, prefix string) (string, error)
	CreateWithGrades(ctx context.Context, student *models.Student, grades []models.CourseGrade) error
}

type studentGradeReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.CourseGrade, error)
}

type uploadStore interface {
	SaveStream(name string, r io.Reader) (int64, error)
	Delete(name string) error
}

// StudentServiceConfig constrains payment screenshot uploads.
type StudentServiceConfig struct {
	MaxUploadBytes int64
	AllowedMIMEs   []string
}

// StudentService handles registration and student lookups.
type StudentService struct {
	repo      studentStore
	grades    studentGradeReader
	uploads   uploadStore
	engine    *gradeengine.Engine
	validator *validator.Validate
	logger    *zap.Logger
	cfg       StudentServiceConfig
	now       func() time.Time
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentStore, grades studentGradeReader, uploads uploadStore, engine *gradeengine.Engine, validate *validator.Validate, logger *zap.Logger, cfg StudentServiceConfig) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = gradeengine.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	return &StudentService{
		repo:      repo,
		grades:    grades,
		uploads:   uploads,
		engine:    engine,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Register creates a student account, stores the payment screenshot and seeds every catalog course with score 0.
func (s *StudentService) Register(ctx context.Context, req dto.RegisterStudentRequest, screenshot *dto.UploadedFile) (*dto.RegisterStudentResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if err := s.checkUpload(screenshot); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	stored := filepath.ToSlash(filepath.Join("payments", uuid.NewString()+strings.ToLower(filepath.Ext(screenshot.Filename))))
	if _, err := s.uploads.SaveStream(stored, screenshot.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store payment screenshot")
	}

	student := &models.Student{
		RegistrationType:        req.RegistrationType,
		FullName:                req.Name,
		Email:                   req.Email,
		PasswordHash:            hash,
		DateOfBirth:             req.DateOfBirth,
		BasisOfAdmission:        req.BasisOfAdmission,
		CollegeAttended:         req.CollegeAttended,
		Gender:                  req.Gender,
		MaritalStatus:           req.MaritalStatus,
		MotherTongue:            req.MotherTongue,
		IsAdventist:             req.IsAdventist,
		PhoneNumber:             req.PhoneNumber,
		Union:                   req.Union,
		SectionRegionConference: req.SectionRegionConference,
		Address:                 req.Address,
		PaymentScreenshot:       stored,
	}

	if err := s.createWithNumber(ctx, student); err != nil {
		if delErr := s.uploads.Delete(stored); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", stored), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("student registered", zap.String("student_id", student.ID), zap.String("registration_number", student.RegistrationNumber))
	return &dto.RegisterStudentResponse{ID: student.ID, RegistrationNumber: student.RegistrationNumber}, nil
}

// createWithNumber assigns the next registration number, retrying when a concurrent registration took it.
func (s *StudentService) createWithNumber(ctx context.Context, student *models.Student) error {
	for attempt := 1; ; attempt++ {
		number, err := s.NextRegistrationNumber(ctx)
		if err != nil {
			return err
		}
		student.ID = ""
		student.RegistrationNumber = number
		err = s.repo.CreateWithGrades(ctx, student, s.initialGrades())
		if err == nil {
			return nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			if strings.Contains(pqErr.Constraint, "email") {
				return appErrors.Clone(appErrors.ErrConflict, "email already registered")
			}
			if attempt < registrationAttempts {
				s.logger.Warn("registration number taken, retrying", zap.String("registration_number", number), zap.Int("attempt", attempt))
				continue
			}
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
}

// NextRegistrationNumber returns the next number of the form YYE### for the current year.
func (s *StudentService) NextRegistrationNumber(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("%02dE", s.now().Year()%100)
	latest, err := s.repo.LatestRegistrationNumber(ctx, prefix)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read registration sequence")
	}
	return nextInSequence(prefix, latest)
}

func nextInSequence(prefix, latest string) (string, error) {
	seq := 0
	if latest != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
		if err != nil || !strings.HasPrefix(latest, prefix) {
			return "", appErrors.Wrap(fmt.Errorf("malformed registration number %q", latest), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read registration sequence")
		}
		seq = n
	}
	return fmt.Sprintf("%s%0*d", prefix, registrationSeqDigits, seq+1), nil
}

func (s *StudentService) initialGrades() []models.CourseGrade {
	scale := s.engine.LiveEntryScale()
	results := s.engine.LiveResults(nil)
	grades := make([]models.CourseGrade, 0, len(results))
	for _, result := range results {
		grades = append(grades, courseGradeFromResult(result, scale.Version()))
	}
	return grades
}

func (s *StudentService) checkUpload(file *dto.UploadedFile) error {
	if file == nil || file.Content == nil {
		return appErrors.Clone(appErrors.ErrValidation, "payment screenshot is required")
	}
	if file.Size > s.cfg.MaxUploadBytes {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("payment screenshot exceeds %d bytes", s.cfg.MaxUploadBytes))
	}
	if len(s.cfg.AllowedMIMEs) == 0 {
		return nil
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(file.ContentType, ";")[0]))
	for _, allowed := range s.cfg.AllowedMIMEs {
		if contentType == strings.ToLower(allowed) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "unsupported payment screenshot type")
}

// Profile returns a student with the stored grades.
func (s *StudentService) Profile(ctx context.Context, id string) (*models.StudentProfile, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	grades, err := s.grades.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grades")
	}
	return &models.StudentProfile{Student: *student, Grades: grades}, nil
}

// List returns a page of students.
func (s *StudentService) List(ctx context.Context, query dto.StudentListQuery) ([]models.Student, *models.Pagination, error) {
	filter := models.StudentFilter{
		Search:           strings.TrimSpace(query.Search),
		RegistrationType: models.RegistrationType(strings.ToUpper(query.RegistrationType)),
		Page:             query.Page,
		PageSize:         query.PageSize,
		SortBy:           query.SortBy,
		SortOrder:        query.SortOrder,
	}
	if filter.RegistrationType != "" && filter.RegistrationType != models.RegistrationTypeNew && filter.RegistrationType != models.RegistrationTypeOld {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "registrationType must be NEW or OLD")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func courseGradeFromResult(result gradeengine.CourseResult, scaleVersion string) models.CourseGrade {
	return models.CourseGrade{
		CourseKey:    result.Course.RecordKey(),
		Score:        result.Score,
		LetterGrade:  result.LetterGrade,
		GradePoints:  result.GradePoints,
		CreditHours:  result.Course.CreditHours,
		ScaleVersion: scaleVersion,
	}
}
