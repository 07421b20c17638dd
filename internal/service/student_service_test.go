package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicer-enrichment/registrar-api/internal/dto"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
)

type studentStoreStub struct {
	students    map[string]*models.Student
	grades      map[string][]models.CourseGrade
	latest      string
	createErrs  []error
	createCalls int
	lastFilter  models.StudentFilter
	emailExists bool
}

func newStudentStoreStub() *studentStoreStub {
	return &studentStoreStub{students: map[string]*models.Student{}, grades: map[string][]models.CourseGrade{}}
}

func (s *studentStoreStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	s.lastFilter = filter
	out := make([]models.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, *st)
	}
	return out, len(out), nil
}

func (s *studentStoreStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	st, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *st
	return &copied, nil
}

func (s *studentStoreStub) ListAll(ctx context.Context) ([]models.Student, error) {
	out := make([]models.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, *st)
	}
	return out, nil
}

func (s *studentStoreStub) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.emailExists, nil
}

func (s *studentStoreStub) LatestRegistrationNumber(ctx context.Context, prefix string) (string, error) {
	return s.latest, nil
}

func (s *studentStoreStub) CreateWithGrades(ctx context.Context, student *models.Student, grades []models.CourseGrade) error {
	s.createCalls++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			s.latest = student.RegistrationNumber
			return err
		}
	}
	student.ID = uuid.NewString()
	s.students[student.ID] = student
	s.grades[student.ID] = grades
	s.latest = student.RegistrationNumber
	return nil
}

func (s *studentStoreStub) ListByStudent(ctx context.Context, studentID string) ([]models.CourseGrade, error) {
	return s.grades[studentID], nil
}

type uploadStoreStub struct {
	saved   map[string][]byte
	deleted []string
}

func (u *uploadStoreStub) SaveStream(name string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	u.saved[name] = data
	return int64(len(data)), nil
}

func (u *uploadStoreStub) Delete(name string) error {
	u.deleted = append(u.deleted, name)
	delete(u.saved, name)
	return nil
}

func validRegistration() dto.RegisterStudentRequest {
	return dto.RegisterStudentRequest{
		RegistrationType: models.RegistrationTypeNew,
		Name:             "Ruth Mensah",
		Email:            "Ruth@Example.com ",
		Password:         "secret1",
		DateOfBirth:      "2001-04-12",
		BasisOfAdmission: "Degree",
		CollegeAttended:  "Spicer",
		Gender:           "Female",
		MaritalStatus:    "Unmarried",
		MotherTongue:     "Twi",
		IsAdventist:      "Yes",
		PhoneNumber:      "0240000000",
	}
}

func screenshot() *dto.UploadedFile {
	payload := []byte("\x89PNG fake")
	return &dto.UploadedFile{Filename: "receipt.PNG", ContentType: "image/png", Size: int64(len(payload)), Content: bytes.NewReader(payload)}
}

func newStudentServiceForTest(t *testing.T) (*StudentService, *studentStoreStub, *uploadStoreStub) {
	t.Helper()
	repo := newStudentStoreStub()
	uploads := &uploadStoreStub{saved: map[string][]byte{}}
	svc := NewStudentService(repo, repo, uploads, nil, nil, nil, StudentServiceConfig{MaxUploadBytes: 1024, AllowedMIMEs: []string{"image/png", "image/jpeg"}})
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc, repo, uploads
}

func TestStudentServiceRegisterSeedsCatalog(t *testing.T) {
	svc, repo, uploads := newStudentServiceForTest(t)

	resp, err := svc.Register(context.Background(), validRegistration(), screenshot())
	require.NoError(t, err)
	assert.Equal(t, "24E001", resp.RegistrationNumber)

	stored := repo.students[resp.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "ruth@example.com", stored.Email)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.Contains(t, stored.PaymentScreenshot, "payments/")
	assert.Contains(t, stored.PaymentScreenshot, ".png")
	assert.Len(t, uploads.saved, 1)

	grades := repo.grades[resp.ID]
	require.Len(t, grades, 10)
	for _, g := range grades {
		assert.Zero(t, g.Score)
		assert.Equal(t, "F", g.LetterGrade)
		assert.Equal(t, "live-v1", g.ScaleVersion)
	}
}

func TestStudentServiceRegistrationSequence(t *testing.T) {
	svc, repo, _ := newStudentServiceForTest(t)
	repo.latest = "24E009"

	resp, err := svc.Register(context.Background(), validRegistration(), screenshot())
	require.NoError(t, err)
	assert.Equal(t, "24E010", resp.RegistrationNumber)

	next, err := svc.NextRegistrationNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "24E011", next)
}

func TestStudentServiceRegistrationSequencePastThreeDigits(t *testing.T) {
	svc, repo, _ := newStudentServiceForTest(t)
	svc.now = func() time.Time { return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC) }
	repo.latest = "25E999"

	first, err := svc.Register(context.Background(), validRegistration(), screenshot())
	require.NoError(t, err)
	assert.Equal(t, "25E1000", first.RegistrationNumber)

	second := validRegistration()
	second.Email = "kofi@example.com"
	resp, err := svc.Register(context.Background(), second, screenshot())
	require.NoError(t, err)
	assert.Equal(t, "25E1001", resp.RegistrationNumber)
	assert.Equal(t, 2, repo.createCalls)
}

func TestNextInSequence(t *testing.T) {
	got, err := nextInSequence("25E", "")
	require.NoError(t, err)
	assert.Equal(t, "25E001", got)

	got, err = nextInSequence("25E", "25E999")
	require.NoError(t, err)
	assert.Equal(t, "25E1000", got)

	got, err = nextInSequence("25E", "25E1000")
	require.NoError(t, err)
	assert.Equal(t, "25E1001", got)

	_, err = nextInSequence("25E", "24E001")
	assert.Error(t, err)
}

func TestStudentServiceRegisterRetriesTakenNumber(t *testing.T) {
	svc, repo, _ := newStudentServiceForTest(t)
	repo.createErrs = []error{&pq.Error{Code: uniqueViolation, Constraint: "students_registration_number_key"}}

	resp, err := svc.Register(context.Background(), validRegistration(), screenshot())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.createCalls)
	assert.Equal(t, "24E002", resp.RegistrationNumber)
}

func TestStudentServiceRegisterEmailRaceIsConflict(t *testing.T) {
	svc, repo, uploads := newStudentServiceForTest(t)
	repo.createErrs = []error{&pq.Error{Code: uniqueViolation, Constraint: "students_email_key"}}

	_, err := svc.Register(context.Background(), validRegistration(), screenshot())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, uploads.deleted, 1)
	assert.Empty(t, uploads.saved)
}

func TestStudentServiceRegisterValidation(t *testing.T) {
	svc, repo, _ := newStudentServiceForTest(t)

	req := validRegistration()
	req.Gender = "Unknown"
	_, err := svc.Register(context.Background(), req, screenshot())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Register(context.Background(), validRegistration(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	big := screenshot()
	big.Size = 4096
	_, err = svc.Register(context.Background(), validRegistration(), big)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)

	pdf := screenshot()
	pdf.ContentType = "application/pdf"
	_, err = svc.Register(context.Background(), validRegistration(), pdf)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	repo.emailExists = true
	_, err = svc.Register(context.Background(), validRegistration(), screenshot())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceProfileAndList(t *testing.T) {
	svc, repo, _ := newStudentServiceForTest(t)
	resp, err := svc.Register(context.Background(), validRegistration(), screenshot())
	require.NoError(t, err)

	profile, err := svc.Profile(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ruth Mensah", profile.FullName)
	assert.Len(t, profile.Grades, 10)

	_, err = svc.Profile(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	students, pagination, err := svc.List(context.Background(), dto.StudentListQuery{Search: " ruth ", RegistrationType: "new", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, "ruth", repo.lastFilter.Search)
	assert.Equal(t, models.RegistrationTypeNew, repo.lastFilter.RegistrationType)

	_, _, err = svc.List(context.Background(), dto.StudentListQuery{RegistrationType: "transfer"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
