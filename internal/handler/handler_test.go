package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicer-enrichment/registrar-api/internal/dto"
	"github.com/spicer-enrichment/registrar-api/internal/gradeengine"
	"github.com/spicer-enrichment/registrar-api/internal/middleware"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	"github.com/spicer-enrichment/registrar-api/internal/service"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

type authServiceMock struct {
	login    *models.LoginResponse
	err      error
	admin    *models.Admin
	lastUser string
}

func (m *authServiceMock) StudentLogin(ctx context.Context, req models.StudentLoginRequest) (*models.LoginResponse, error) {
	m.lastUser = req.Email
	return m.login, m.err
}

func (m *authServiceMock) AdminLogin(ctx context.Context, req models.AdminLoginRequest) (*models.LoginResponse, error) {
	m.lastUser = req.Username
	return m.login, m.err
}

func (m *authServiceMock) RegisterAdmin(ctx context.Context, req dto.AdminRegisterRequest) (*models.Admin, error) {
	return m.admin, m.err
}

func TestAuthHandlerStudentLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{login: &models.LoginResponse{AccessToken: "token", UserID: "stu-1", Role: models.RoleStudent}}
	handler := NewAuthHandler(mockSvc)

	payload, _ := json.Marshal(models.StudentLoginRequest{Email: "ruth@example.com", Password: "secret1"})
	c, w := newGinContext(http.MethodPost, "/users/login", payload)
	handler.StudentLogin(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ruth@example.com", mockSvc.lastUser)
	assert.Contains(t, w.Body.String(), `"access_token":"token"`)
}

func TestAuthHandlerAdminLoginFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{err: appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")})

	c, w := newGinContext(http.MethodPost, "/admin/login", []byte(`{"username":"registrar","password":"nope"}`))
	handler.AdminLogin(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, w))

	c, w = newGinContext(http.MethodPost, "/admin/login", []byte(`{not json`))
	handler.AdminLogin(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerRegisterAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{admin: &models.Admin{ID: "adm-1", Username: "registrar", PasswordHash: "hash"}})

	c, w := newGinContext(http.MethodPost, "/admin/register", []byte(`{"username":"registrar","password":"password123"}`))
	handler.RegisterAdmin(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "hash")
}

type studentServiceMock struct {
	registerReq  dto.RegisterStudentRequest
	uploaded     []byte
	uploadedType string
	registerErr  error
	profile      *models.StudentProfile
	profileErr   error
	listQuery    dto.StudentListQuery
}

func (m *studentServiceMock) Register(ctx context.Context, req dto.RegisterStudentRequest, screenshot *dto.UploadedFile) (*dto.RegisterStudentResponse, error) {
	m.registerReq = req
	m.uploadedType = screenshot.ContentType
	data, err := io.ReadAll(screenshot.Content)
	if err != nil {
		return nil, err
	}
	m.uploaded = data
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &dto.RegisterStudentResponse{ID: "stu-1", RegistrationNumber: "24E001"}, nil
}

func (m *studentServiceMock) Profile(ctx context.Context, id string) (*models.StudentProfile, error) {
	return m.profile, m.profileErr
}

func (m *studentServiceMock) List(ctx context.Context, query dto.StudentListQuery) ([]models.Student, *models.Pagination, error) {
	m.listQuery = query
	return []models.Student{{ID: "stu-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func multipartRegistration(t *testing.T, withFile bool) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := map[string]string{
		"registrationType": "NEW",
		"name":             "Ruth Mensah",
		"email":            "ruth@example.com",
		"password":         "secret1",
		"gender":           "Female",
		"union":            "West Central",
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if withFile {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="paymentScreenshot"; filename="receipt.png"`)
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestStudentHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &studentServiceMock{}
	handler := NewStudentHandler(mockSvc)

	body, contentType := multipartRegistration(t, true)
	c, w := newGinContext(http.MethodPost, "/users/register", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	handler.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RegistrationTypeNew, mockSvc.registerReq.RegistrationType)
	assert.Equal(t, "West Central", mockSvc.registerReq.Union)
	assert.Equal(t, "png-bytes", string(mockSvc.uploaded))
	assert.Equal(t, "image/png", mockSvc.uploadedType)
	assert.Contains(t, w.Body.String(), "24E001")
}

func TestStudentHandlerRegisterRequiresScreenshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStudentHandler(&studentServiceMock{})

	body, contentType := multipartRegistration(t, false)
	c, w := newGinContext(http.MethodPost, "/users/register", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	handler.Register(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w))
}

func TestStudentHandlerRegisterConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStudentHandler(&studentServiceMock{registerErr: appErrors.Clone(appErrors.ErrConflict, "email already registered")})

	body, contentType := multipartRegistration(t, true)
	c, w := newGinContext(http.MethodPost, "/users/register", body.Bytes())
	c.Request.Header.Set("Content-Type", contentType)
	handler.Register(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestStudentHandlerProfileAndList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &studentServiceMock{profile: &models.StudentProfile{Student: models.Student{ID: "stu-1", PasswordHash: "secret-hash"}}}
	handler := NewStudentHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/users/profile/stu-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.Profile(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-hash")

	c, w = newGinContext(http.MethodGet, "/admin/users?search=ruth&page=2&pageSize=5", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ruth", mockSvc.listQuery.Search)
	assert.Equal(t, 2, mockSvc.listQuery.Page)
	assert.Equal(t, 5, mockSvc.listQuery.PageSize)
	assert.Contains(t, w.Body.String(), `"total_count":1`)

	mockSvc.profileErr = appErrors.Clone(appErrors.ErrNotFound, "student not found")
	c, w = newGinContext(http.MethodGet, "/users/profile/missing", nil)
	handler.Profile(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

type gradeServiceMock struct {
	studentID string
	req       dto.UpdateGradesRequest
	err       error
}

func (m *gradeServiceMock) UpdateGrades(ctx context.Context, studentID string, req dto.UpdateGradesRequest) (*dto.UpdateGradesResponse, error) {
	m.studentID = studentID
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.UpdateGradesResponse{StudentID: studentID, CumulativeGPA: 3.25}, nil
}

func TestGradeHandlerUpdateGrades(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &gradeServiceMock{}
	handler := NewGradeHandler(mockSvc)

	c, w := newGinContext(http.MethodPut, "/admin/update-grades/stu-1", []byte(`{"grades":{"RELB151":{"score":"88"},"EDUC131":{"score":72,"grade":"A","points":99}}}`))
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.UpdateGrades(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", mockSvc.studentID)
	assert.Equal(t, "88", mockSvc.req.Grades["RELB151"].Score)
	assert.Equal(t, float64(72), mockSvc.req.Grades["EDUC131"].Score)
	assert.Contains(t, w.Body.String(), `"grades updated"`)
}

func TestGradeHandlerComputationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewGradeHandler(&gradeServiceMock{err: appErrors.Wrap(gradeengine.ErrDivisionUndefined, appErrors.ErrGradeComputation.Code, appErrors.ErrGradeComputation.Status, "cannot compute gpa")})

	c, w := newGinContext(http.MethodPut, "/admin/update-grades/stu-1", []byte(`{"grades":{}}`))
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.UpdateGrades(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "GRADE_COMPUTATION_ERROR", decodeError(t, w))
}

type transcriptServiceMock struct {
	record *gradeengine.TranscriptRecord
	doc    *service.TranscriptDocument
	err    error
}

func (m *transcriptServiceMock) Record(ctx context.Context, studentID string) (*gradeengine.TranscriptRecord, error) {
	return m.record, m.err
}

func (m *transcriptServiceMock) PDF(ctx context.Context, studentID string) (*service.TranscriptDocument, error) {
	return m.doc, m.err
}

func TestTranscriptHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTranscriptHandler(&transcriptServiceMock{
		record: &gradeengine.TranscriptRecord{ScaleVersion: "transcript-v1", CGPA: 3.5},
		doc:    &service.TranscriptDocument{Filename: "24E001.pdf", Content: []byte("%PDF-1.3")},
	})

	c, w := newGinContext(http.MethodGet, "/admin/transcripts/stu-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.Record(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cgpa":3.5`)

	c, w = newGinContext(http.MethodGet, "/admin/download-certificate/stu-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="24E001.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())
}

type archiveServiceMock struct {
	createResp  *dto.ArchiveJobResponse
	createErr   error
	actorID     string
	statusResp  *dto.ArchiveStatusResponse
	download    *service.ArchiveDownload
	downloadErr error
}

func (m *archiveServiceMock) CreateJob(ctx context.Context, actorID string) (*dto.ArchiveJobResponse, error) {
	m.actorID = actorID
	return m.createResp, m.createErr
}

func (m *archiveServiceMock) GetStatus(ctx context.Context, id string) (*dto.ArchiveStatusResponse, error) {
	return m.statusResp, nil
}

func (m *archiveServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ArchiveDownload, error) {
	return m.download, m.downloadErr
}

func TestArchiveHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &archiveServiceMock{createResp: &dto.ArchiveJobResponse{ID: "job-1", Status: models.ArchiveStatusQueued}}
	handler := NewArchiveHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/admin/download-certificates", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "adm-1", mockSvc.actorID)

	c, w = newGinContext(http.MethodPost, "/admin/download-certificates", nil)
	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/admin/download-certificates", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Role: models.RoleAdmin})
	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	mockSvc.createErr = appErrors.Clone(appErrors.ErrNotFound, "no students found")
	c, w = newGinContext(http.MethodPost, "/admin/download-certificates", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	handler.Create(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewArchiveHandler(&archiveServiceMock{statusResp: &dto.ArchiveStatusResponse{ID: "job-1", Status: models.ArchiveStatusProcessing, Progress: 40}})

	c, w := newGinContext(http.MethodGet, "/admin/download-certificates/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"progress":40`)
}

func TestArchiveHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp(t.TempDir(), "archive*.zip")
	require.NoError(t, err)
	_, _ = file.WriteString("zip-data")
	_, _ = file.Seek(0, 0)

	handler := NewArchiveHandler(&archiveServiceMock{download: &service.ArchiveDownload{File: file, Filename: "Certificates.zip", Size: 8}})
	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Certificates.zip")
	assert.Equal(t, "zip-data", w.Body.String())
}

func TestArchiveHandlerDownloadForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewArchiveHandler(&archiveServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})

	c, w := newGinContext(http.MethodGet, "/export/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

type exportServiceMock struct {
	payload []byte
	err     error
}

func (m exportServiceMock) StudentsCSV(ctx context.Context) ([]byte, error) {
	return m.payload, m.err
}

func TestExportHandlerStudentsCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(exportServiceMock{payload: []byte("registrationNumber\n24E001\n")})

	c, w := newGinContext(http.MethodGet, "/admin/export/csv", nil)
	handler.StudentsCSV(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="students.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	handler = NewExportHandler(exportServiceMock{err: errors.New("db down")})
	c, w = newGinContext(http.MethodGet, "/admin/export/csv", nil)
	handler.StudentsCSV(c)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

type metricsStub struct{}

func (metricsStub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("registrar_metric 1\n"))
	})
}

type pingStub struct{ err error }

func (p pingStub) PingContext(ctx context.Context) error { return p.err }

func TestMetricsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(metricsStub{}, pingStub{})

	c, w := newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	assert.Contains(t, w.Body.String(), "registrar_metric")

	c, w = newGinContext(http.MethodGet, "/health", nil)
	handler.Health(c)
	assert.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(nil, pingStub{err: errors.New("down")})
	c, w = newGinContext(http.MethodGet, "/health", nil)
	handler.Health(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
