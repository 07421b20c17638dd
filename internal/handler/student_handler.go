package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spicer-enrichment/registrar-api/internal/dto"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
	"github.com/spicer-enrichment/registrar-api/pkg/response"
)

// PaymentScreenshotField is the multipart field carrying the payment proof.
const PaymentScreenshotField = "paymentScreenshot"

type studentService interface {
	Register(ctx context.Context, req dto.RegisterStudentRequest, screenshot *dto.UploadedFile) (*dto.RegisterStudentResponse, error)
	Profile(ctx context.Context, id string) (*models.StudentProfile, error)
	List(ctx context.Context, query dto.StudentListQuery) ([]models.Student, *models.Pagination, error)
}

// StudentHandler manages student registration and lookups.
type StudentHandler struct {
	service studentService
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(svc studentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// Register godoc
// @Summary Register a student
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param registrationType formData string true "NEW or OLD"
// @Param name formData string true "Full name"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param dateOfBirth formData string true "Date of birth"
// @Param basisOfAdmission formData string true "Basis of admission"
// @Param collegeAttended formData string true "College attended"
// @Param gender formData string true "Male, Female or Others"
// @Param maritalStatus formData string true "Married or Unmarried"
// @Param motherTongue formData string true "Mother tongue"
// @Param isAdventist formData string true "Yes or No"
// @Param phoneNumber formData string true "Phone number"
// @Param union formData string false "Union"
// @Param sectionRegionConference formData string false "Section, region or conference"
// @Param address formData string false "Address"
// @Param paymentScreenshot formData file true "Payment screenshot"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /users/register [post]
func (h *StudentHandler) Register(c *gin.Context) {
	var req dto.RegisterStudentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	fileHeader, err := c.FormFile(PaymentScreenshotField)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "payment screenshot is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	upload := &dto.UploadedFile{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Content:     src,
	}
	res, err := h.service.Register(c.Request.Context(), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res, "student registered")
}

// Profile godoc
// @Summary Get a student profile
// @Description Admins may read any profile, students only their own
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/profile/{id} [get]
func (h *StudentHandler) Profile(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Name, email or registration number"
// @Param registrationType query string false "NEW or OLD"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Param sortBy query string false "Sort column"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *StudentHandler) List(c *gin.Context) {
	var query dto.StudentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	students, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}
