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

type authService interface {
	StudentLogin(ctx context.Context, req models.StudentLoginRequest) (*models.LoginResponse, error)
	AdminLogin(ctx context.Context, req models.AdminLoginRequest) (*models.LoginResponse, error)
	RegisterAdmin(ctx context.Context, req dto.AdminRegisterRequest) (*models.Admin, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// StudentLogin godoc
// @Summary Authenticate student
// @Description Authenticate a student by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.StudentLoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users/login [post]
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req models.StudentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.StudentLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// AdminLogin godoc
// @Summary Authenticate administrator
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.AdminLoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/login [post]
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.AdminLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// RegisterAdmin godoc
// @Summary Bootstrap an administrator account
// @Description Only available when ENABLE_ADMIN_BOOTSTRAP is set
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.AdminRegisterRequest true "Admin payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/register [post]
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	var req dto.AdminRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admin payload"))
		return
	}

	admin, err := h.service.RegisterAdmin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, admin, "admin registered")
}
