package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spicer-enrichment/registrar-api/internal/dto"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
	"github.com/spicer-enrichment/registrar-api/pkg/response"
)

type gradeService interface {
	UpdateGrades(ctx context.Context, studentID string, req dto.UpdateGradesRequest) (*dto.UpdateGradesResponse, error)
}

// GradeHandler handles grade entry.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(svc gradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// UpdateGrades godoc
// @Summary Update a student's course scores
// @Description Letter grades and points are derived server-side. Unknown course keys are ignored.
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.UpdateGradesRequest true "Scores keyed by course"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/update-grades/{id} [put]
func (h *GradeHandler) UpdateGrades(c *gin.Context) {
	var req dto.UpdateGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grades payload"))
		return
	}
	res, err := h.service.UpdateGrades(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil, map[string]interface{}{"message": "grades updated"})
}
