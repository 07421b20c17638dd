package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/spicer-enrichment/registrar-api/pkg/response"
)

type exportService interface {
	StudentsCSV(ctx context.Context) ([]byte, error)
}

// ExportHandler serves roster exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// StudentsCSV godoc
// @Summary Export every student as CSV
// @Tags Exports
// @Produce text/csv
// @Success 200 {file} binary
// @Router /admin/export/csv [get]
func (h *ExportHandler) StudentsCSV(c *gin.Context) {
	payload, err := h.service.StudentsCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "students.csv", "text/csv; charset=utf-8", payload)
}
