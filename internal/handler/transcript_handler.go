package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spicer-enrichment/registrar-api/internal/gradeengine"
	"github.com/spicer-enrichment/registrar-api/internal/service"
	"github.com/spicer-enrichment/registrar-api/pkg/response"
)

type transcriptService interface {
	Record(ctx context.Context, studentID string) (*gradeengine.TranscriptRecord, error)
	PDF(ctx context.Context, studentID string) (*service.TranscriptDocument, error)
}

// TranscriptHandler issues single-student transcripts.
type TranscriptHandler struct {
	service transcriptService
}

// NewTranscriptHandler constructs the handler.
func NewTranscriptHandler(svc transcriptService) *TranscriptHandler {
	return &TranscriptHandler{service: svc}
}

// Record godoc
// @Summary Transcript record
// @Tags Transcripts
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/transcripts/{id} [get]
func (h *TranscriptHandler) Record(c *gin.Context) {
	record, err := h.service.Record(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Download godoc
// @Summary Download a transcript PDF
// @Tags Transcripts
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /admin/download-certificate/{id} [get]
func (h *TranscriptHandler) Download(c *gin.Context) {
	doc, err := h.service.PDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, "application/pdf", doc.Content)
}
