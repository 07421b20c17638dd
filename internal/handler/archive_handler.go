package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spicer-enrichment/registrar-api/internal/dto"
	"github.com/spicer-enrichment/registrar-api/internal/service"
	appErrors "github.com/spicer-enrichment/registrar-api/pkg/errors"
	"github.com/spicer-enrichment/registrar-api/pkg/response"
)

type archiveService interface {
	CreateJob(ctx context.Context, actorID string) (*dto.ArchiveJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.ArchiveStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ArchiveDownload, error)
}

// ArchiveHandler exposes bulk transcript archive endpoints.
type ArchiveHandler struct {
	service archiveService
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(svc archiveService) *ArchiveHandler {
	return &ArchiveHandler{service: svc}
}

// Create godoc
// @Summary Queue a ZIP of every student's transcript
// @Tags Transcripts
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/download-certificates [post]
func (h *ArchiveHandler) Create(c *gin.Context) {
	claims, ok := requester(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Bulk transcript job status
// @Tags Transcripts
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/download-certificates/{id} [get]
func (h *ArchiveHandler) Status(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished transcript archive
// @Tags Transcripts
// @Produce application/zip
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ArchiveHandler) Download(c *gin.Context) {
	result, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.Size, "application/zip", result.File, nil)
}
