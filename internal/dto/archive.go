package dto

import "github.com/spicer-enrichment/registrar-api/internal/models"

// ArchiveJobResponse is returned after enqueueing a bulk transcript job.
type ArchiveJobResponse struct {
	ID       string               `json:"id"`
	Status   models.ArchiveStatus `json:"status"`
	Progress int                  `json:"progress"`
}

// ArchiveStatusResponse exposes job progress metadata.
type ArchiveStatusResponse struct {
	ID           string               `json:"id"`
	Status       models.ArchiveStatus `json:"status"`
	Progress     int                  `json:"progress"`
	StudentCount int                  `json:"studentCount"`
	ResultURL    *string              `json:"resultUrl,omitempty"`
	Error        *string              `json:"error,omitempty"`
}
