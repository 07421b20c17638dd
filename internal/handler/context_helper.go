package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/spicer-enrichment/registrar-api/internal/middleware"
	"github.com/spicer-enrichment/registrar-api/internal/models"
)

// requester returns the caller authenticated by the JWT middleware. Claims without
// a subject are treated as anonymous.
func requester(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims == nil || claims.UserID == "" {
		return nil, false
	}
	return claims, true
}
