package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduplex/course-api/internal/middleware"
	"github.com/eduplex/course-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// includeInactive reports whether the request may read soft-deleted rows.
// Only admins get the bypass, and only when they ask for it explicitly.
func includeInactive(c *gin.Context) bool {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleAdmin {
		return false
	}
	include, err := strconv.ParseBool(c.Query("include_inactive"))
	return err == nil && include
}
