package middleware

import (
	"net/http"
	"strings"

	"github.com/sachindewan/CoilApplication/internal/auth"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuthMiddleware checks the bearer token and threads the caller's identity
// into the request context so storage writes are audited against them.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must start with Bearer"})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Set("plantID", claims.PlantID)

		// Downstream gorm calls pick the actor up via WithContext.
		c.Request = c.Request.WithContext(models.WithActor(c.Request.Context(), claims.Email))

		c.Next()
	}
}

// RequireRole is a secondary guard that checks for specific permissions
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if exists {
			for _, allowed := range allowedRoles {
				if role == allowed {
					c.Next()
					return
				}
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
		c.Abort()
	}
}

// PartnerPlant returns the plant a partner caller is bound to. The second
// return is false for every other role.
func PartnerPlant(c *gin.Context) (uint, bool) {
	role, _ := c.Get("role")
	if role != "partner" {
		return 0, false
	}
	assigned, _ := c.Get("plantID")
	assignedID, ok := assigned.(uint)
	return assignedID, ok
}

// PartnerCanSeePlant enforces the partner plant scope: a partner may only
// read data for the plant they were assigned to. Other roles pass through.
func PartnerCanSeePlant(c *gin.Context, plantID uint) bool {
	assignedID, isPartner := PartnerPlant(c)
	if !isPartner {
		return true
	}
	return assignedID == plantID
}

// Recovery converts a panic into the 500 problem payload with a correlation
// id. The id lands in the log line and the response, never the stack trace.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				correlationID := uuid.NewString()
				logrus.WithFields(logrus.Fields{
					"correlation_id": correlationID,
					"path":           c.Request.URL.Path,
					"panic":          rec,
				}).Error("unhandled panic while serving request")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status":        http.StatusInternalServerError,
					"title":         "An unexpected error occurred.",
					"detail":        "The request could not be processed. Quote the correlation id when reporting the issue.",
					"instance":      c.Request.URL.Path,
					"correlationId": correlationID,
				})
			}
		}()
		c.Next()
	}
}
