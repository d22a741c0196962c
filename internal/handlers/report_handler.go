package handlers

import (
	"net/http"
	"time"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/middleware"

	"github.com/gin-gonic/gin"
)

const defaultCostWindowDays = 15

// --- GET /cost/average?startDate=&endDate=&plantId= ---
// Window defaults to the trailing 15 days when the caller gives no range.
func GetAverageCost(c *gin.Context) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -defaultCostWindowDays)

	if raw := c.Query("startDate"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			invalid(c, "startDate must be an RFC3339 timestamp")
			return
		}
		start = parsed
	}
	if raw := c.Query("endDate"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			invalid(c, "endDate must be an RFC3339 timestamp")
			return
		}
		end = parsed
	}
	if end.Before(start) {
		invalid(c, "endDate must not be before startDate")
		return
	}

	var plantID *uint
	if id, present := uintQuery(c, "plantId"); present {
		if id == 0 {
			invalid(c, "plantId must be a positive integer")
			return
		}
		if !middleware.PartnerCanSeePlant(c, id) {
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to view this plant"})
			return
		}
		plantID = &id
	}

	rows, err := database.AverageCost(database.DB.WithContext(c.Request.Context()), start, end, plantID)
	if err != nil {
		problem(c, apperr.Transaction("GetAverageCostQuery.QueryFailed", err))
		return
	}
	c.JSON(http.StatusOK, rows)
}

// --- GET /health (public) ---
func Health(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK

	db, err := database.DB.DB()
	if err != nil || db.Ping() != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
