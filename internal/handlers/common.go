package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/gin-gonic/gin"
)

// problem writes the shared failure payload: {status, title, detail, instance}.
func problem(c *gin.Context, err *apperr.Error) {
	status := err.Status()
	title := "Invalid Request"
	switch status {
	case http.StatusNotFound:
		title = "Resource Not Found"
	case http.StatusInternalServerError:
		title = "An unexpected error occurred."
	}
	c.JSON(status, gin.H{
		"status":    status,
		"title":     title,
		"detail":    err.Message,
		"instance":  c.Request.URL.Path,
		"errorCode": err.Code,
	})
}

// invalid reports a field-level validation failure.
func invalid(c *gin.Context, detail string) {
	problem(c, apperr.Validation("Request.Invalid", "%s", detail))
}

// validateName applies the shared naming rules for plants, parties,
// materials and challenges.
func validateName(value, label string) *apperr.Error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return apperr.Validation("Request.Invalid", "%s is required.", label)
	}
	if len(trimmed) > 1000 {
		return apperr.Validation("Request.Invalid", "%s exceeds 1000 characters.", label)
	}
	hasAlnum := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasAlnum = true
			break
		}
	}
	if !hasAlnum {
		return apperr.Validation("Request.Invalid", "%s must contain at least one letter or number.", label)
	}
	if !unicode.IsLetter([]rune(trimmed)[0]) {
		return apperr.Validation("Request.Invalid", "%s must start with an alphabet.", label)
	}
	return nil
}

// normalized lowers and trims a name for case-insensitive uniqueness checks.
func normalized(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// uintParam reads a positive integer path parameter.
func uintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || value == 0 {
		return 0, false
	}
	return uint(value), true
}

// uintQuery reads an optional positive integer query parameter. The bool
// reports presence; a present-but-garbage value comes back as (0, true).
func uintQuery(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, true
	}
	return uint(value), true
}

func plantExists(c *gin.Context, plantID uint) (bool, *apperr.Error) {
	var count int64
	err := database.DB.WithContext(c.Request.Context()).
		Model(&models.Plant{}).
		Where("plant_id = ?", plantID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Transaction("Request.QueryFailed", err)
	}
	return count > 0, nil
}

func partyExists(c *gin.Context, partyID uint) (bool, *apperr.Error) {
	var count int64
	err := database.DB.WithContext(c.Request.Context()).
		Model(&models.Party{}).
		Where("party_id = ?", partyID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Transaction("Request.QueryFailed", err)
	}
	return count > 0, nil
}

func rawMaterialExists(c *gin.Context, rawMaterialID uint) (bool, *apperr.Error) {
	var count int64
	err := database.DB.WithContext(c.Request.Context()).
		Model(&models.RawMaterial{}).
		Where("raw_material_id = ?", rawMaterialID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Transaction("Request.QueryFailed", err)
	}
	return count > 0, nil
}
