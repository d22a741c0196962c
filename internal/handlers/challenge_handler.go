package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/middleware"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateChallengeRequest struct {
	ChallengeName string `json:"challenge_name" binding:"required"`
}

// --- POST /challenges ---
func CreateChallenge(c *gin.Context) {
	var input CreateChallengeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid challenge payload")
		return
	}
	if aerr := validateName(input.ChallengeName, "Challenge name"); aerr != nil {
		problem(c, aerr)
		return
	}

	db := database.DB.WithContext(c.Request.Context())

	var count int64
	if err := db.Model(&models.Challenge{}).
		Where("LOWER(TRIM(challenge_name)) = ?", normalized(input.ChallengeName)).
		Count(&count).Error; err != nil {
		problem(c, apperr.Transaction("SaveChallengeCommand.QueryFailed", err))
		return
	}
	if count > 0 {
		problem(c, apperr.Duplicate("SaveChallengeCommand.DuplicateChallengeName",
			"Challenge with the name '%s' already exists.", input.ChallengeName))
		return
	}

	challenge := models.Challenge{ChallengeName: strings.TrimSpace(input.ChallengeName)}
	if err := db.Create(&challenge).Error; err != nil {
		problem(c, apperr.Transaction("SaveChallengeCommand.TransactionFailed", err))
		return
	}

	c.Header("Location", "/challenges/"+itoa(challenge.ChallengeID))
	c.JSON(http.StatusCreated, challenge)
}

// --- GET /challenges ---
func GetChallenges(c *gin.Context) {
	var challenges []models.Challenge
	if err := database.DB.Find(&challenges).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch challenges"})
		return
	}
	c.JSON(http.StatusOK, challenges)
}

type CreateChallengesStateRequest struct {
	PlantID                uint      `json:"plant_id" binding:"required"`
	ChallengeID            uint      `json:"challenge_id" binding:"required"`
	ChallengeStartDateTime time.Time `json:"challenge_start_date_time" binding:"required"`
}

// --- POST /challengesstate ---
// Opens a challenge at a plant. Only one open row per (plant, challenge)
// may exist at a time; closing and reopening is fine.
func CreateChallengesState(c *gin.Context) {
	var input CreateChallengesStateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid challenge state payload")
		return
	}
	if input.ChallengeStartDateTime.After(time.Now().UTC()) {
		problem(c, apperr.Validation("SaveChallengeStateCommand.Invalid",
			"Challenge start date cannot be in the future."))
		return
	}

	if ok, aerr := plantExists(c, input.PlantID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SaveChallengeStateCommand.PlantNotFound",
			"Plant with ID %d does not exist.", input.PlantID))
		return
	}

	db := database.DB.WithContext(c.Request.Context())

	var challengeCount int64
	if err := db.Model(&models.Challenge{}).
		Where("challenge_id = ?", input.ChallengeID).
		Count(&challengeCount).Error; err != nil {
		problem(c, apperr.Transaction("SaveChallengeStateCommand.QueryFailed", err))
		return
	}
	if challengeCount == 0 {
		problem(c, apperr.NotFound("SaveChallengeStateCommand.ChallengeNotFound",
			"Challenge with ID %d does not exist.", input.ChallengeID))
		return
	}

	var openCount int64
	if err := db.Model(&models.ChallengesState{}).
		Where("plant_id = ? AND challenge_id = ? AND state = ?", input.PlantID, input.ChallengeID, true).
		Count(&openCount).Error; err != nil {
		problem(c, apperr.Transaction("SaveChallengeStateCommand.QueryFailed", err))
		return
	}
	if openCount > 0 {
		problem(c, apperr.Duplicate("SaveChallengeStateCommand.DuplicateEntry",
			"Challenge with ID %d is already open at Plant ID %d.", input.ChallengeID, input.PlantID))
		return
	}

	state := models.ChallengesState{
		PlantID:                input.PlantID,
		ChallengeID:            input.ChallengeID,
		ChallengeStartDateTime: input.ChallengeStartDateTime,
		State:                  true,
	}
	if err := db.Create(&state).Error; err != nil {
		problem(c, apperr.Transaction("SaveChallengeStateCommand.TransactionFailed", err))
		return
	}

	c.JSON(http.StatusCreated, state)
}

// --- PUT /updatechallengestate/:id/closed ---
func CloseChallengesState(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		invalid(c, "id must be a positive integer")
		return
	}

	db := database.DB.WithContext(c.Request.Context())

	var state models.ChallengesState
	err := db.First(&state, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		problem(c, apperr.NotFound("UpdateChallengeStateCommand.NotFound",
			"Challenge state with ID %d does not exist.", id))
		return
	}
	if err != nil {
		problem(c, apperr.Transaction("UpdateChallengeStateCommand.QueryFailed", err))
		return
	}
	if !state.State {
		problem(c, apperr.BusinessRule("UpdateChallengeStateCommand.AlreadyClosed",
			"Challenge state with ID %d is already closed.", id))
		return
	}

	state.State = false
	if err := db.Save(&state).Error; err != nil {
		problem(c, apperr.Transaction("UpdateChallengeStateCommand.TransactionFailed", err))
		return
	}

	c.JSON(http.StatusOK, state)
}

// --- GET /challengesstate?plantId=&startDate=&endDate= ---
// plantId alone lists open rows at the plant. plantId with a date range
// lists closed rows whose start falls inside the range. No filters at all
// returns everything, except partners, who only see their own plant.
func GetChallengesStates(c *gin.Context) {
	plantID, hasPlant := uintQuery(c, "plantId")
	if hasPlant && plantID == 0 {
		invalid(c, "plantId must be a positive integer")
		return
	}
	if hasPlant && !middleware.PartnerCanSeePlant(c, plantID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to view this plant"})
		return
	}

	rawStart, rawEnd := c.Query("startDate"), c.Query("endDate")
	if (rawStart != "") != (rawEnd != "") {
		invalid(c, "startDate and endDate must be supplied together")
		return
	}

	query := database.DB.Preload("Plant").Preload("Challenge")

	switch {
	case hasPlant && rawStart != "" && rawEnd != "":
		start, err := time.Parse(time.RFC3339, rawStart)
		if err != nil {
			invalid(c, "startDate must be an RFC3339 timestamp")
			return
		}
		end, err := time.Parse(time.RFC3339, rawEnd)
		if err != nil {
			invalid(c, "endDate must be an RFC3339 timestamp")
			return
		}
		query = query.Where("plant_id = ? AND state = ? AND challenge_start_date_time BETWEEN ? AND ?",
			plantID, false, start, end)
	case hasPlant:
		query = query.Where("plant_id = ? AND state = ?", plantID, true)
	default:
		if mine, isPartner := middleware.PartnerPlant(c); isPartner {
			query = query.Where("plant_id = ?", mine)
		}
	}

	var states []models.ChallengesState
	if err := query.Find(&states).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch challenge states"})
		return
	}
	c.JSON(http.StatusOK, states)
}
