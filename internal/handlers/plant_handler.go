package handlers

import (
	"net/http"
	"strings"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/gin-gonic/gin"
)

type CreatePlantRequest struct {
	PlantName string `json:"plant_name" binding:"required"`
	Location  string `json:"location" binding:"required"`
}

// --- POST /plant ---
func CreatePlant(c *gin.Context) {
	var input CreatePlantRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Plant name and location are required.")
		return
	}
	if aerr := validateName(input.PlantName, "Plant name"); aerr != nil {
		problem(c, aerr)
		return
	}
	if aerr := validateName(input.Location, "Location"); aerr != nil {
		problem(c, aerr)
		return
	}

	db := database.DB.WithContext(c.Request.Context())

	var count int64
	if err := db.Model(&models.Plant{}).
		Where("LOWER(TRIM(plant_name)) = ? AND LOWER(TRIM(location)) = ?",
			normalized(input.PlantName), normalized(input.Location)).
		Count(&count).Error; err != nil {
		problem(c, apperr.Transaction("SavePlantCommand.QueryFailed", err))
		return
	}
	if count > 0 {
		problem(c, apperr.Duplicate("SavePlantCommand.DuplicatePlant",
			"A plant with the name '%s' and location '%s' already exists.",
			input.PlantName, input.Location))
		return
	}

	plant := models.Plant{
		PlantName: strings.TrimSpace(input.PlantName),
		Location:  strings.TrimSpace(input.Location),
		Parties:   []models.Party{},
	}
	if err := db.Create(&plant).Error; err != nil {
		problem(c, apperr.Transaction("SavePlantCommand.SaveFailed", err))
		return
	}

	c.Header("Location", "/plant/"+itoa(plant.PlantID))
	c.JSON(http.StatusCreated, plant)
}

// --- GET /plants ---
func GetPlants(c *gin.Context) {
	var plants []models.Plant
	if err := database.DB.Preload("Parties").Find(&plants).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plants"})
		return
	}
	// Keep the party list a list, not null, for plants without parties.
	for i := range plants {
		if plants[i].Parties == nil {
			plants[i].Parties = []models.Party{}
		}
	}
	c.JSON(http.StatusOK, plants)
}

type CreatePartyRequest struct {
	PartyName string `json:"party_name" binding:"required"`
	PlantID   uint   `json:"plant_id" binding:"required"`
}

// --- POST /party ---
func CreateParty(c *gin.Context) {
	var input CreatePartyRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Party name and plant_id are required.")
		return
	}
	if aerr := validateName(input.PartyName, "Party name"); aerr != nil {
		problem(c, aerr)
		return
	}

	exists, aerr := plantExists(c, input.PlantID)
	if aerr != nil {
		problem(c, aerr)
		return
	}
	if !exists {
		problem(c, apperr.NotFound("SavePartyCommand.PlantNotFound",
			"Plant with ID %d does not exist.", input.PlantID))
		return
	}

	db := database.DB.WithContext(c.Request.Context())

	var count int64
	if err := db.Model(&models.Party{}).
		Where("LOWER(TRIM(party_name)) = ? AND plant_id = ?",
			normalized(input.PartyName), input.PlantID).
		Count(&count).Error; err != nil {
		problem(c, apperr.Transaction("SavePartyCommand.QueryFailed", err))
		return
	}
	if count > 0 {
		problem(c, apperr.Duplicate("SavePartyCommand.DuplicateParty",
			"A party with the name '%s' already exists for Plant ID %d.",
			input.PartyName, input.PlantID))
		return
	}

	party := models.Party{
		PartyName: strings.TrimSpace(input.PartyName),
		PlantID:   input.PlantID,
	}
	if err := db.Create(&party).Error; err != nil {
		problem(c, apperr.Transaction("SavePartyCommand.SaveFailed", err))
		return
	}

	c.Header("Location", "/party/"+itoa(party.PartyID))
	c.JSON(http.StatusCreated, party)
}

// --- GET /parties ---
func GetParties(c *gin.Context) {
	var parties []models.Party
	if err := database.DB.Find(&parties).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch parties"})
		return
	}
	c.JSON(http.StatusOK, parties)
}

type CreateRawMaterialRequest struct {
	RawMaterialName string `json:"raw_material_name" binding:"required"`
}

// --- POST /rawmaterial ---
// Ledger rows are NOT seeded here; they appear per plant on first purchase.
func CreateRawMaterial(c *gin.Context) {
	var input CreateRawMaterialRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Raw material name is required.")
		return
	}
	if aerr := validateName(input.RawMaterialName, "Raw material name"); aerr != nil {
		problem(c, aerr)
		return
	}

	db := database.DB.WithContext(c.Request.Context())

	var count int64
	if err := db.Model(&models.RawMaterial{}).
		Where("LOWER(TRIM(raw_material_name)) = ?", normalized(input.RawMaterialName)).
		Count(&count).Error; err != nil {
		problem(c, apperr.Transaction("SaveRawMaterialCommand.QueryFailed", err))
		return
	}
	if count > 0 {
		problem(c, apperr.Duplicate("SaveRawMaterialCommand.DuplicateRawMaterial",
			"A raw material with the name '%s' already exists.", input.RawMaterialName))
		return
	}

	rawMaterial := models.RawMaterial{
		RawMaterialName: strings.TrimSpace(input.RawMaterialName),
	}
	if err := db.Create(&rawMaterial).Error; err != nil {
		problem(c, apperr.Transaction("SaveRawMaterialCommand.SaveFailed", err))
		return
	}

	c.Header("Location", "/rawmaterial/"+itoa(rawMaterial.RawMaterialID))
	c.JSON(http.StatusCreated, rawMaterial)
}

// --- GET /rawmaterials ---
func GetRawMaterials(c *gin.Context) {
	var rawMaterials []models.RawMaterial
	if err := database.DB.Find(&rawMaterials).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch raw materials"})
		return
	}
	c.JSON(http.StatusOK, rawMaterials)
}
