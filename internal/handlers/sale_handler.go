package handlers

import (
	"net/http"
	"time"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/ledger"
	"github.com/sachindewan/CoilApplication/internal/middleware"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/gin-gonic/gin"
)

type CreateSaleRequest struct {
	PlantID      uint                    `json:"plant_id" binding:"required"`
	Weight       float64                 `json:"weight"`
	SaleDate     time.Time               `json:"sale_date" binding:"required"`
	RawMaterials []models.SaleAllocation `json:"raw_materials" binding:"required,min=1"`
}

// --- POST /sales ---
// The allocation percentages drive proportional ledger decrements, so the
// whole thing runs under one transaction with the ledger rows locked.
func CreateSale(c *gin.Context) {
	var input CreateSaleRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid sale payload")
		return
	}
	if input.Weight <= 0 {
		problem(c, apperr.Validation("SaveSaleCommand.Invalid", "Weight must be greater than zero."))
		return
	}
	if input.SaleDate.After(time.Now().UTC()) {
		problem(c, apperr.Validation("SaveSaleCommand.Invalid", "Sale date cannot be in the future."))
		return
	}

	if ok, aerr := plantExists(c, input.PlantID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SaveSaleCommand.PlantNotFound",
			"Plant with ID %d does not exist.", input.PlantID))
		return
	}

	sale := models.Sale{
		PlantID:      input.PlantID,
		Weight:       input.Weight,
		SaleDate:     input.SaleDate,
		RawMaterials: models.SaleAllocations(input.RawMaterials),
	}

	db := database.DB.WithContext(c.Request.Context())
	tx := db.Begin()
	if tx.Error != nil {
		problem(c, apperr.Transaction("SaveSaleCommand.TransactionFailed", tx.Error))
		return
	}

	if aerr := ledger.ApplySale(tx, input.PlantID, input.RawMaterials); aerr != nil {
		tx.Rollback()
		problem(c, aerr)
		return
	}
	if err := tx.Create(&sale).Error; err != nil {
		tx.Rollback()
		problem(c, apperr.Transaction("SaveSaleCommand.TransactionFailed", err))
		return
	}
	if err := tx.Commit().Error; err != nil {
		problem(c, apperr.Transaction("SaveSaleCommand.TransactionFailed", err))
		return
	}

	c.Header("Location", "/sales/"+itoa(sale.SaleID))
	c.JSON(http.StatusCreated, sale)
}

// --- GET /sales?startDate=&endDate=&plantId= ---
// Partners asking for another plant are rejected; with no plantId they only
// see their own plant's rows.
func GetSales(c *gin.Context) {
	query := database.DB.Model(&models.Sale{})

	if plantID, present := uintQuery(c, "plantId"); present {
		if plantID == 0 {
			invalid(c, "plantId must be a positive integer")
			return
		}
		if !middleware.PartnerCanSeePlant(c, plantID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to view this plant"})
			return
		}
		query = query.Where("plant_id = ?", plantID)
	} else if mine, isPartner := middleware.PartnerPlant(c); isPartner {
		query = query.Where("plant_id = ?", mine)
	}
	if raw := c.Query("startDate"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			invalid(c, "startDate must be an RFC3339 timestamp")
			return
		}
		query = query.Where("sale_date >= ?", start)
	}
	if raw := c.Query("endDate"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			invalid(c, "endDate must be an RFC3339 timestamp")
			return
		}
		query = query.Where("sale_date <= ?", end)
	}

	var sales []models.Sale
	if err := query.Find(&sales).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sales"})
		return
	}
	c.JSON(http.StatusOK, sales)
}

type CreateWastageRequest struct {
	PlantID           uint    `json:"plant_id" binding:"required"`
	RawMaterialID     uint    `json:"raw_material_id" binding:"required"`
	WastagePercentage float64 `json:"wastage_percentage"`
	WastageReason     string  `json:"wastage_reason" binding:"required,max=500"`
}

// --- POST /savewastage ---
func CreateWastage(c *gin.Context) {
	var input CreateWastageRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid wastage payload")
		return
	}
	if input.WastagePercentage <= 0 || input.WastagePercentage > 100 {
		problem(c, apperr.Validation("SaveWastageCommand.Invalid",
			"Wastage percentage must be between 0 and 100."))
		return
	}
	if ok, aerr := plantExists(c, input.PlantID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SaveWastageCommand.PlantNotFound",
			"Plant with ID %d does not exist.", input.PlantID))
		return
	}
	if ok, aerr := rawMaterialExists(c, input.RawMaterialID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SaveWastageCommand.RawMaterialNotFound",
			"Raw Material with ID %d does not exist.", input.RawMaterialID))
		return
	}

	wastage := models.Wastage{
		PlantID:           input.PlantID,
		RawMaterialID:     input.RawMaterialID,
		WastagePercentage: input.WastagePercentage,
		WastageReason:     input.WastageReason,
	}

	db := database.DB.WithContext(c.Request.Context())
	tx := db.Begin()
	if tx.Error != nil {
		problem(c, apperr.Transaction("SaveWastageCommand.TransactionFailed", tx.Error))
		return
	}

	if aerr := ledger.ApplyWastage(tx, input.PlantID, input.RawMaterialID, input.WastagePercentage); aerr != nil {
		tx.Rollback()
		problem(c, aerr)
		return
	}
	if err := tx.Create(&wastage).Error; err != nil {
		tx.Rollback()
		problem(c, apperr.Transaction("SaveWastageCommand.TransactionFailed", err))
		return
	}
	if err := tx.Commit().Error; err != nil {
		problem(c, apperr.Transaction("SaveWastageCommand.TransactionFailed", err))
		return
	}

	c.JSON(http.StatusCreated, wastage)
}

// --- GET /wastage/availablequantity/:plantId/:rawMaterialId ---
// Reports the purchase total accumulated since the last recorded wastage,
// the base a new wastage percentage would be applied to.
func GetWastageAvailableQuantity(c *gin.Context) {
	plantID, ok := uintParam(c, "plantId")
	if !ok {
		invalid(c, "plantId must be a positive integer")
		return
	}
	rawMaterialID, ok := uintParam(c, "rawMaterialId")
	if !ok {
		invalid(c, "rawMaterialId must be a positive integer")
		return
	}
	if !middleware.PartnerCanSeePlant(c, plantID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to view this plant"})
		return
	}

	available, aerr := ledger.AvailableSinceLastWastage(
		database.DB.WithContext(c.Request.Context()), plantID, rawMaterialID)
	if aerr != nil {
		problem(c, aerr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plant_id":           plantID,
		"raw_material_id":    rawMaterialID,
		"available_quantity": available,
	})
}
