package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/ledger"
	"github.com/sachindewan/CoilApplication/internal/middleware"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CreatePurchaseRequest struct {
	PlantID         uint            `json:"plant_id" binding:"required"`
	BillNumber      string          `json:"bill_number" binding:"required,max=100"`
	Weight          decimal.Decimal `json:"weight"`
	Rate            decimal.Decimal `json:"rate"`
	BillValue       decimal.Decimal `json:"bill_value"`
	GST             int             `json:"gst"`
	TotalBillAmount decimal.Decimal `json:"total_bill_amount"`
	PurchaseDate    time.Time       `json:"purchase_date" binding:"required"`
	RawMaterialID   uint            `json:"raw_material_id" binding:"required"`
	PartyID         uint            `json:"party_id" binding:"required"`
}

func (r *CreatePurchaseRequest) validate() *apperr.Error {
	switch {
	case !r.Weight.IsPositive():
		return apperr.Validation("SaveRawMaterialPurchaseCommand.Invalid", "Weight must be greater than zero.")
	case !r.Rate.IsPositive():
		return apperr.Validation("SaveRawMaterialPurchaseCommand.Invalid", "Rate must be greater than zero.")
	case !r.BillValue.IsPositive():
		return apperr.Validation("SaveRawMaterialPurchaseCommand.Invalid", "Bill value must be greater than zero.")
	case r.GST <= 0:
		return apperr.Validation("SaveRawMaterialPurchaseCommand.Invalid", "GST must be greater than zero.")
	case !r.TotalBillAmount.IsPositive():
		return apperr.Validation("SaveRawMaterialPurchaseCommand.Invalid", "Total bill amount must be greater than zero.")
	case r.PurchaseDate.After(time.Now().UTC()):
		return apperr.Validation("SaveRawMaterialPurchaseCommand.Invalid", "Purchase date cannot be in the future.")
	}
	return nil
}

// --- POST /rawmaterialpurchase ---
// Inserts the purchase record and bumps the ledger balance in one transaction.
func CreateRawMaterialPurchase(c *gin.Context) {
	var input CreatePurchaseRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid purchase payload")
		return
	}
	if aerr := input.validate(); aerr != nil {
		problem(c, aerr)
		return
	}

	if ok, aerr := plantExists(c, input.PlantID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SaveRawMaterialPurchaseCommand.PlantNotFound",
			"Plant with ID %d does not exist.", input.PlantID))
		return
	}
	if ok, aerr := rawMaterialExists(c, input.RawMaterialID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SaveRawMaterialPurchaseCommand.RawMaterialNotFound",
			"Raw Material with ID %d does not exist.", input.RawMaterialID))
		return
	}
	if ok, aerr := partyExists(c, input.PartyID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SaveRawMaterialPurchaseCommand.PartyNotFound",
			"Party with ID %d does not exist.", input.PartyID))
		return
	}

	db := database.DB.WithContext(c.Request.Context())

	var duplicates int64
	if err := db.Model(&models.RawMaterialPurchase{}).
		Where("LOWER(TRIM(bill_number)) = ? AND plant_id = ? AND raw_material_id = ?",
			normalized(input.BillNumber), input.PlantID, input.RawMaterialID).
		Count(&duplicates).Error; err != nil {
		problem(c, apperr.Transaction("SaveRawMaterialPurchaseCommand.QueryFailed", err))
		return
	}
	if duplicates > 0 {
		problem(c, apperr.Duplicate("SaveRawMaterialPurchaseCommand.DuplicateBill",
			"A purchase with the bill number '%s' already exists for Plant ID %d.",
			input.BillNumber, input.PlantID))
		return
	}

	purchase := models.RawMaterialPurchase{
		PlantID:         input.PlantID,
		BillNumber:      strings.TrimSpace(input.BillNumber),
		Weight:          input.Weight,
		Rate:            input.Rate,
		BillValue:       input.BillValue,
		GST:             input.GST,
		TotalBillAmount: input.TotalBillAmount,
		PurchaseDate:    input.PurchaseDate,
		RawMaterialID:   input.RawMaterialID,
		PartyID:         input.PartyID,
	}

	tx := db.Begin()
	if tx.Error != nil {
		problem(c, apperr.Transaction("SaveRawMaterialPurchaseCommand.TransactionFailed", tx.Error))
		return
	}

	if err := tx.Create(&purchase).Error; err != nil {
		tx.Rollback()
		problem(c, apperr.Transaction("SaveRawMaterialPurchaseCommand.TransactionFailed", err))
		return
	}
	if aerr := ledger.ApplyPurchase(tx, input.PlantID, input.RawMaterialID, input.Weight); aerr != nil {
		tx.Rollback()
		problem(c, aerr)
		return
	}
	if err := tx.Commit().Error; err != nil {
		problem(c, apperr.Transaction("SaveRawMaterialPurchaseCommand.TransactionFailed", err))
		return
	}

	c.Header("Location", "/rawmaterialpurchase/"+itoa(purchase.PurchaseID))
	c.JSON(http.StatusCreated, purchase)
}

// --- GET /rawmaterialpurchases?plantId= ---
// Partners asking for another plant are rejected; with no plantId they only
// see their own plant's rows.
func GetRawMaterialPurchases(c *gin.Context) {
	query := database.DB.Preload("RawMaterial").Preload("Party")

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

	var purchases []models.RawMaterialPurchase
	if err := query.Find(&purchases).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch purchases"})
		return
	}
	c.JSON(http.StatusOK, purchases)
}

// --- GET /rawmaterialquantity?rawMaterialId=&plantId= ---
// With rawMaterialId: the single ledger row (404 if absent). Without: every
// ledger row at the plant, empty list included.
func GetRawMaterialQuantity(c *gin.Context) {
	plantID, present := uintQuery(c, "plantId")
	if !present || plantID == 0 {
		invalid(c, "plantId is required and must be a positive integer")
		return
	}
	if !middleware.PartnerCanSeePlant(c, plantID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to view this plant"})
		return
	}

	rawMaterialID, present := uintQuery(c, "rawMaterialId")
	if present && rawMaterialID == 0 {
		invalid(c, "rawMaterialId must be a positive integer")
		return
	}

	db := database.DB.WithContext(c.Request.Context())

	if present {
		quantity, aerr := ledger.Quantity(db, plantID, rawMaterialID)
		if aerr != nil {
			problem(c, aerr)
			return
		}
		c.JSON(http.StatusOK, quantity)
		return
	}

	quantities, aerr := ledger.Quantities(db, plantID)
	if aerr != nil {
		problem(c, aerr)
		return
	}
	c.JSON(http.StatusOK, quantities)
}
