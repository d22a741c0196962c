// Package ledger maintains the running available quantity per
// (plant, raw material) and the arithmetic that mutates it. Every mutation
// is expected to run inside the same gorm transaction as the record
// (purchase, sale, wastage) that caused it.
package ledger

import (
	"errors"
	"math"
	"time"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PercentageTolerance is how far a sale's allocation percentages may drift
// from 100 before the sale is rejected.
const PercentageTolerance = 0.01

var oneHundred = decimal.NewFromInt(100)

// ApplyPurchase adds weight to the (plant, material) balance, creating the
// row on first purchase. The row is locked for the rest of the transaction
// so concurrent purchases against it cannot lose an update.
func ApplyPurchase(tx *gorm.DB, plantID, rawMaterialID uint, weight decimal.Decimal) *apperr.Error {
	var quantity models.RawMaterialQuantity
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("plant_id = ? AND raw_material_id = ?", plantID, rawMaterialID).
		First(&quantity).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		quantity = models.RawMaterialQuantity{
			PlantID:           plantID,
			RawMaterialID:     rawMaterialID,
			AvailableQuantity: weight,
		}
		if err := tx.Create(&quantity).Error; err != nil {
			return apperr.Transaction("ApplyPurchase.TransactionFailed", err)
		}
		return nil
	}
	if err != nil {
		return apperr.Transaction("ApplyPurchase.TransactionFailed", err)
	}

	quantity.AvailableQuantity = quantity.AvailableQuantity.Add(weight)
	if err := tx.Save(&quantity).Error; err != nil {
		return apperr.Transaction("ApplyPurchase.TransactionFailed", err)
	}
	return nil
}

// ApplySale decrements each allocated material's balance by
// balance * percentage / 100. The percentages must sum to 100 within
// PercentageTolerance and every touched balance must exist and be positive.
func ApplySale(tx *gorm.DB, plantID uint, allocations []models.SaleAllocation) *apperr.Error {
	var total float64
	for _, allocation := range allocations {
		total += allocation.SalePercentage
	}
	if math.Abs(total-100.0) > PercentageTolerance {
		return apperr.BusinessRule("SaveSaleCommand.InvalidSalePercentage",
			"The sum of SalePercentage must equal 100%%.")
	}

	for _, allocation := range allocations {
		var exists int64
		if err := tx.Model(&models.RawMaterial{}).
			Where("raw_material_id = ?", allocation.RawMaterialID).
			Count(&exists).Error; err != nil {
			return apperr.Transaction("SaveSaleCommand.TransactionFailed", err)
		}
		if exists == 0 {
			return apperr.NotFound("SaveSaleCommand.RawMaterialNotFound",
				"RawMaterialId %d does not exist.", allocation.RawMaterialID)
		}

		var quantity models.RawMaterialQuantity
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("plant_id = ? AND raw_material_id = ?", plantID, allocation.RawMaterialID).
			First(&quantity).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("SaveSaleCommand.RawMaterialQuantityNotFound",
				"Raw material quantity for RawMaterialId %d and PlantId %d was not found.",
				allocation.RawMaterialID, plantID)
		}
		if err != nil {
			return apperr.Transaction("SaveSaleCommand.TransactionFailed", err)
		}

		if quantity.AvailableQuantity.LessThanOrEqual(decimal.Zero) {
			return apperr.BusinessRule("SaveSaleCommand.NoAvailableQuantity",
				"Available quantity is 0 for RawMaterialId %d and PlantId %d. Cannot process sale.",
				allocation.RawMaterialID, plantID)
		}

		sold := quantity.AvailableQuantity.
			Mul(decimal.NewFromFloat(allocation.SalePercentage)).
			Div(oneHundred)
		quantity.AvailableQuantity = quantity.AvailableQuantity.Sub(sold)
		if err := tx.Save(&quantity).Error; err != nil {
			return apperr.Transaction("SaveSaleCommand.TransactionFailed", err)
		}
	}
	return nil
}

// AvailableSinceLastWastage sums the purchase weights for (plant, material)
// dated after the most recent prior wastage record, or all purchases when no
// wastage exists yet. This is the base a wastage percentage applies to - NOT
// the live ledger balance, which diverges from it once a sale intervenes.
func AvailableSinceLastWastage(db *gorm.DB, plantID, rawMaterialID uint) (decimal.Decimal, *apperr.Error) {
	var lastWastage models.Wastage
	var cutoff *time.Time
	err := db.Where("plant_id = ? AND raw_material_id = ?", plantID, rawMaterialID).
		Order("created_on DESC").
		First(&lastWastage).Error
	if err == nil {
		cutoff = &lastWastage.CreatedOn
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, apperr.Transaction("GetAvailableQuantityQuery.QueryFailed", err)
	}

	query := db.Model(&models.RawMaterialPurchase{}).
		Where("plant_id = ? AND raw_material_id = ?", plantID, rawMaterialID)
	if cutoff != nil {
		query = query.Where("purchase_date > ?", *cutoff)
	}

	var purchases []models.RawMaterialPurchase
	if err := query.Find(&purchases).Error; err != nil {
		return decimal.Zero, apperr.Transaction("GetAvailableQuantityQuery.QueryFailed", err)
	}

	sum := decimal.Zero
	for _, purchase := range purchases {
		sum = sum.Add(purchase.Weight)
	}
	return sum, nil
}

// ApplyWastage decrements the ledger row by
// (purchases since last wastage) * percentage / 100.
func ApplyWastage(tx *gorm.DB, plantID, rawMaterialID uint, percentage float64) *apperr.Error {
	base, aerr := AvailableSinceLastWastage(tx, plantID, rawMaterialID)
	if aerr != nil {
		return aerr
	}

	if base.LessThanOrEqual(decimal.Zero) {
		return apperr.BusinessRule("SaveWastageCommand.NoAvailableQuantity",
			"Available quantity is 0. Cannot process wastage.")
	}

	var quantity models.RawMaterialQuantity
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("plant_id = ? AND raw_material_id = ?", plantID, rawMaterialID).
		First(&quantity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("SaveWastageCommand.RawMaterialQuantityNotFound",
			"Raw material quantity for RawMaterialId %d and PlantId %d was not found.",
			rawMaterialID, plantID)
	}
	if err != nil {
		return apperr.Transaction("SaveWastageCommand.TransactionFailed", err)
	}

	wasted := base.Mul(decimal.NewFromFloat(percentage)).Div(oneHundred)
	quantity.AvailableQuantity = quantity.AvailableQuantity.Sub(wasted)
	if err := tx.Save(&quantity).Error; err != nil {
		return apperr.Transaction("SaveWastageCommand.TransactionFailed", err)
	}
	return nil
}

// Quantity returns the single ledger row for (plant, material).
func Quantity(db *gorm.DB, plantID, rawMaterialID uint) (*models.RawMaterialQuantity, *apperr.Error) {
	var quantity models.RawMaterialQuantity
	err := db.Preload("RawMaterial").
		Where("plant_id = ? AND raw_material_id = ?", plantID, rawMaterialID).
		First(&quantity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("GetRawMaterialQuantity.NotFound",
			"Raw material quantity for RawMaterialId %d and PlantId %d was not found.",
			rawMaterialID, plantID)
	}
	if err != nil {
		return nil, apperr.Transaction("GetRawMaterialQuantity.QueryFailed", err)
	}
	return &quantity, nil
}

// Quantities returns every ledger row at the plant. Empty is fine.
func Quantities(db *gorm.DB, plantID uint) ([]models.RawMaterialQuantity, *apperr.Error) {
	var quantities []models.RawMaterialQuantity
	err := db.Preload("RawMaterial").
		Where("plant_id = ?", plantID).
		Find(&quantities).Error
	if err != nil {
		return nil, apperr.Transaction("GetRawMaterialQuantity.QueryFailed", err)
	}
	return quantities, nil
}
