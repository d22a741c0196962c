package database

import (
	"time"

	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AverageCostRow is one line of the cost report: a raw material and what a
// unit of sold weight cost once plant expenses are spread over it.
type AverageCostRow struct {
	RawMaterialName string          `json:"raw_material_name"`
	AverageCost     decimal.Decimal `json:"average_cost"`
}

// AverageCost reports, per material purchased in the window, the material's
// purchase total plus all expenses in the window, divided by the total sold
// weight, rounded to 2 places. A window with no sales yields a single zero
// row so the caller still gets a well-formed payload.
func AverageCost(db *gorm.DB, start, end time.Time, plantID *uint) ([]AverageCostRow, error) {
	purchaseQuery := db.Preload("RawMaterial").
		Where("purchase_date >= ? AND purchase_date <= ?", start, end)
	expenseQuery := db.Where("expense_date >= ? AND expense_date <= ?", start, end)
	saleQuery := db.Where("sale_date >= ? AND sale_date <= ?", start, end)

	if plantID != nil {
		purchaseQuery = purchaseQuery.Where("plant_id = ?", *plantID)
		expenseQuery = expenseQuery.Where("plant_id = ?", *plantID)
		saleQuery = saleQuery.Where("plant_id = ?", *plantID)
	}

	var purchases []models.RawMaterialPurchase
	if err := purchaseQuery.Find(&purchases).Error; err != nil {
		return nil, err
	}
	var expenses []models.Expense
	if err := expenseQuery.Find(&expenses).Error; err != nil {
		return nil, err
	}
	var sales []models.Sale
	if err := saleQuery.Find(&sales).Error; err != nil {
		return nil, err
	}

	totalExpenses := decimal.Zero
	for _, expense := range expenses {
		totalExpenses = totalExpenses.Add(expense.TotalBillAmount)
	}

	totalSoldWeight := decimal.Zero
	for _, sale := range sales {
		totalSoldWeight = totalSoldWeight.Add(decimal.NewFromFloat(sale.Weight))
	}

	if totalSoldWeight.IsZero() {
		return []AverageCostRow{{RawMaterialName: "", AverageCost: decimal.Zero}}, nil
	}

	materialCosts := make(map[string]decimal.Decimal)
	var order []string
	for _, purchase := range purchases {
		name := ""
		if purchase.RawMaterial != nil {
			name = purchase.RawMaterial.RawMaterialName
		}
		if _, seen := materialCosts[name]; !seen {
			order = append(order, name)
		}
		materialCosts[name] = materialCosts[name].Add(purchase.TotalBillAmount)
	}

	rows := make([]AverageCostRow, 0, len(order))
	for _, name := range order {
		average := materialCosts[name].Add(totalExpenses).Div(totalSoldWeight).Round(2)
		rows = append(rows, AverageCostRow{RawMaterialName: name, AverageCost: average})
	}
	return rows, nil
}
