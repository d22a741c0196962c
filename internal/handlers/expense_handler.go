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
	"github.com/shopspring/decimal"
)

type CreateExpenseRequest struct {
	PlantID         uint            `json:"plant_id" binding:"required"`
	PartyID         uint            `json:"party_id" binding:"required"`
	ExpenseType     string          `json:"expense_type" binding:"required,max=100"`
	BillNumber      *string         `json:"bill_number"`
	BillValue       decimal.Decimal `json:"bill_value"`
	GST             int             `json:"gst"`
	TotalBillAmount decimal.Decimal `json:"total_bill_amount"`
	ExpenseDate     time.Time       `json:"expense_date" binding:"required"`
}

// --- POST /expenses ---
func CreateExpense(c *gin.Context) {
	var input CreateExpenseRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid expense payload")
		return
	}
	if !input.BillValue.IsPositive() {
		problem(c, apperr.Validation("SaveExpenseCommand.Invalid", "Bill value must be greater than zero."))
		return
	}
	if input.GST <= 0 {
		problem(c, apperr.Validation("SaveExpenseCommand.Invalid", "GST must be greater than zero."))
		return
	}
	if !input.TotalBillAmount.IsPositive() {
		problem(c, apperr.Validation("SaveExpenseCommand.Invalid", "Total bill amount must be greater than zero."))
		return
	}
	if input.ExpenseDate.After(time.Now().UTC()) {
		problem(c, apperr.Validation("SaveExpenseCommand.Invalid", "Expense date cannot be in the future."))
		return
	}

	if ok, aerr := plantExists(c, input.PlantID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SaveExpenseCommand.PlantNotFound",
			"Plant with ID %d does not exist.", input.PlantID))
		return
	}
	if ok, aerr := partyExists(c, input.PartyID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SaveExpenseCommand.PartyNotFound",
			"Party with ID %d does not exist.", input.PartyID))
		return
	}

	expense := models.Expense{
		PlantID:         input.PlantID,
		PartyID:         input.PartyID,
		ExpenseType:     input.ExpenseType,
		BillNumber:      input.BillNumber,
		BillValue:       input.BillValue,
		GST:             input.GST,
		TotalBillAmount: input.TotalBillAmount,
		ExpenseDate:     input.ExpenseDate,
	}
	if err := database.DB.WithContext(c.Request.Context()).Create(&expense).Error; err != nil {
		problem(c, apperr.Transaction("SaveExpenseCommand.TransactionFailed", err))
		return
	}

	c.Header("Location", "/expenses/"+itoa(expense.ExpenseID))
	c.JSON(http.StatusCreated, expense)
}

// --- GET /expenses?plantId= ---
// Partners asking for another plant are rejected; with no plantId they only
// see their own plant's rows.
func GetExpenses(c *gin.Context) {
	query := database.DB.Model(&models.Expense{})

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

	var expenses []models.Expense
	if err := query.Find(&expenses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch expenses"})
		return
	}
	c.JSON(http.StatusOK, expenses)
}

type CreatePaymentRequest struct {
	PlantID     uint            `json:"plant_id" binding:"required"`
	PartyID     uint            `json:"party_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date" binding:"required"`
}

// --- POST /payments ---
// A payment may never exceed what the party is still owed for purchases at
// the plant, computed fresh from purchase and payment history.
func CreatePayment(c *gin.Context) {
	var input CreatePaymentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid payment payload")
		return
	}
	if !input.Amount.IsPositive() {
		problem(c, apperr.Validation("SavePaymentCommand.Invalid", "Amount must be greater than zero."))
		return
	}
	if input.PaymentDate.After(time.Now().UTC()) {
		problem(c, apperr.Validation("SavePaymentCommand.Invalid", "Payment date cannot be in the future."))
		return
	}

	if ok, aerr := plantExists(c, input.PlantID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SavePaymentCommand.PlantNotFound",
			"Plant with ID %d does not exist.", input.PlantID))
		return
	}
	if ok, aerr := partyExists(c, input.PartyID); aerr != nil {
		problem(c, aerr)
		return
	} else if !ok {
		problem(c, apperr.NotFound("SavePaymentCommand.PartyNotFound",
			"Party with ID %d does not exist.", input.PartyID))
		return
	}

	db := database.DB.WithContext(c.Request.Context())

	due, hasPurchases, aerr := ledger.OutstandingForParty(db, input.PlantID, input.PartyID)
	if aerr != nil {
		problem(c, aerr)
		return
	}
	if !hasPurchases {
		problem(c, apperr.BusinessRule("SavePaymentCommand.NoPurchaseFound",
			"Party with ID %d has no purchases recorded at Plant ID %d.", input.PartyID, input.PlantID))
		return
	}
	if input.Amount.GreaterThan(due) {
		problem(c, apperr.BusinessRule("SavePaymentCommand.PaymentExceedsDue",
			"Payment amount %s exceeds the outstanding due amount %s.", input.Amount, due))
		return
	}

	payment := models.Payment{
		PlantID:     input.PlantID,
		PartyID:     input.PartyID,
		Amount:      input.Amount,
		PaymentDate: input.PaymentDate,
	}
	if err := db.Create(&payment).Error; err != nil {
		problem(c, apperr.Transaction("SavePaymentCommand.TransactionFailed", err))
		return
	}

	c.Header("Location", "/payments/"+itoa(payment.PaymentID))
	c.JSON(http.StatusCreated, payment)
}

// --- GET /payments?plantId= ---
func GetPayments(c *gin.Context) {
	query := database.DB.Model(&models.Payment{})

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

	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}
	c.JSON(http.StatusOK, payments)
}

// --- GET /outstanding-party-amount/:plantId ---
func GetOutstandingPartyAmount(c *gin.Context) {
	plantID, ok := uintParam(c, "plantId")
	if !ok {
		invalid(c, "plantId must be a positive integer")
		return
	}

	if !middleware.PartnerCanSeePlant(c, plantID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to view this plant"})
		return
	}

	balances, aerr := ledger.Outstanding(database.DB.WithContext(c.Request.Context()), plantID)
	if aerr != nil {
		problem(c, aerr)
		return
	}
	c.JSON(http.StatusOK, balances)
}
