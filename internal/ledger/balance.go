package ledger

import (
	"sort"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PartyOutstanding is one row of the outstanding-balance report:
// everything the plant still owes a party.
type PartyOutstanding struct {
	PartyID   uint            `json:"party_id"`
	PartyName string          `json:"party_name"`
	Amount    decimal.Decimal `json:"amount"`
}

// Outstanding recomputes, per party with at least one purchase at the plant,
// the purchase total minus the payment total. Parties without purchases are
// omitted; missing payments count as zero. Nothing is cached.
func Outstanding(db *gorm.DB, plantID uint) ([]PartyOutstanding, *apperr.Error) {
	var purchases []models.RawMaterialPurchase
	if err := db.Preload("Party").
		Where("plant_id = ?", plantID).
		Find(&purchases).Error; err != nil {
		return nil, apperr.Transaction("GetOutStandingAmount.QueryFailed", err)
	}

	var payments []models.Payment
	if err := db.Where("plant_id = ?", plantID).Find(&payments).Error; err != nil {
		return nil, apperr.Transaction("GetOutStandingAmount.QueryFailed", err)
	}

	purchased := make(map[uint]decimal.Decimal)
	names := make(map[uint]string)
	for _, purchase := range purchases {
		purchased[purchase.PartyID] = purchased[purchase.PartyID].Add(purchase.TotalBillAmount)
		if purchase.Party != nil {
			names[purchase.PartyID] = purchase.Party.PartyName
		}
	}

	paid := make(map[uint]decimal.Decimal)
	for _, payment := range payments {
		paid[payment.PartyID] = paid[payment.PartyID].Add(payment.Amount)
	}

	rows := make([]PartyOutstanding, 0, len(purchased))
	for partyID, total := range purchased {
		rows = append(rows, PartyOutstanding{
			PartyID:   partyID,
			PartyName: names[partyID],
			Amount:    total.Sub(paid[partyID]),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PartyID < rows[j].PartyID })
	return rows, nil
}

// OutstandingForParty picks one party's row out of the report. The second
// return reports whether the party has any purchase at the plant at all.
func OutstandingForParty(db *gorm.DB, plantID, partyID uint) (decimal.Decimal, bool, *apperr.Error) {
	rows, err := Outstanding(db, plantID)
	if err != nil {
		return decimal.Zero, false, err
	}
	for _, row := range rows {
		if row.PartyID == partyID {
			return row.Amount, true, nil
		}
	}
	return decimal.Zero, false, nil
}
