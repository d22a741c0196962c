package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// actorKey carries the authenticated principal through the request context
// so audit fields are stamped with the real caller.
type actorKey struct{}

func WithActor(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, actorKey{}, email)
}

func ActorFromContext(ctx context.Context) string {
	if ctx != nil {
		if email, ok := ctx.Value(actorKey{}).(string); ok && email != "" {
			return email
		}
	}
	return "system"
}

// AuditFields is embedded in every mutable entity. GORM promotes the hooks,
// so inserts and saves are stamped automatically from the statement context.
type AuditFields struct {
	CreatedOn      time.Time `json:"created_on"`
	CreatedBy      string    `gorm:"size:256" json:"created_by"`
	LastModifiedOn time.Time `json:"last_modified_on"`
	LastModifiedBy string    `gorm:"size:256" json:"last_modified_by"`
}

func (a *AuditFields) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	actor := ActorFromContext(tx.Statement.Context)
	a.CreatedOn = now
	a.CreatedBy = actor
	a.LastModifiedOn = now
	a.LastModifiedBy = actor
	return nil
}

func (a *AuditFields) BeforeUpdate(tx *gorm.DB) error {
	a.LastModifiedOn = time.Now().UTC()
	a.LastModifiedBy = ActorFromContext(tx.Statement.Context)
	return nil
}

// User - local stand-in for the identity provider. Partner accounts are bound
// to a single plant; admin and staff see everything.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:256" json:"email"`
	PasswordHash string    `json:"-"` // Never return this in JSON
	Role         string    `gorm:"size:32" json:"role"` // 'admin', 'staff', 'partner'
	PlantID      uint      `json:"plant_id"`            // only meaningful for partners
	CreatedAt    time.Time `json:"created_at"`
}

// Plant - a physical manufacturing site
type Plant struct {
	PlantID   uint    `gorm:"primaryKey" json:"plant_id"`
	PlantName string  `gorm:"size:1000" json:"plant_name"`
	Location  string  `gorm:"size:1000" json:"location"`
	Parties   []Party `gorm:"foreignKey:PlantID" json:"parties"`
}

// Party - a vendor or counterparty transacting with a plant.
// (name, plant) is unique, case-insensitive and trimmed.
type Party struct {
	PartyID   uint   `gorm:"primaryKey" json:"party_id"`
	PartyName string `gorm:"size:1000" json:"party_name"`
	PlantID   uint   `gorm:"index" json:"plant_id"`
}

// RawMaterial - a purchasable input. Name is globally unique.
type RawMaterial struct {
	RawMaterialID   uint   `gorm:"primaryKey" json:"raw_material_id"`
	RawMaterialName string `gorm:"size:1000" json:"raw_material_name"`
}

// RawMaterialQuantity - running available balance per (plant, material).
// Created lazily on the first purchase of that material at that plant.
type RawMaterialQuantity struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	PlantID           uint            `gorm:"index:idx_plant_material,unique" json:"plant_id"`
	RawMaterialID     uint            `gorm:"index:idx_plant_material,unique" json:"raw_material_id"`
	RawMaterial       *RawMaterial    `gorm:"foreignKey:RawMaterialID" json:"raw_material,omitempty"`
	AvailableQuantity decimal.Decimal `gorm:"type:decimal(18,3)" json:"available_quantity"`
	AuditFields
}

// RawMaterialPurchase - append-only purchase record. Bill number is unique
// per (plant, material), case-insensitive.
type RawMaterialPurchase struct {
	PurchaseID      uint            `gorm:"primaryKey" json:"purchase_id"`
	PlantID         uint            `gorm:"index" json:"plant_id"`
	BillNumber      string          `gorm:"size:100" json:"bill_number"`
	Weight          decimal.Decimal `gorm:"type:decimal(18,3)" json:"weight"`
	Rate            decimal.Decimal `gorm:"type:decimal(18,2)" json:"rate"`
	BillValue       decimal.Decimal `gorm:"type:decimal(18,2)" json:"bill_value"`
	GST             int             `json:"gst"`
	TotalBillAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_bill_amount"`
	PurchaseDate    time.Time       `json:"purchase_date"`
	RawMaterialID   uint            `gorm:"index" json:"raw_material_id"`
	RawMaterial     *RawMaterial    `gorm:"foreignKey:RawMaterialID" json:"raw_material,omitempty"`
	PartyID         uint            `gorm:"index" json:"party_id"`
	Party           *Party          `gorm:"foreignKey:PartyID" json:"party,omitempty"`
	AuditFields
}

// Expense - append-only, no ledger side effect.
type Expense struct {
	ExpenseID       uint            `gorm:"primaryKey" json:"expense_id"`
	PlantID         uint            `gorm:"index" json:"plant_id"`
	ExpenseType     string          `gorm:"size:100" json:"expense_type"`
	BillNumber      *string         `gorm:"size:100" json:"bill_number,omitempty"`
	BillValue       decimal.Decimal `gorm:"type:decimal(18,2)" json:"bill_value"`
	GST             int             `json:"gst"`
	TotalBillAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_bill_amount"`
	ExpenseDate     time.Time       `json:"expense_date"`
	PartyID         uint            `gorm:"index" json:"party_id"`
	AuditFields
}

// Payment - append-only; amount is capped at the party's outstanding balance
// at recording time.
type Payment struct {
	PaymentID   uint            `gorm:"primaryKey" json:"payment_id"`
	PlantID     uint            `gorm:"index" json:"plant_id"`
	PartyID     uint            `gorm:"index" json:"party_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	AuditFields
}

// SaleAllocation names how much of a sale came out of one material's balance.
type SaleAllocation struct {
	RawMaterialID  uint    `json:"raw_material_id" binding:"required"`
	SalePercentage float64 `json:"sale_percentage" binding:"required"`
}

// SaleAllocations is stored as a JSON column on the sale row.
type SaleAllocations []SaleAllocation

func (a *SaleAllocations) Scan(value interface{}) error {
	if value == nil {
		*a = SaleAllocations{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("failed to scan SaleAllocations: %v", value)
	}
}

func (a SaleAllocations) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	return string(b), err
}

// Sale - append-only. Allocation percentages must sum to 100.
type Sale struct {
	SaleID       uint            `gorm:"primaryKey" json:"sale_id"`
	PlantID      uint            `gorm:"index" json:"plant_id"`
	Weight       float64         `json:"weight"`
	SaleDate     time.Time       `json:"sale_date"`
	RawMaterials SaleAllocations `gorm:"type:text" json:"raw_materials"`
	AuditFields
}

// Wastage - append-only shrinkage record. The ledger decrement is computed
// from purchases made after the previous wastage, not from the live balance.
type Wastage struct {
	WastageID         uint    `gorm:"primaryKey" json:"wastage_id"`
	PlantID           uint    `gorm:"index" json:"plant_id"`
	RawMaterialID     uint    `gorm:"index" json:"raw_material_id"`
	WastagePercentage float64 `json:"wastage_percentage"`
	WastageReason     string  `gorm:"size:500" json:"wastage_reason"`
	AuditFields
}

// Challenge - a named reusable checklist item.
type Challenge struct {
	ChallengeID   uint   `gorm:"primaryKey" json:"challenge_id"`
	ChallengeName string `gorm:"size:1000" json:"challenge_name"`
}

// ChallengesState - one timed instance of a challenge at a plant.
// State true = OPEN, false = CLOSED. At most one OPEN row per (plant, challenge).
type ChallengesState struct {
	ChallengesStateID      uint       `gorm:"primaryKey" json:"challenges_state_id"`
	PlantID                uint       `gorm:"index" json:"plant_id"`
	Plant                  *Plant     `gorm:"foreignKey:PlantID" json:"plant,omitempty"`
	ChallengeID            uint       `gorm:"index" json:"challenge_id"`
	Challenge              *Challenge `gorm:"foreignKey:ChallengeID" json:"challenge,omitempty"`
	ChallengeStartDateTime time.Time  `json:"challenge_start_date_time"`
	State                  bool       `json:"state"`
	AuditFields
}

// Product - catalogue item with uploaded images, keyed by UUID.
type Product struct {
	ID            uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	Name          string          `gorm:"size:256;uniqueIndex" json:"name"`
	Specification string          `gorm:"size:2000" json:"specification"`
	Price         decimal.Decimal `gorm:"type:decimal(18,2)" json:"price"`
	ProductImages []ProductImage  `gorm:"foreignKey:ProductID" json:"product_images"`
}

type ProductImage struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	URI       string    `gorm:"size:1000" json:"uri"`
	ProductID uuid.UUID `gorm:"type:char(36);index" json:"product_id"`
}

// Enquiry - sales enquiry from a prospective customer.
type Enquiry struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Name         string  `gorm:"size:256" json:"name"`
	Place        string  `gorm:"size:256" json:"place"`
	RawMaterial  string  `gorm:"size:256" json:"raw_material"`
	Quantity     float64 `json:"quantity"`
	MobileNumber int64   `json:"mobile_number"`
}
