package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/ledger"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB points the shared handle at a fresh in-memory database named
// after the test.
func setupTestDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db
}

// newTestRouter wires the handlers against a fresh in-memory database. Auth
// middleware stays out of the way so each handler's own behavior is what gets
// exercised.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	setupTestDB(t)

	r := gin.New()
	r.POST("/plant", CreatePlant)
	r.GET("/plants", GetPlants)
	r.POST("/party", CreateParty)
	r.POST("/rawmaterial", CreateRawMaterial)
	r.POST("/rawmaterialpurchase", CreateRawMaterialPurchase)
	r.GET("/rawmaterialquantity", GetRawMaterialQuantity)
	r.POST("/payments", CreatePayment)
	r.POST("/sales", CreateSale)
	r.POST("/savewastage", CreateWastage)
	r.POST("/challenges", CreateChallenge)
	r.POST("/challengesstate", CreateChallengesState)
	r.PUT("/updatechallengestate/:id/closed", CloseChallengesState)
	r.GET("/challengesstate", GetChallengesStates)
	r.GET("/outstanding-party-amount/:plantId", GetOutstandingPartyAmount)
	r.POST("/enquiry", CreateEnquiry)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func seedPlant(t *testing.T, name, location string) models.Plant {
	t.Helper()
	plant := models.Plant{PlantName: name, Location: location}
	require.NoError(t, database.DB.Create(&plant).Error)
	return plant
}

func seedPartyAt(t *testing.T, plantID uint, name string) models.Party {
	t.Helper()
	party := models.Party{PartyName: name, PlantID: plantID}
	require.NoError(t, database.DB.Create(&party).Error)
	return party
}

func seedMaterial(t *testing.T, name string) models.RawMaterial {
	t.Helper()
	material := models.RawMaterial{RawMaterialName: name}
	require.NoError(t, database.DB.Create(&material).Error)
	return material
}

func TestCreatePlant(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/plant", gin.H{
		"plant_name": "  Guwahati Unit ", "location": "Guwahati",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEmpty(t, w.Header().Get("Location"))
	require.Equal(t, "Guwahati Unit", decodeBody(t, w)["plant_name"])

	// Round-trip: a fresh plant lists with an empty party array, not null.
	w = doJSON(t, r, http.MethodGet, "/plants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var plants []models.Plant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plants))
	require.Len(t, plants, 1)
	require.NotNil(t, plants[0].Parties)
	require.Empty(t, plants[0].Parties)

	// Same name and location modulo case and whitespace.
	w = doJSON(t, r, http.MethodPost, "/plant", gin.H{
		"plant_name": "guwahati unit", "location": " GUWAHATI ",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "SavePlantCommand.DuplicatePlant", decodeBody(t, w)["errorCode"])
}

func TestCreatePlantRejectsBadNames(t *testing.T) {
	r := newTestRouter(t)

	for _, name := range []string{"", "   ", "123start", "!!!"} {
		w := doJSON(t, r, http.MethodPost, "/plant", gin.H{
			"plant_name": name, "location": "Somewhere",
		})
		require.Equal(t, http.StatusBadRequest, w.Code, "name %q must be rejected", name)
	}
}

func TestCreatePartyRequiresPlant(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/party", gin.H{
		"party_name": "Assam Metals", "plant_id": 42,
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "SavePartyCommand.PlantNotFound", decodeBody(t, w)["errorCode"])
}

func TestCreatePartyDuplicatePerPlant(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")
	other := seedPlant(t, "Unit B", "Dibrugarh")
	seedPartyAt(t, plant.PlantID, "Assam Metals")

	w := doJSON(t, r, http.MethodPost, "/party", gin.H{
		"party_name": " assam metals ", "plant_id": plant.PlantID,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "SavePartyCommand.DuplicateParty", decodeBody(t, w)["errorCode"])

	// The same name at another plant is fine.
	w = doJSON(t, r, http.MethodPost, "/party", gin.H{
		"party_name": "Assam Metals", "plant_id": other.PlantID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateRawMaterialDuplicateIsGlobal(t *testing.T) {
	r := newTestRouter(t)
	seedMaterial(t, "Copper Coil")

	w := doJSON(t, r, http.MethodPost, "/rawmaterial", gin.H{
		"raw_material_name": " COPPER coil ",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "SaveRawMaterialCommand.DuplicateRawMaterial", decodeBody(t, w)["errorCode"])
}

func purchaseBody(plantID, materialID, partyID uint, bill string, weight, total float64) gin.H {
	return gin.H{
		"plant_id":          plantID,
		"bill_number":       bill,
		"weight":            weight,
		"rate":              10,
		"bill_value":        total,
		"gst":               18,
		"total_bill_amount": total,
		"purchase_date":     time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
		"raw_material_id":   materialID,
		"party_id":          partyID,
	}
}

func TestCreatePurchaseUpdatesLedger(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")
	party := seedPartyAt(t, plant.PlantID, "Assam Metals")
	material := seedMaterial(t, "Copper Coil")

	w := doJSON(t, r, http.MethodPost, "/rawmaterialpurchase",
		purchaseBody(plant.PlantID, material.RawMaterialID, party.PartyID, "AM-1", 120.5, 1205))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet,
		fmt.Sprintf("/rawmaterialquantity?plantId=%d&rawMaterialId=%d", plant.PlantID, material.RawMaterialID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "120.5", decodeBody(t, w)["available_quantity"])

	// Same bill number for the same plant and material is rejected.
	w = doJSON(t, r, http.MethodPost, "/rawmaterialpurchase",
		purchaseBody(plant.PlantID, material.RawMaterialID, party.PartyID, " am-1 ", 10, 100))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "SaveRawMaterialPurchaseCommand.DuplicateBill", decodeBody(t, w)["errorCode"])
}

func TestCreatePurchaseRejectsFutureDate(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")
	party := seedPartyAt(t, plant.PlantID, "Assam Metals")
	material := seedMaterial(t, "Copper Coil")

	body := purchaseBody(plant.PlantID, material.RawMaterialID, party.PartyID, "AM-9", 10, 100)
	body["purchase_date"] = time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339)

	w := doJSON(t, r, http.MethodPost, "/rawmaterialpurchase", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePaymentBoundedByOutstanding(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")
	party := seedPartyAt(t, plant.PlantID, "Assam Metals")
	material := seedMaterial(t, "Copper Coil")

	w := doJSON(t, r, http.MethodPost, "/rawmaterialpurchase",
		purchaseBody(plant.PlantID, material.RawMaterialID, party.PartyID, "AM-1", 60, 600))
	require.Equal(t, http.StatusCreated, w.Code)

	// 700 against a 600 balance fails and quotes the due amount.
	w = doJSON(t, r, http.MethodPost, "/payments", gin.H{
		"plant_id": plant.PlantID, "party_id": party.PartyID,
		"amount": 700, "payment_date": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "SavePaymentCommand.PaymentExceedsDue", body["errorCode"])
	require.Contains(t, body["detail"], "600")

	// Exactly the due amount settles the balance.
	w = doJSON(t, r, http.MethodPost, "/payments", gin.H{
		"plant_id": plant.PlantID, "party_id": party.PartyID,
		"amount": 600, "payment_date": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	due, hasPurchases, aerr := ledger.OutstandingForParty(database.DB, plant.PlantID, party.PartyID)
	require.Nil(t, aerr)
	require.True(t, hasPurchases)
	require.True(t, due.Equal(decimal.Zero))
}

func TestCreatePaymentRequiresPurchases(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")
	party := seedPartyAt(t, plant.PlantID, "Assam Metals")

	w := doJSON(t, r, http.MethodPost, "/payments", gin.H{
		"plant_id": plant.PlantID, "party_id": party.PartyID,
		"amount": 50, "payment_date": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "SavePaymentCommand.NoPurchaseFound", decodeBody(t, w)["errorCode"])
}

func TestCreateSaleRejectsBadAllocationSum(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")
	party := seedPartyAt(t, plant.PlantID, "Assam Metals")
	material := seedMaterial(t, "Copper Coil")

	w := doJSON(t, r, http.MethodPost, "/rawmaterialpurchase",
		purchaseBody(plant.PlantID, material.RawMaterialID, party.PartyID, "AM-1", 100, 1000))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/sales", gin.H{
		"plant_id": plant.PlantID, "weight": 10,
		"sale_date": time.Now().UTC().Format(time.RFC3339),
		"raw_materials": []gin.H{
			{"raw_material_id": material.RawMaterialID, "sale_percentage": 99.9},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "SaveSaleCommand.InvalidSalePercentage", decodeBody(t, w)["errorCode"])

	w = doJSON(t, r, http.MethodPost, "/sales", gin.H{
		"plant_id": plant.PlantID, "weight": 10,
		"sale_date": time.Now().UTC().Format(time.RFC3339),
		"raw_materials": []gin.H{
			{"raw_material_id": material.RawMaterialID, "sale_percentage": 100},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateWastageRejectsOutOfRangePercentage(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")
	material := seedMaterial(t, "Copper Coil")

	for _, pct := range []float64{0, -5, 100.5} {
		w := doJSON(t, r, http.MethodPost, "/savewastage", gin.H{
			"plant_id": plant.PlantID, "raw_material_id": material.RawMaterialID,
			"wastage_percentage": pct, "wastage_reason": "moisture damage",
		})
		require.Equal(t, http.StatusBadRequest, w.Code, "percentage %v must be rejected", pct)
	}
}

func TestChallengeStateLifecycle(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")

	w := doJSON(t, r, http.MethodPost, "/challenges", gin.H{"challenge_name": "Daily safety walk"})
	require.Equal(t, http.StatusCreated, w.Code)
	challengeID := uint(decodeBody(t, w)["challenge_id"].(float64))

	open := gin.H{
		"plant_id": plant.PlantID, "challenge_id": challengeID,
		"challenge_start_date_time": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	}

	w = doJSON(t, r, http.MethodPost, "/challengesstate", open)
	require.Equal(t, http.StatusCreated, w.Code)
	stateID := uint(decodeBody(t, w)["challenges_state_id"].(float64))

	// A second open row for the same pair is rejected.
	w = doJSON(t, r, http.MethodPost, "/challengesstate", open)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "SaveChallengeStateCommand.DuplicateEntry", decodeBody(t, w)["errorCode"])

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/updatechallengestate/%d/closed", stateID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/updatechallengestate/%d/closed", stateID), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "UpdateChallengeStateCommand.AlreadyClosed", decodeBody(t, w)["errorCode"])

	// Closed means the pair can be opened again.
	w = doJSON(t, r, http.MethodPost, "/challengesstate", open)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestGetChallengesStatesFilters(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")

	w := doJSON(t, r, http.MethodPost, "/challenges", gin.H{"challenge_name": "Boiler inspection"})
	require.Equal(t, http.StatusCreated, w.Code)
	challengeID := uint(decodeBody(t, w)["challenge_id"].(float64))

	start := time.Now().UTC().Add(-2 * time.Hour)
	w = doJSON(t, r, http.MethodPost, "/challengesstate", gin.H{
		"plant_id": plant.PlantID, "challenge_id": challengeID,
		"challenge_start_date_time": start.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	stateID := uint(decodeBody(t, w)["challenges_state_id"].(float64))

	// Open filter sees it, closed-range filter does not.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/challengesstate?plantId=%d", plant.PlantID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var openRows []models.ChallengesState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &openRows))
	require.Len(t, openRows, 1)

	rangeURL := fmt.Sprintf("/challengesstate?plantId=%d&startDate=%s&endDate=%s",
		plant.PlantID,
		start.Add(-time.Hour).Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339))
	w = doJSON(t, r, http.MethodGet, rangeURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var closedRows []models.ChallengesState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &closedRows))
	require.Len(t, closedRows, 0)

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/updatechallengestate/%d/closed", stateID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, rangeURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &closedRows))
	require.Len(t, closedRows, 1)
}

func TestGetChallengesStatesRejectsHalfSpecifiedRange(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")

	// A lone startDate or endDate is an error, not a silent open-rows query.
	for _, query := range []string{"startDate", "endDate"} {
		w := doJSON(t, r, http.MethodGet,
			fmt.Sprintf("/challengesstate?plantId=%d&%s=%s", plant.PlantID, query,
				time.Now().UTC().Format(time.RFC3339)), nil)
		require.Equal(t, http.StatusBadRequest, w.Code, "lone %s must be rejected", query)
	}
}

func TestCloseChallengesStateUnknownID(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/updatechallengestate/9999/closed", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "UpdateChallengeStateCommand.NotFound", decodeBody(t, w)["errorCode"])
}

func TestCreateEnquiryValidatesMobileNumber(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/enquiry", gin.H{
		"name": "Ravi", "place": "Tezpur", "raw_material": "Copper Coil",
		"quantity": 12.5, "mobile_number": "1234567890",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "SaveEnquiryCommand.InvalidMobileNumber", decodeBody(t, w)["errorCode"])

	w = doJSON(t, r, http.MethodPost, "/enquiry", gin.H{
		"name": "Ravi", "place": "Tezpur", "raw_material": "Copper Coil",
		"quantity": 12.5, "mobile_number": "9876543210",
	})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestOutstandingPartyAmountEndpoint(t *testing.T) {
	r := newTestRouter(t)
	plant := seedPlant(t, "Unit A", "Jorhat")
	party := seedPartyAt(t, plant.PlantID, "Assam Metals")
	material := seedMaterial(t, "Copper Coil")

	w := doJSON(t, r, http.MethodPost, "/rawmaterialpurchase",
		purchaseBody(plant.PlantID, material.RawMaterialID, party.PartyID, "AM-1", 30, 300))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/outstanding-party-amount/%d", plant.PlantID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []ledger.PartyOutstanding
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.True(t, rows[0].Amount.Equal(decimal.NewFromInt(300)))
}
