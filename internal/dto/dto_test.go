package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var validate = validator.New()

func TestCreateListingRequestValidation(t *testing.T) {
	valid := CreateListingRequest{
		VendorID:          1,
		ProductID:         2,
		MarketID:          3,
		PricePerUnit:      decimal.NewFromFloat(4.50),
		QuantityAvailable: 10,
	}
	assert.NoError(t, validate.Struct(valid))

	missingVendor := valid
	missingVendor.VendorID = 0
	assert.Error(t, validate.Struct(missingVendor))

	negativeQty := valid
	negativeQty.QuantityAvailable = -1
	assert.Error(t, validate.Struct(negativeQty))
}

func TestCreateVendorRequestValidation(t *testing.T) {
	valid := CreateVendorRequest{
		BusinessName: "Hilltop Farm",
		Email:        "owner@hilltop.example",
		MarketIDs:    []int64{1, 2},
	}
	assert.NoError(t, validate.Struct(valid))

	noMarkets := valid
	noMarkets.MarketIDs = nil
	assert.Error(t, validate.Struct(noMarkets), "a vendor must operate in at least one market")

	emptyMarkets := valid
	emptyMarkets.MarketIDs = []int64{}
	assert.Error(t, validate.Struct(emptyMarkets))

	duplicateMarkets := valid
	duplicateMarkets.MarketIDs = []int64{1, 1}
	assert.Error(t, validate.Struct(duplicateMarkets))
}

func TestBulkModerationRequestValidation(t *testing.T) {
	cases := []struct {
		name string
		req  BulkModerationRequest
		ok   bool
	}{
		{"set_status", BulkModerationRequest{ListingIDs: []int64{1, 2}, Action: "set_status", Status: "inactive"}, true},
		{"flag", BulkModerationRequest{ListingIDs: []int64{1}, Action: "flag", Reason: "stale pricing"}, true},
		{"empty ids", BulkModerationRequest{ListingIDs: nil, Action: "feature"}, false},
		{"zero id", BulkModerationRequest{ListingIDs: []int64{0}, Action: "feature"}, false},
		{"unknown action", BulkModerationRequest{ListingIDs: []int64{1}, Action: "promote"}, false},
		{"unknown status", BulkModerationRequest{ListingIDs: []int64{1}, Action: "set_status", Status: "archived"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.Struct(tc.req)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestOrderRequestValidation(t *testing.T) {
	valid := CreateOrderRequest{
		BuyerID:  1,
		VendorID: 2,
		Items: []OrderItemRequest{
			{ListingID: 3, Quantity: 2, UnitPrice: decimal.NewFromFloat(5.00)},
		},
	}
	assert.NoError(t, validate.Struct(valid))

	noItems := valid
	noItems.Items = nil
	assert.Error(t, validate.Struct(noItems))

	zeroQty := valid
	zeroQty.Items = []OrderItemRequest{{ListingID: 3, Quantity: 0, UnitPrice: decimal.NewFromFloat(5.00)}}
	assert.Error(t, validate.Struct(zeroQty))
}

func TestOrderStatusRequestValidation(t *testing.T) {
	assert.NoError(t, validate.Struct(OrderStatusRequest{Status: "confirmed"}))
	assert.Error(t, validate.Struct(OrderStatusRequest{Status: "shipped"}))
	assert.Error(t, validate.Struct(OrderStatusRequest{}))
}

func TestVerificationRequestValidation(t *testing.T) {
	assert.NoError(t, validate.Struct(VerificationRequest{Status: "approved"}))
	assert.NoError(t, validate.Struct(VerificationRequest{Status: "rejected", Reason: "expired license"}))
	assert.Error(t, validate.Struct(VerificationRequest{Status: "verified"}))
}

func TestDeactivateRequestValidation(t *testing.T) {
	assert.NoError(t, validate.Struct(DeactivateRequest{Reason: "seasonal closure"}))
	assert.Error(t, validate.Struct(DeactivateRequest{}))
}
