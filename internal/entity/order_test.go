package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to confirmed", OrderPendingApproval, OrderConfirmed, true},
		{"pending to delivered skips ahead", OrderPendingApproval, OrderDelivered, true},
		{"confirmed to processing", OrderConfirmed, OrderProcessing, true},
		{"processing to ready_for_pickup", OrderProcessing, OrderReadyForPickup, true},
		{"processing to out_for_delivery", OrderProcessing, OrderOutForDelivery, true},
		{"ready_for_pickup to delivered", OrderReadyForPickup, OrderDelivered, true},
		{"no backwards move", OrderProcessing, OrderConfirmed, false},
		{"no sideways between fulfilment branches", OrderReadyForPickup, OrderOutForDelivery, false},
		{"cancel from pending", OrderPendingApproval, OrderCancelled, true},
		{"refund from out_for_delivery", OrderOutForDelivery, OrderRefunded, true},
		{"delivered is terminal", OrderDelivered, OrderRefunded, false},
		{"cancelled is terminal", OrderCancelled, OrderConfirmed, false},
		{"refunded is terminal", OrderRefunded, OrderCancelled, false},
		{"unknown target rejected", OrderConfirmed, OrderStatus("shipped"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderDelivered, OrderCancelled, OrderRefunded} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []OrderStatus{OrderPendingApproval, OrderConfirmed, OrderProcessing, OrderReadyForPickup, OrderOutForDelivery} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestOrderRecalculate(t *testing.T) {
	t.Run("derives line totals and subtotal", func(t *testing.T) {
		o := &Order{
			DeliveryFee: decimal.NewFromFloat(5.00),
			Tax:         decimal.NewFromFloat(2.50),
			Discount:    decimal.NewFromFloat(1.00),
			Items: []*OrderItem{
				{Quantity: 3, UnitPrice: decimal.NewFromFloat(4.25)},
				{Quantity: 2, UnitPrice: decimal.NewFromFloat(10.00)},
			},
		}

		o.Recalculate()

		assert.True(t, o.Items[0].LineTotal.Equal(decimal.NewFromFloat(12.75)))
		assert.True(t, o.Items[1].LineTotal.Equal(decimal.NewFromFloat(20.00)))
		assert.True(t, o.Subtotal.Equal(decimal.NewFromFloat(32.75)))
		assert.True(t, o.TotalAmount.Equal(decimal.NewFromFloat(39.25)))
	})

	t.Run("clamps total at zero when discount exceeds charges", func(t *testing.T) {
		o := &Order{
			Discount: decimal.NewFromFloat(100.00),
			Items: []*OrderItem{
				{Quantity: 1, UnitPrice: decimal.NewFromFloat(10.00)},
			},
		}

		o.Recalculate()

		assert.True(t, o.Subtotal.Equal(decimal.NewFromFloat(10.00)))
		assert.True(t, o.TotalAmount.IsZero())
	})

	t.Run("empty order is all zeroes", func(t *testing.T) {
		o := &Order{}
		o.Recalculate()
		assert.True(t, o.Subtotal.IsZero())
		assert.True(t, o.TotalAmount.IsZero())
	})
}
