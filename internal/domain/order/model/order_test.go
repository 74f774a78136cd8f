package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func createTestOrder(status OrderStatus) *Order {
	o := &Order{
		BuyerID:    "11111111-1111-1111-1111-111111111111",
		VendorID:   "22222222-2222-2222-2222-222222222222",
		Status:     status,
		Subtotal:   decimal.NewFromInt(100),
		Commission: decimal.NewFromInt(5),
		Total:      decimal.NewFromInt(105),
	}
	o.ID = "33333333-3333-3333-3333-333333333333"
	if status != StatusWaitingPayment && status != StatusCancelled {
		o.IsPaid = true
	}
	return o
}

func TestMarkPaid(t *testing.T) {
	now := time.Now()

	t.Run("Waiting payment order gets paid", func(t *testing.T) {
		o := createTestOrder(StatusWaitingPayment)
		received := decimal.RequireFromString("0.512345678901")

		err := o.MarkPaid(now, received)

		assert.NoError(t, err)
		assert.Equal(t, StatusPaymentReceived, o.Status)
		assert.True(t, o.IsPaid)
		assert.True(t, received.Equal(o.TotalReceived))
		assert.NotNil(t, o.PaidAt)
	})

	t.Run("Duplicate confirmation returns ErrAlreadyPaid", func(t *testing.T) {
		o := createTestOrder(StatusWaitingPayment)
		assert.NoError(t, o.MarkPaid(now, decimal.NewFromInt(1)))

		err := o.MarkPaid(now, decimal.NewFromInt(1))

		assert.ErrorIs(t, err, ErrAlreadyPaid)
		assert.Equal(t, StatusPaymentReceived, o.Status)
	})

	t.Run("Confirmation on shipped order returns ErrAlreadyPaid", func(t *testing.T) {
		o := createTestOrder(StatusSent)

		err := o.MarkPaid(now, decimal.NewFromInt(1))

		assert.ErrorIs(t, err, ErrAlreadyPaid)
		assert.Equal(t, StatusSent, o.Status)
	})

	t.Run("Confirmation on terminal order is rejected without change", func(t *testing.T) {
		for _, status := range []OrderStatus{StatusCompleted, StatusCancelled} {
			o := createTestOrder(status)
			before := *o

			err := o.MarkPaid(now, decimal.NewFromInt(1))

			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before.Status, o.Status)
			assert.Equal(t, before.IsPaid, o.IsPaid)
		}
	})
}

func TestMarkSent(t *testing.T) {
	now := time.Now()

	t.Run("Vendor ships paid order", func(t *testing.T) {
		o := createTestOrder(StatusPaymentReceived)

		err := o.MarkSent(o.VendorID, now)

		assert.NoError(t, err)
		assert.Equal(t, StatusSent, o.Status)
		assert.NotNil(t, o.SentAt)
	})

	t.Run("Buyer cannot ship", func(t *testing.T) {
		o := createTestOrder(StatusPaymentReceived)

		err := o.MarkSent(o.BuyerID, now)

		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, StatusPaymentReceived, o.Status)
	})

	t.Run("Cannot ship unpaid order", func(t *testing.T) {
		o := createTestOrder(StatusWaitingPayment)

		err := o.MarkSent(o.VendorID, now)

		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestMarkCompleted(t *testing.T) {
	now := time.Now()

	t.Run("Buyer completes shipped order", func(t *testing.T) {
		o := createTestOrder(StatusSent)

		err := o.MarkCompleted(o.BuyerID, now, false)

		assert.NoError(t, err)
		assert.Equal(t, StatusCompleted, o.Status)
		assert.NotNil(t, o.CompletedAt)
	})

	t.Run("Vendor cannot complete", func(t *testing.T) {
		o := createTestOrder(StatusSent)

		err := o.MarkCompleted(o.VendorID, now, false)

		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("Forced completion skips actor check", func(t *testing.T) {
		o := createTestOrder(StatusSent)

		err := o.MarkCompleted("", now, true)

		assert.NoError(t, err)
		assert.Equal(t, StatusCompleted, o.Status)
	})

	t.Run("Cannot complete before shipment", func(t *testing.T) {
		o := createTestOrder(StatusPaymentReceived)

		err := o.MarkCompleted(o.BuyerID, now, false)

		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestCancel(t *testing.T) {
	now := time.Now()

	t.Run("Participant cancels non-terminal order", func(t *testing.T) {
		for _, status := range []OrderStatus{StatusWaitingPayment, StatusPaymentReceived, StatusSent} {
			o := createTestOrder(status)

			err := o.Cancel(o.BuyerID, now, false)

			assert.NoError(t, err)
			assert.Equal(t, StatusCancelled, o.Status)
			assert.NotNil(t, o.CancelledAt)
		}
	})

	t.Run("Outsider cannot cancel", func(t *testing.T) {
		o := createTestOrder(StatusWaitingPayment)

		err := o.Cancel("99999999-9999-9999-9999-999999999999", now, false)

		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("Terminal order cannot be cancelled again", func(t *testing.T) {
		for _, status := range []OrderStatus{StatusCompleted, StatusCancelled} {
			o := createTestOrder(status)

			err := o.Cancel(o.BuyerID, now, false)

			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	})

	t.Run("Forced cancel works from any non-terminal state", func(t *testing.T) {
		o := createTestOrder(StatusSent)

		err := o.Cancel("", now, true)

		assert.NoError(t, err)
		assert.Equal(t, StatusCancelled, o.Status)
	})
}

func TestVendorPayoutAmount(t *testing.T) {
	t.Run("Crypto payout derived from fiat share and rate", func(t *testing.T) {
		o := createTestOrder(StatusCompleted)
		o.FiatCryptoRate = decimal.RequireFromString("210") // 1 xmr = 210 usd

		amount := o.VendorPayoutAmount()

		// (105 - 5) / 210
		expected := decimal.NewFromInt(100).DivRound(decimal.NewFromInt(210), 12)
		assert.True(t, expected.Equal(amount), "got %s", amount)
	})

	t.Run("Zero rate yields zero amount", func(t *testing.T) {
		o := createTestOrder(StatusCompleted)

		assert.True(t, o.VendorPayoutAmount().IsZero())
	})
}

func TestToOrderStatus(t *testing.T) {
	s, err := ToOrderStatus("sent")
	assert.NoError(t, err)
	assert.Equal(t, StatusSent, s)

	_, err = ToOrderStatus("refunded")
	assert.Error(t, err)
}
