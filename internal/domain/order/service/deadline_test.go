package service

import (
	"testing"
	"time"

	"crypto_market/internal/domain/order/model"

	"github.com/stretchr/testify/assert"
)

var testDeadlines = DeadlineConfig{
	PaymentWindow:   24 * time.Hour,
	ShipDeadline:    96 * time.Hour,
	ConfirmDeadline: 192 * time.Hour,
}

func TestEvaluateDeadlines(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Waiting order without payment address never expires", func(t *testing.T) {
		o := &model.Order{Status: model.StatusWaitingPayment}

		v := EvaluateDeadlines(base.Add(1000*time.Hour), o, testDeadlines)

		assert.True(t, v.None())
	})

	t.Run("Payment window expires after deadline", func(t *testing.T) {
		expires := base.Add(24 * time.Hour)
		o := &model.Order{
			Status:     model.StatusWaitingPayment,
			PayAddress: "4AdUndXHHZ9pfQj27iMAjAr",
			ExpiresAt:  &expires,
		}

		assert.True(t, EvaluateDeadlines(expires.Add(-time.Minute), o, testDeadlines).None())

		v := EvaluateDeadlines(expires.Add(time.Minute), o, testDeadlines)
		assert.True(t, v.PaymentExpired)
		assert.False(t, v.ShipDeadlinePassed)
		assert.False(t, v.ConfirmDeadlinePassed)
	})

	t.Run("Ship deadline counted from payment time", func(t *testing.T) {
		paidAt := base
		o := &model.Order{
			Status: model.StatusPaymentReceived,
			IsPaid: true,
			PaidAt: &paidAt,
		}

		assert.True(t, EvaluateDeadlines(base.Add(95*time.Hour), o, testDeadlines).None())

		v := EvaluateDeadlines(base.Add(97*time.Hour), o, testDeadlines)
		assert.True(t, v.ShipDeadlinePassed)
		assert.False(t, v.PaymentExpired)
	})

	t.Run("Confirm deadline counted from shipment time", func(t *testing.T) {
		sentAt := base
		o := &model.Order{
			Status: model.StatusSent,
			IsPaid: true,
			SentAt: &sentAt,
		}

		assert.True(t, EvaluateDeadlines(base.Add(191*time.Hour), o, testDeadlines).None())

		v := EvaluateDeadlines(base.Add(193*time.Hour), o, testDeadlines)
		assert.True(t, v.ConfirmDeadlinePassed)
	})

	t.Run("Terminal orders are never touched", func(t *testing.T) {
		paidAt := base
		for _, status := range []model.OrderStatus{model.StatusCompleted, model.StatusCancelled} {
			o := &model.Order{
				Status: status,
				PaidAt: &paidAt,
			}

			v := EvaluateDeadlines(base.Add(10000*time.Hour), o, testDeadlines)

			assert.True(t, v.None(), "status %s", status)
		}
	})

	t.Run("At most one verdict fires", func(t *testing.T) {
		paidAt := base
		sentAt := base
		expires := base.Add(24 * time.Hour)
		o := &model.Order{
			Status:     model.StatusSent,
			IsPaid:     true,
			PayAddress: "4AdUndXHHZ9pfQj27iMAjAr",
			ExpiresAt:  &expires,
			PaidAt:     &paidAt,
			SentAt:     &sentAt,
		}

		v := EvaluateDeadlines(base.Add(10000*time.Hour), o, testDeadlines)

		fired := 0
		for _, b := range []bool{v.PaymentExpired, v.ShipDeadlinePassed, v.ConfirmDeadlinePassed} {
			if b {
				fired++
			}
		}
		assert.Equal(t, 1, fired)
		assert.True(t, v.ConfirmDeadlinePassed)
	})
}
