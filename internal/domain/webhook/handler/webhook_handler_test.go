package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	intentModel "crypto_market/internal/domain/intent/model"
	orderModel "crypto_market/internal/domain/order/model"
	orderSvc "crypto_market/internal/domain/order/service"
	"crypto_market/internal/domain/webhook/service"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test", false)
}

// MockIntentRepository is a mock of IntentRepository
type MockIntentRepository struct {
	mock.Mock
}

func (m *MockIntentRepository) Register(ctx context.Context, intent *intentModel.PaymentIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockIntentRepository) Resolve(ctx context.Context, referenceID string) (*intentModel.PaymentIntent, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*intentModel.PaymentIntent), args.Error(1)
}

// MockOrderService 只有支付确认在回调路径上被调用
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Checkout(ctx context.Context, buyerID, vendorID string, items []orderSvc.CheckoutItem) (*orderModel.Order, error) {
	panic("not used in webhook path")
}

func (m *MockOrderService) GetOrders(ctx context.Context, userID string, offset, limit int) ([]orderModel.Order, int64, error) {
	panic("not used in webhook path")
}

func (m *MockOrderService) ViewOrder(ctx context.Context, orderID, actorID string) (*orderSvc.OrderView, error) {
	panic("not used in webhook path")
}

func (m *MockOrderService) MarkAsSent(ctx context.Context, orderID, actorID string) (*orderModel.Order, error) {
	panic("not used in webhook path")
}

func (m *MockOrderService) MarkAsCompleted(ctx context.Context, orderID, actorID string) (*orderModel.Order, error) {
	panic("not used in webhook path")
}

func (m *MockOrderService) CancelOrder(ctx context.Context, orderID, actorID string) (*orderModel.Order, error) {
	panic("not used in webhook path")
}

func (m *MockOrderService) ApplyPaymentConfirmation(ctx context.Context, orderID string, received decimal.Decimal) error {
	args := m.Called(ctx, orderID, received)
	return args.Error(0)
}

func (m *MockOrderService) ReconcileBatch(ctx context.Context, limit int) (int, error) {
	panic("not used in webhook path")
}

const testSecret = "ipn-secret"

func newTestRouter(orders *MockOrderService, intents *MockIntentRepository) *gin.Engine {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	dispatcher := service.NewDispatcher(intents, orders, nil, nil, rdb)
	h := NewWebhookHandler(gateway.NewVerifier(testSecret), dispatcher)

	router := gin.New()
	router.POST("/webhooks/payment-gateway", h.HandlePaymentWebhook)
	return router
}

func signedRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	canonical, err := gateway.CanonicalizePayload(body)
	assert.NoError(t, err)
	sig := gateway.NewVerifier(testSecret).Sign(canonical)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment-gateway", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sig)
	return req
}

func TestHandlePaymentWebhook(t *testing.T) {
	orderID := "33333333-3333-3333-3333-333333333333"
	body := []byte(`{"payment_id":4945313071,"payment_status":"finished","order_id":"` + orderID + `","pay_amount":0.6,"actually_paid":0.5}`)

	t.Run("Valid signature confirms payment", func(t *testing.T) {
		orders := new(MockOrderService)
		intents := new(MockIntentRepository)
		intents.On("Resolve", mock.Anything, orderID).Return(&intentModel.PaymentIntent{
			Kind:        intentModel.KindOrder,
			ReferenceID: orderID,
		}, nil)
		orders.On("ApplyPaymentConfirmation", mock.Anything, orderID, mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.RequireFromString("0.5"))
		})).Return(nil)

		w := httptest.NewRecorder()
		newTestRouter(orders, intents).ServeHTTP(w, signedRequest(t, body))

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertExpectations(t)
	})

	t.Run("Invalid signature returns 403 without touching state", func(t *testing.T) {
		orders := new(MockOrderService)
		intents := new(MockIntentRepository)

		req := signedRequest(t, body)
		req.Header.Set(SignatureHeader, "deadbeef")

		w := httptest.NewRecorder()
		newTestRouter(orders, intents).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		orders.AssertNotCalled(t, "ApplyPaymentConfirmation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Missing signature returns 403", func(t *testing.T) {
		orders := new(MockOrderService)
		intents := new(MockIntentRepository)

		req := signedRequest(t, body)
		req.Header.Del(SignatureHeader)

		w := httptest.NewRecorder()
		newTestRouter(orders, intents).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Tampered body returns 403", func(t *testing.T) {
		orders := new(MockOrderService)
		intents := new(MockIntentRepository)

		req := signedRequest(t, body)
		tampered := bytes.Replace(body, []byte("0.5"), []byte("5.0"), 1)
		req.Body = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(tampered)).Body

		w := httptest.NewRecorder()
		newTestRouter(orders, intents).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Malformed payload returns 400", func(t *testing.T) {
		orders := new(MockOrderService)
		intents := new(MockIntentRepository)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment-gateway", bytes.NewReader([]byte(`{"a":`)))
		req.Header.Set(SignatureHeader, "deadbeef")

		w := httptest.NewRecorder()
		newTestRouter(orders, intents).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Empty body returns 400", func(t *testing.T) {
		orders := new(MockOrderService)
		intents := new(MockIntentRepository)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment-gateway", nil)

		w := httptest.NewRecorder()
		newTestRouter(orders, intents).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Non-final status acknowledged without dispatching", func(t *testing.T) {
		orders := new(MockOrderService)
		intents := new(MockIntentRepository)

		waiting := []byte(`{"payment_id":4945313071,"payment_status":"waiting","order_id":"` + orderID + `","pay_amount":0.6}`)

		w := httptest.NewRecorder()
		newTestRouter(orders, intents).ServeHTTP(w, signedRequest(t, waiting))

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertNotCalled(t, "ApplyPaymentConfirmation", mock.Anything, mock.Anything, mock.Anything)
	})
}
