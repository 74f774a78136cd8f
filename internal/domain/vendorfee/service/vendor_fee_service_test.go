package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	intentModel "crypto_market/internal/domain/intent/model"
	"crypto_market/internal/domain/vendorfee/model"
	"crypto_market/internal/pkg/config"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

func init() {
	logger.Init("test", false)
}

type MockVendorFeeRepository struct {
	mock.Mock
}

func (m *MockVendorFeeRepository) Create(ctx context.Context, fee *model.VendorFeePayment) error {
	args := m.Called(ctx, fee)
	return args.Error(0)
}

func (m *MockVendorFeeRepository) GetPendingByUser(ctx context.Context, userID string, now time.Time) (*model.VendorFeePayment, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VendorFeePayment), args.Error(1)
}

func (m *MockVendorFeeRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.VendorFeePayment, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VendorFeePayment), args.Error(1)
}

func (m *MockVendorFeeRepository) UpdateWithLock(ctx context.Context, identifier string, fn func(*model.VendorFeePayment) error) (*model.VendorFeePayment, error) {
	args := m.Called(ctx, identifier, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	fee := args.Get(0).(*model.VendorFeePayment)
	if err := fn(fee); err != nil {
		return nil, err
	}
	return fee, args.Error(1)
}

func (m *MockVendorFeeRepository) SetPaymentIntent(ctx context.Context, identifier, paymentID, payAddress, payCurrency string, payAmount decimal.Decimal, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, identifier, paymentID, payAddress, payCurrency, payAmount, expiresAt)
	return args.Bool(0), args.Error(1)
}

type MockIntentRepository struct {
	mock.Mock
}

func (m *MockIntentRepository) Register(ctx context.Context, intent *intentModel.PaymentIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockIntentRepository) Resolve(ctx context.Context, gatewayPaymentID string) (*intentModel.PaymentIntent, error) {
	args := m.Called(ctx, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*intentModel.PaymentIntent), args.Error(1)
}

const testUserID = "11111111-1111-1111-1111-111111111111"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFeeService(gw *gateway.Client) (*vendorFeeService, *MockVendorFeeRepository, *MockIntentRepository) {
	repo := new(MockVendorFeeRepository)
	intents := new(MockIntentRepository)

	svc := NewVendorFeeService(repo, intents, gw,
		decimal.NewFromInt(150), 24*time.Hour).(*vendorFeeService)
	svc.now = func() time.Time { return testNow }
	return svc, repo, intents
}

func TestEnsurePayment(t *testing.T) {
	ctx := context.Background()

	var gatewayCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gatewayCalls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"payment_id":   "6100000001",
			"pay_address":  "fee-deposit-addr",
			"pay_amount":   0.71,
			"pay_currency": "xmr",
		})
	}))
	defer server.Close()

	gw := gateway.NewClient(config.GatewayConfig{
		Env:             "sandbox",
		SandboxURL:      server.URL,
		CallbackPath:    "/webhooks/payment-gateway",
		Timeout:         5 * time.Second,
		ConnectTimeout:  2 * time.Second,
		DefaultCurrency: "xmr",
	}, "https://market.example.com", nil)

	t.Run("Pending fee with intent is reused without a gateway call", func(t *testing.T) {
		svc, repo, _ := newFeeService(gw)
		before := atomic.LoadInt32(&gatewayCalls)

		expires := testNow.Add(12 * time.Hour)
		pending := &model.VendorFeePayment{
			UserID:           testUserID,
			Identifier:       "vf-existing",
			Amount:           decimal.NewFromInt(150),
			GatewayPaymentID: "6100000000",
			PayAddress:       "old-addr",
			ExpiresAt:        &expires,
		}
		repo.On("GetPendingByUser", ctx, testUserID, testNow).Return(pending, nil)

		fee, err := svc.EnsurePayment(ctx, testUserID)

		assert.NoError(t, err)
		assert.Equal(t, "vf-existing", fee.Identifier)
		assert.Equal(t, "old-addr", fee.PayAddress)
		assert.Equal(t, before, atomic.LoadInt32(&gatewayCalls))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Expired window creates a fresh payment with new expiry", func(t *testing.T) {
		svc, repo, intents := newFeeService(gw)

		// 仓储层已过滤过期记录，这里表现为查不到待支付行
		repo.On("GetPendingByUser", ctx, testUserID, testNow).
			Return(nil, gorm.ErrRecordNotFound)
		repo.On("Create", ctx, mock.MatchedBy(func(f *model.VendorFeePayment) bool {
			return f.UserID == testUserID && strings.HasPrefix(f.Identifier, "vf-")
		})).Return(nil)
		repo.On("SetPaymentIntent", ctx, mock.Anything, "6100000001", "fee-deposit-addr", "xmr",
			mock.Anything, testNow.Add(24*time.Hour)).Return(true, nil)
		intents.On("Register", ctx, mock.MatchedBy(func(i *intentModel.PaymentIntent) bool {
			return i.Kind == intentModel.KindVendorFee && i.GatewayPaymentID == "6100000001"
		})).Return(nil)
		stored := &model.VendorFeePayment{
			UserID:           testUserID,
			GatewayPaymentID: "6100000001",
			PayAddress:       "fee-deposit-addr",
		}
		repo.On("GetByIdentifier", ctx, mock.Anything).Return(stored, nil)

		fee, err := svc.EnsurePayment(ctx, testUserID)

		assert.NoError(t, err)
		assert.Equal(t, "fee-deposit-addr", fee.PayAddress)
		repo.AssertExpectations(t)
		intents.AssertExpectations(t)
	})
}

func TestVendorFeeExpired(t *testing.T) {
	expires := testNow.Add(-time.Minute)
	fee := &model.VendorFeePayment{ExpiresAt: &expires}

	assert.True(t, fee.Expired(testNow))

	fee.ExpiresAt = nil
	assert.False(t, fee.Expired(testNow))
}
