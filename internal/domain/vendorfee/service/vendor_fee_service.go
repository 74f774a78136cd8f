package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	intentModel "crypto_market/internal/domain/intent/model"
	intentRepo "crypto_market/internal/domain/intent/repository"
	"crypto_market/internal/domain/vendorfee/model"
	"crypto_market/internal/domain/vendorfee/repository"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type VendorFeeService interface {
	// EnsurePayment 取用户当前待支付的入驻费，没有就建一条并去网关拿入金地址
	EnsurePayment(ctx context.Context, userID string) (*model.VendorFeePayment, error)

	// ApplyPaymentConfirmation 回调确认入驻费，幂等
	ApplyPaymentConfirmation(ctx context.Context, identifier string, received decimal.Decimal) error
}

type vendorFeeService struct {
	repo    repository.VendorFeeRepository
	intents intentRepo.IntentRepository
	gw      *gateway.Client
	amount  decimal.Decimal
	window  time.Duration
	now     func() time.Time
}

func NewVendorFeeService(
	repo repository.VendorFeeRepository,
	intents intentRepo.IntentRepository,
	gw *gateway.Client,
	amount decimal.Decimal,
	window time.Duration,
) VendorFeeService {
	return &vendorFeeService{
		repo:    repo,
		intents: intents,
		gw:      gw,
		amount:  amount,
		window:  window,
		now:     time.Now,
	}
}

func (s *vendorFeeService) EnsurePayment(ctx context.Context, userID string) (*model.VendorFeePayment, error) {
	// 过期的待支付记录不复用，换新的引用号重新向网关要地址
	fee, err := s.repo.GetPendingByUser(ctx, userID, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fee = &model.VendorFeePayment{
			UserID:     userID,
			Identifier: fmt.Sprintf("vf-%s", uuid.New().String()),
			Amount:     s.amount,
		}
		if err := s.repo.Create(ctx, fee); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if fee.GatewayPaymentID != "" {
		return fee, nil
	}

	intent, err := s.gw.CreatePayment(ctx, gateway.CreatePaymentRequest{
		PriceAmount:   fee.Amount,
		PriceCurrency: "usd",
		ReferenceID:   fee.Identifier,
		Purpose:       gateway.PurposeVendorFee,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.SetPaymentIntent(ctx, fee.Identifier,
		intent.PaymentID, intent.PayAddress, intent.PayCurrency, intent.PayAmount,
		s.now().Add(s.window))
	if err != nil {
		return nil, err
	}
	if updated {
		if err := s.intents.Register(ctx, &intentModel.PaymentIntent{
			Kind:             intentModel.KindVendorFee,
			ReferenceID:      fee.Identifier,
			GatewayPaymentID: intent.PaymentID,
		}); err != nil {
			return nil, err
		}
	}

	return s.repo.GetByIdentifier(ctx, fee.Identifier)
}

func (s *vendorFeeService) ApplyPaymentConfirmation(ctx context.Context, identifier string, received decimal.Decimal) error {
	fee, err := s.repo.UpdateWithLock(ctx, identifier, func(f *model.VendorFeePayment) error {
		if !f.MarkPaid(s.now()) {
			return nil // 重复回调，保持已支付状态
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Info("Vendor fee paid",
		zap.String("identifier", fee.Identifier),
		zap.String("user_id", fee.UserID),
		zap.String("received", received.String()),
	)
	return nil
}
