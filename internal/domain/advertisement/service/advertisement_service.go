package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto_market/internal/domain/advertisement/model"
	"crypto_market/internal/domain/advertisement/repository"
	intentModel "crypto_market/internal/domain/intent/model"
	intentRepo "crypto_market/internal/domain/intent/repository"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidDuration = errors.New("advertisement duration must be between 1 and 90 days")

type AdvertisementService interface {
	// Purchase 下单购买推广位并创建网关支付意向
	Purchase(ctx context.Context, userID, productID string, durationDays int) (*model.AdvertisementPayment, error)

	// ListActive 当前生效的推广位
	ListActive(ctx context.Context, limit int) ([]model.AdvertisementPayment, error)

	// ApplyPaymentConfirmation 回调确认，确认时刻才开始计算推广期
	ApplyPaymentConfirmation(ctx context.Context, identifier string, received decimal.Decimal) error
}

type advertisementService struct {
	repo        repository.AdvertisementRepository
	intents     intentRepo.IntentRepository
	gw          *gateway.Client
	pricePerDay decimal.Decimal
	now         func() time.Time
}

func NewAdvertisementService(
	repo repository.AdvertisementRepository,
	intents intentRepo.IntentRepository,
	gw *gateway.Client,
	pricePerDay decimal.Decimal,
) AdvertisementService {
	return &advertisementService{
		repo:        repo,
		intents:     intents,
		gw:          gw,
		pricePerDay: pricePerDay,
		now:         time.Now,
	}
}

func (s *advertisementService) Purchase(ctx context.Context, userID, productID string, durationDays int) (*model.AdvertisementPayment, error) {
	if durationDays < 1 || durationDays > 90 {
		return nil, ErrInvalidDuration
	}

	ad := &model.AdvertisementPayment{
		UserID:            userID,
		ProductID:         productID,
		PaymentIdentifier: fmt.Sprintf("ad-%s", uuid.New().String()),
		DurationDays:      durationDays,
		Amount:            s.pricePerDay.Mul(decimal.NewFromInt(int64(durationDays))).Round(2),
	}
	if err := s.repo.Create(ctx, ad); err != nil {
		return nil, err
	}

	intent, err := s.gw.CreatePayment(ctx, gateway.CreatePaymentRequest{
		PriceAmount:   ad.Amount,
		PriceCurrency: "usd",
		ReferenceID:   ad.PaymentIdentifier,
		Purpose:       gateway.PurposeAdvertisement,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.SetPaymentIntent(ctx, ad.PaymentIdentifier,
		intent.PaymentID, intent.PayAddress, intent.PayCurrency, intent.PayAmount)
	if err != nil {
		return nil, err
	}
	if updated {
		if err := s.intents.Register(ctx, &intentModel.PaymentIntent{
			Kind:             intentModel.KindAdvertisement,
			ReferenceID:      ad.PaymentIdentifier,
			GatewayPaymentID: intent.PaymentID,
		}); err != nil {
			return nil, err
		}
	}

	return s.repo.GetByIdentifier(ctx, ad.PaymentIdentifier)
}

func (s *advertisementService) ListActive(ctx context.Context, limit int) ([]model.AdvertisementPayment, error) {
	return s.repo.ListActive(ctx, s.now(), limit)
}

func (s *advertisementService) ApplyPaymentConfirmation(ctx context.Context, identifier string, received decimal.Decimal) error {
	ad, err := s.repo.UpdateWithLock(ctx, identifier, func(a *model.AdvertisementPayment) error {
		a.MarkPaid(s.now())
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Info("Advertisement activated",
		zap.String("identifier", ad.PaymentIdentifier),
		zap.String("product_id", ad.ProductID),
		zap.Int("duration_days", ad.DurationDays),
		zap.String("received", received.String()),
	)
	return nil
}
