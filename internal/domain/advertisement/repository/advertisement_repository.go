package repository

import (
	"context"
	"time"

	"crypto_market/internal/domain/advertisement/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AdvertisementRepository interface {
	Create(ctx context.Context, ad *model.AdvertisementPayment) error
	GetByIdentifier(ctx context.Context, identifier string) (*model.AdvertisementPayment, error)
	ListActive(ctx context.Context, now time.Time, limit int) ([]model.AdvertisementPayment, error)

	UpdateWithLock(ctx context.Context, identifier string, fn func(*model.AdvertisementPayment) error) (*model.AdvertisementPayment, error)

	SetPaymentIntent(ctx context.Context, identifier, paymentID, payAddress, payCurrency string, payAmount decimal.Decimal) (bool, error)
}

type advertisementRepository struct {
	db *gorm.DB
}

func NewAdvertisementRepository(db *gorm.DB) AdvertisementRepository {
	return &advertisementRepository{db: db}
}

func (r *advertisementRepository) Create(ctx context.Context, ad *model.AdvertisementPayment) error {
	return r.db.WithContext(ctx).Create(ad).Error
}

func (r *advertisementRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.AdvertisementPayment, error) {
	var ad model.AdvertisementPayment
	err := r.db.WithContext(ctx).First(&ad, "payment_identifier = ?", identifier).Error
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

func (r *advertisementRepository) ListActive(ctx context.Context, now time.Time, limit int) ([]model.AdvertisementPayment, error) {
	var ads []model.AdvertisementPayment
	err := r.db.WithContext(ctx).
		Where("is_paid = true AND starts_at <= ? AND ends_at > ?", now, now).
		Order("starts_at DESC").
		Limit(limit).
		Find(&ads).Error
	return ads, err
}

func (r *advertisementRepository) UpdateWithLock(ctx context.Context, identifier string, fn func(*model.AdvertisementPayment) error) (*model.AdvertisementPayment, error) {
	var ad model.AdvertisementPayment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&ad, "payment_identifier = ?", identifier).Error; err != nil {
			return err
		}
		if err := fn(&ad); err != nil {
			return err
		}
		return tx.Save(&ad).Error
	})
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

func (r *advertisementRepository) SetPaymentIntent(ctx context.Context, identifier, paymentID, payAddress, payCurrency string, payAmount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.AdvertisementPayment{}).
		Where("payment_identifier = ? AND is_paid = false AND gateway_payment_id = ''", identifier).
		Updates(map[string]interface{}{
			"gateway_payment_id": paymentID,
			"pay_address":        payAddress,
			"pay_currency":       payCurrency,
			"pay_amount":         payAmount,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
