package repository

import (
	"context"
	"time"

	"crypto_market/internal/domain/vendorfee/model"

	"github.com/shopspring/decimal"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VendorFeeRepository interface {
	Create(ctx context.Context, fee *model.VendorFeePayment) error

	// GetPendingByUser 取用户当前有效的待支付记录，支付窗口已过的不算
	GetPendingByUser(ctx context.Context, userID string, now time.Time) (*model.VendorFeePayment, error)
	GetByIdentifier(ctx context.Context, identifier string) (*model.VendorFeePayment, error)

	// UpdateWithLock 行锁下更新，回调确认和页面轮询会并发到同一条记录
	UpdateWithLock(ctx context.Context, identifier string, fn func(*model.VendorFeePayment) error) (*model.VendorFeePayment, error)

	SetPaymentIntent(ctx context.Context, identifier, paymentID, payAddress, payCurrency string, payAmount decimal.Decimal, expiresAt time.Time) (bool, error)
}

type vendorFeeRepository struct {
	db *gorm.DB
}

func NewVendorFeeRepository(db *gorm.DB) VendorFeeRepository {
	return &vendorFeeRepository{db: db}
}

func (r *vendorFeeRepository) Create(ctx context.Context, fee *model.VendorFeePayment) error {
	return r.db.WithContext(ctx).Create(fee).Error
}

func (r *vendorFeeRepository) GetPendingByUser(ctx context.Context, userID string, now time.Time) (*model.VendorFeePayment, error) {
	var fee model.VendorFeePayment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_paid = false AND (expires_at IS NULL OR expires_at > ?)", userID, now).
		Order("created_at DESC").
		First(&fee).Error
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

func (r *vendorFeeRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.VendorFeePayment, error) {
	var fee model.VendorFeePayment
	err := r.db.WithContext(ctx).First(&fee, "identifier = ?", identifier).Error
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

func (r *vendorFeeRepository) UpdateWithLock(ctx context.Context, identifier string, fn func(*model.VendorFeePayment) error) (*model.VendorFeePayment, error) {
	var fee model.VendorFeePayment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&fee, "identifier = ?", identifier).Error; err != nil {
			return err
		}
		if err := fn(&fee); err != nil {
			return err
		}
		return tx.Save(&fee).Error
	})
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

func (r *vendorFeeRepository) SetPaymentIntent(ctx context.Context, identifier, paymentID, payAddress, payCurrency string, payAmount decimal.Decimal, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.VendorFeePayment{}).
		Where("identifier = ? AND is_paid = false AND gateway_payment_id = ''", identifier).
		Updates(map[string]interface{}{
			"gateway_payment_id": paymentID,
			"pay_address":        payAddress,
			"pay_currency":       payCurrency,
			"pay_amount":         payAmount,
			"expires_at":         expiresAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
