package repository

import (
	"context"
	"time"

	"crypto_market/internal/domain/order/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	ListByParticipant(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error)
	ListNonTerminal(ctx context.Context, limit int) ([]model.Order, error)

	// UpdateWithLock 在行锁下读取订单并应用 fn，fn 成功后保存
	// 状态迁移的互斥点：并发的回调确认和超时迁移在这里串行化
	UpdateWithLock(ctx context.Context, id string, fn func(*model.Order) error) (*model.Order, error)

	// SetPaymentIntent 只在订单仍等待支付且没有意向时写入支付字段
	// 返回 false 表示没有行被更新（订单已变更或已有意向），调用方不得覆盖
	SetPaymentIntent(ctx context.Context, id string, paymentID, payAddress, payCurrency string,
		payAmount, requiredAmount, rate decimal.Decimal, expiresAt time.Time) (bool, error)

	SetVendorPayoutID(ctx context.Context, id, payoutID string) error

	GetVendorReturnAddress(ctx context.Context, vendorID, currency string) (*model.ReturnAddress, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByParticipant(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("buyer_id = ? OR vendor_id = ?", userID, userID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) ListNonTerminal(ctx context.Context, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []model.OrderStatus{model.StatusCompleted, model.StatusCancelled}).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) UpdateWithLock(ctx context.Context, id string, fn func(*model.Order) error) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT ... FOR UPDATE，同一订单的并发迁移在此排队
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "id = ?", id).Error; err != nil {
			return err
		}

		if err := fn(&order); err != nil {
			return err
		}

		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) SetPaymentIntent(ctx context.Context, id string, paymentID, payAddress, payCurrency string,
	payAmount, requiredAmount, rate decimal.Decimal, expiresAt time.Time) (bool, error) {

	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ? AND gateway_payment_id = ''", id, model.StatusWaitingPayment).
		Updates(map[string]interface{}{
			"gateway_payment_id": paymentID,
			"pay_address":        payAddress,
			"pay_currency":       payCurrency,
			"pay_amount":         payAmount,
			"required_amount":    requiredAmount,
			"fiat_crypto_rate":   rate,
			"expires_at":         expiresAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *orderRepository) SetVendorPayoutID(ctx context.Context, id, payoutID string) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		UpdateColumn("vendor_payout_id", payoutID).Error
}

func (r *orderRepository) GetVendorReturnAddress(ctx context.Context, vendorID, currency string) (*model.ReturnAddress, error) {
	var addr model.ReturnAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND currency = ?", vendorID, currency).
		Order("created_at DESC").
		First(&addr).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}
