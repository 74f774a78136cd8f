package repository

import (
	"context"
	"errors"

	"crypto_market/internal/domain/intent/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IntentRepository interface {
	// Register 登记支付意向，reference_id 冲突时保留旧记录（幂等）
	Register(ctx context.Context, intent *model.PaymentIntent) error

	// Resolve 按业务引用号查意向，查不到返回 (nil, nil)
	Resolve(ctx context.Context, referenceID string) (*model.PaymentIntent, error)
}

type intentRepository struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) IntentRepository {
	return &intentRepository{db: db}
}

func (r *intentRepository) Register(ctx context.Context, intent *model.PaymentIntent) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference_id"}},
			DoNothing: true,
		}).
		Create(intent).Error
}

func (r *intentRepository) Resolve(ctx context.Context, referenceID string) (*model.PaymentIntent, error) {
	var intent model.PaymentIntent
	err := r.db.WithContext(ctx).First(&intent, "reference_id = ?", referenceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}
