package model

import (
	"time"

	"crypto_market/pkg/model"

	"github.com/shopspring/decimal"
)

// AdvertisementPayment 商品推广位购买记录
// 支付确认后才开始计时，EndsAt = 确认时间 + 天数
type AdvertisementPayment struct {
	model.BaseModel
	UserID            string `gorm:"type:uuid;not null;index" json:"userId"`
	ProductID         string `gorm:"type:uuid;not null;index" json:"productId"`
	PaymentIdentifier string `gorm:"type:varchar(64);uniqueIndex;not null" json:"paymentIdentifier"`

	DurationDays int             `gorm:"not null" json:"durationDays"`
	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`

	PayCurrency      string          `gorm:"type:varchar(16)" json:"payCurrency"`
	PayAddress       string          `gorm:"type:varchar(128)" json:"payAddress"`
	PayAmount        decimal.Decimal `gorm:"type:numeric(18,12);default:0" json:"payAmount"`
	GatewayPaymentID string          `gorm:"type:varchar(64);default:''" json:"-"`

	IsPaid   bool       `gorm:"default:false" json:"isPaid"`
	PaidAt   *time.Time `json:"paidAt,omitempty"`
	StartsAt *time.Time `json:"startsAt,omitempty"`
	EndsAt   *time.Time `json:"endsAt,omitempty"`
}

func (AdvertisementPayment) TableName() string {
	return "advertisement_payments"
}

// MarkPaid 确认支付并开启推广期，幂等
func (a *AdvertisementPayment) MarkPaid(now time.Time) bool {
	if a.IsPaid {
		return false
	}
	ends := now.AddDate(0, 0, a.DurationDays)
	a.IsPaid = true
	a.PaidAt = &now
	a.StartsAt = &now
	a.EndsAt = &ends
	return true
}

// Active 推广是否在有效期内
func (a *AdvertisementPayment) Active(now time.Time) bool {
	return a.IsPaid && a.StartsAt != nil && a.EndsAt != nil &&
		!now.Before(*a.StartsAt) && now.Before(*a.EndsAt)
}
