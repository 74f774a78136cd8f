package model

import (
	"time"

	"crypto_market/pkg/model"

	"github.com/shopspring/decimal"
)

// VendorFeePayment 开店入驻费
// Identifier 是对网关的业务引用号，和订单号区分开，回调靠它找回这条记录
type VendorFeePayment struct {
	model.BaseModel
	UserID     string `gorm:"type:uuid;not null;index" json:"userId"`
	Identifier string `gorm:"type:varchar(64);uniqueIndex;not null" json:"identifier"`

	Amount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`

	PayCurrency      string          `gorm:"type:varchar(16)" json:"payCurrency"`
	PayAddress       string          `gorm:"type:varchar(128)" json:"payAddress"`
	PayAmount        decimal.Decimal `gorm:"type:numeric(18,12);default:0" json:"payAmount"`
	GatewayPaymentID string          `gorm:"type:varchar(64);default:''" json:"-"`

	IsPaid bool       `gorm:"default:false" json:"isPaid"`
	PaidAt *time.Time `json:"paidAt,omitempty"`

	// ExpiresAt 随支付意向一起写入，过期后入金地址不再展示给用户
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Expired 支付窗口是否已过，没有意向的记录不会过期
func (v *VendorFeePayment) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

func (VendorFeePayment) TableName() string {
	return "vendor_fee_payments"
}

// MarkPaid 幂等确认：已支付的记录直接返回 false
func (v *VendorFeePayment) MarkPaid(now time.Time) bool {
	if v.IsPaid {
		return false
	}
	v.IsPaid = true
	v.PaidAt = &now
	return true
}
