package model

import (
	"time"
)

// IntentKind 支付意向结算的聚合类型
type IntentKind string

const (
	KindOrder         IntentKind = "order"
	KindVendorFee     IntentKind = "vendor_fee"
	KindAdvertisement IntentKind = "advertisement"
)

// PaymentIntent 支付意向登记表
// 回调分发不再挨个探测三张业务表，而是用唯一的 reference_id 查这张表，
// kind 指明这笔钱结算的是哪个聚合，避免各表标识空间将来冲突
type PaymentIntent struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Kind             IntentKind `gorm:"type:varchar(20);not null" json:"kind"`
	ReferenceID      string     `gorm:"uniqueIndex;not null" json:"referenceId"`
	GatewayPaymentID string     `gorm:"index" json:"gatewayPaymentId"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (PaymentIntent) TableName() string {
	return "payment_intents"
}
