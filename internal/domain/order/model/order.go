package model

import (
	"errors"
	"fmt"
	"time"

	baseModel "crypto_market/pkg/model"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

// 状态流转：waiting_payment → payment_received → sent → completed
// cancelled 可以从前三个状态进入；completed / cancelled 为终态
const (
	StatusWaitingPayment  OrderStatus = "waiting_payment"
	StatusPaymentReceived OrderStatus = "payment_received"
	StatusSent            OrderStatus = "sent"
	StatusCompleted       OrderStatus = "completed"
	StatusCancelled       OrderStatus = "cancelled"
)

// 新增状态记得同步这张表
var validOrderStatuses = map[OrderStatus]struct{}{
	StatusWaitingPayment:  {},
	StatusPaymentReceived: {},
	StatusSent:            {},
	StatusCompleted:       {},
	StatusCancelled:       {},
}

// ToOrderStatus 校验并转换状态字符串
func ToOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := validOrderStatuses[status]; ok {
		return status, nil
	}
	return "", fmt.Errorf("invalid order status: %q", s)
}

var (
	// ErrInvalidTransition 当前状态下不允许该操作，订单保持不变
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrUnauthorized 操作者不是该订单的买家或卖家
	ErrUnauthorized = errors.New("actor is not a participant of this order")

	// ErrAlreadyPaid 重复的支付确认（回调重发），按成功处理
	ErrAlreadyPaid = errors.New("order already paid")
)

// Order 订单聚合根
// 金额分两套：法币计价的 subtotal/commission/total，和网关结算用的加密币字段
type Order struct {
	baseModel.BaseModel
	BuyerID  string      `gorm:"type:uuid;index;not null" json:"buyerId"`
	VendorID string      `gorm:"type:uuid;index;not null" json:"vendorId"`
	Status   OrderStatus `gorm:"type:varchar(32);default:'waiting_payment';index" json:"status"`
	IsPaid   bool        `gorm:"default:false" json:"isPaid"`

	Subtotal   decimal.Decimal `gorm:"type:numeric(12,2)" json:"subtotal"`
	Commission decimal.Decimal `gorm:"type:numeric(12,2)" json:"commission"`
	Total      decimal.Decimal `gorm:"type:numeric(12,2)" json:"total"`

	// 支付意向字段：三者要么全空（意向未创建），要么全有值
	PayCurrency      string           `gorm:"type:varchar(10)" json:"payCurrency"`
	PayAddress       string           `json:"payAddress"`
	GatewayPaymentID string           `gorm:"index" json:"gatewayPaymentId"`
	PayAmount        decimal.Decimal  `gorm:"type:numeric(18,12)" json:"payAmount"`
	RequiredAmount   decimal.Decimal  `gorm:"type:numeric(18,12)" json:"requiredAmount"`
	FiatCryptoRate   decimal.Decimal  `gorm:"type:numeric(18,8)" json:"fiatCryptoRate"`
	TotalReceived    decimal.Decimal  `gorm:"type:numeric(18,12)" json:"totalReceived"`

	PaidAt             *time.Time `json:"paidAt,omitempty"`
	PaymentCompletedAt *time.Time `json:"paymentCompletedAt,omitempty"`
	SentAt             *time.Time `json:"sentAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`

	VendorPayoutID string `json:"vendorPayoutId,omitempty"`
	BuyerPayoutID  string `json:"buyerPayoutId,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// IsTerminal completed / cancelled 之后不再流转
func (o *Order) IsTerminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}

// IsParticipant 操作者是否为买家或卖家
func (o *Order) IsParticipant(userID string) bool {
	return o.BuyerID == userID || o.VendorID == userID
}

// HasPaymentIntent 支付意向是否已创建
func (o *Order) HasPaymentIntent() bool {
	return o.GatewayPaymentID != "" && o.PayAddress != "" && o.PayCurrency != ""
}

// VendorAmount 卖家应得的法币金额（总额减佣金）
func (o *Order) VendorAmount() decimal.Decimal {
	return o.Total.Sub(o.Commission)
}

// VendorPayoutAmount 换算成结算币种的打款金额，保留 12 位小数
func (o *Order) VendorPayoutAmount() decimal.Decimal {
	if o.FiatCryptoRate.IsZero() {
		return decimal.Zero
	}
	return o.VendorAmount().DivRound(o.FiatCryptoRate, 12)
}

// MarkPaid 应用"支付确认"迁移（回调驱动）
// 已支付的重复确认返回 ErrAlreadyPaid；终态订单返回 ErrInvalidTransition
func (o *Order) MarkPaid(now time.Time, received decimal.Decimal) error {
	if o.IsTerminal() {
		return ErrInvalidTransition
	}
	if o.IsPaid || o.Status != StatusWaitingPayment {
		return ErrAlreadyPaid
	}

	o.Status = StatusPaymentReceived
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentCompletedAt = &now
	o.TotalReceived = received
	return nil
}

// MarkSent 卖家发货
func (o *Order) MarkSent(actorID string, now time.Time) error {
	if actorID != o.VendorID {
		return ErrUnauthorized
	}
	if o.Status != StatusPaymentReceived {
		return ErrInvalidTransition
	}

	o.Status = StatusSent
	o.SentAt = &now
	return nil
}

// MarkCompleted 买家确认收货（或确认窗口超时自动触发）
// forced 为 true 时跳过操作者校验，用于超时自动完成
func (o *Order) MarkCompleted(actorID string, now time.Time, forced bool) error {
	if !forced && actorID != o.BuyerID {
		return ErrUnauthorized
	}
	if o.Status != StatusSent {
		return ErrInvalidTransition
	}

	o.Status = StatusCompleted
	o.CompletedAt = &now
	return nil
}

// Cancel 取消订单
// forced 为 true 时跳过操作者校验，用于超时自动取消
func (o *Order) Cancel(actorID string, now time.Time, forced bool) error {
	if !forced && !o.IsParticipant(actorID) {
		return ErrUnauthorized
	}
	if o.IsTerminal() {
		return ErrInvalidTransition
	}

	o.Status = StatusCancelled
	o.CancelledAt = &now
	return nil
}
