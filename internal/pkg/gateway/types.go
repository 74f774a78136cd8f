package gateway

import (
	"errors"

	"github.com/shopspring/decimal"
)

// 支付用途，决定网关侧展示的订单描述
const (
	PurposeOrder         = "order"
	PurposeVendorFee     = "vendor_fee"
	PurposeAdvertisement = "advertisement"
)

// 回调里视为"支付完成"的状态
const (
	StatusFinished  = "finished"
	StatusConfirmed = "confirmed"
)

var (
	// ErrGatewayUnavailable 连接失败、超时或 5xx，可重试
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayRejected 4xx，参数或账户问题，重试无意义
	ErrGatewayRejected = errors.New("payment gateway rejected request")

	// ErrPayoutDisabled 配置层关闭了打款
	ErrPayoutDisabled = errors.New("payouts are disabled")
)

// CreatePaymentRequest 创建支付意向的入参
// ReferenceID 是幂等锚点：同一笔业务成功后不可盲目重发
type CreatePaymentRequest struct {
	PriceAmount   decimal.Decimal
	PriceCurrency string
	PayCurrency   string
	ReferenceID   string
	Purpose       string
}

// PaymentIntent 网关返回的支付意向
type PaymentIntent struct {
	PaymentID     string          `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PayAddress    string          `json:"pay_address"`
	PriceAmount   decimal.Decimal `json:"price_amount"`
	PriceCurrency string          `json:"price_currency"`
	PayAmount     decimal.Decimal `json:"pay_amount"`
	PayCurrency   string          `json:"pay_currency"`
	ReferenceID   string          `json:"order_id"`
	CreatedAt     string          `json:"created_at"`
}

// PaymentStatus 支付状态查询结果
type PaymentStatus struct {
	PaymentID     string          `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PayAddress    string          `json:"pay_address"`
	PayAmount     decimal.Decimal `json:"pay_amount"`
	ActuallyPaid  decimal.Decimal `json:"actually_paid"`
	PayCurrency   string          `json:"pay_currency"`
	ReferenceID   string          `json:"order_id"`
}

// Payout 打款结果
type Payout struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Address   string          `json:"address"`
	Hash      string          `json:"hash"`
	CreatedAt string          `json:"created_at"`
}
