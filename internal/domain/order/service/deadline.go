package service

import (
	"time"

	"crypto_market/internal/domain/order/model"
	"crypto_market/internal/pkg/config"
)

// DeadlineConfig 三个竞争的时间窗口
type DeadlineConfig struct {
	PaymentWindow   time.Duration // 付款窗口，入金地址创建后开始计时
	ShipDeadline    time.Duration // 付款后卖家发货期限
	ConfirmDeadline time.Duration // 发货后买家确认期限
}

// DeadlineConfigFrom 从市场配置构造
func DeadlineConfigFrom(m config.MarketplaceConfig) DeadlineConfig {
	return DeadlineConfig{
		PaymentWindow:   time.Duration(m.PaymentWindowMinutes) * time.Minute,
		ShipDeadline:    time.Duration(m.ShipDeadlineHours) * time.Hour,
		ConfirmDeadline: time.Duration(m.ConfirmDeadlineHours) * time.Hour,
	}
}

// DeadlineVerdict 当前时刻应触发的超时迁移，最多一项为真
type DeadlineVerdict struct {
	PaymentExpired        bool // waiting_payment 且付款窗口已过 → 取消
	ShipDeadlinePassed    bool // payment_received 且发货期限已过 → 取消
	ConfirmDeadlinePassed bool // sent 且确认期限已过 → 完成并打款
}

// None 没有任何超时迁移需要执行
func (v DeadlineVerdict) None() bool {
	return !v.PaymentExpired && !v.ShipDeadlinePassed && !v.ConfirmDeadlinePassed
}

// EvaluateDeadlines 纯函数：判断订单在 now 时刻该触发哪个超时迁移
// 终态订单恒为零值；付款超时只在入金地址已生成后才成立
func EvaluateDeadlines(now time.Time, o *model.Order, cfg DeadlineConfig) DeadlineVerdict {
	var v DeadlineVerdict
	if o.IsTerminal() {
		return v
	}

	switch o.Status {
	case model.StatusWaitingPayment:
		if o.PayAddress != "" && o.ExpiresAt != nil && now.After(*o.ExpiresAt) {
			v.PaymentExpired = true
		}
	case model.StatusPaymentReceived:
		if o.PaidAt != nil && now.Sub(*o.PaidAt) > cfg.ShipDeadline {
			v.ShipDeadlinePassed = true
		}
	case model.StatusSent:
		if o.SentAt != nil && now.Sub(*o.SentAt) > cfg.ConfirmDeadline {
			v.ConfirmDeadlinePassed = true
		}
	}

	return v
}
