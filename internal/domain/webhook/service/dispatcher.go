package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	adSvc "crypto_market/internal/domain/advertisement/service"
	intentModel "crypto_market/internal/domain/intent/model"
	intentRepo "crypto_market/internal/domain/intent/repository"
	orderModel "crypto_market/internal/domain/order/model"
	orderSvc "crypto_market/internal/domain/order/service"
	vfSvc "crypto_market/internal/domain/vendorfee/service"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/pkg/logger"
	"crypto_market/pkg/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentEvent 网关回调载荷
// payment_id 在回调里是数字字面量，用 json.Number 接住再转字符串
type PaymentEvent struct {
	PaymentID     json.Number     `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	ReferenceID   string          `json:"order_id"`
	PayAddress    string          `json:"pay_address"`
	PayCurrency   string          `json:"pay_currency"`
	PayAmount     decimal.Decimal `json:"pay_amount"`
	ActuallyPaid  decimal.Decimal `json:"actually_paid"`
	PriceAmount   decimal.Decimal `json:"price_amount"`
	PriceCurrency string          `json:"price_currency"`
}

// Received 实收金额，回调没带 actually_paid 时退回报价金额
func (e *PaymentEvent) Received() decimal.Decimal {
	if e.ActuallyPaid.IsPositive() {
		return e.ActuallyPaid
	}
	return e.PayAmount
}

// Dispatcher 把已验签的回调路由到对应业务域
type Dispatcher struct {
	intents intentRepo.IntentRepository
	orders  orderSvc.OrderService
	fees    vfSvc.VendorFeeService
	ads     adSvc.AdvertisementService
	rdb     *redis.Client
}

func NewDispatcher(
	intents intentRepo.IntentRepository,
	orders orderSvc.OrderService,
	fees vfSvc.VendorFeeService,
	ads adSvc.AdvertisementService,
	rdb *redis.Client,
) *Dispatcher {
	return &Dispatcher{
		intents: intents,
		orders:  orders,
		fees:    fees,
		ads:     ads,
		rdb:     rdb,
	}
}

// Dispatch 处理一条已验签的回调
// 除签名错误（调用方处理）外这里只返回内部错误，业务上的
// 忽略（非完成状态、重复、未知引用）都记日志后按成功返回，
// 网关对非 2xx 会重发，没必要让它重发一条我们处理不了的消息
func (d *Dispatcher) Dispatch(ctx context.Context, event *PaymentEvent) error {
	paymentID := event.PaymentID.String()

	if event.PaymentStatus != gateway.StatusFinished && event.PaymentStatus != gateway.StatusConfirmed {
		logger.Log.Info("Webhook ignored, payment not final",
			zap.String("payment_id", paymentID),
			zap.String("status", event.PaymentStatus),
			zap.String("reference_id", event.ReferenceID),
		)
		metrics.WebhookTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	// 同一 payment_id + status 只处理一次，失败时释放锁让网关重试
	dedupKey := fmt.Sprintf("webhook:dedup:%s:%s", paymentID, event.PaymentStatus)
	acquired, err := d.rdb.SetNX(ctx, dedupKey, 1, 24*time.Hour).Result()
	if err != nil {
		// Redis 不可用时放行，业务层自身幂等
		logger.Log.Warn("Webhook dedup unavailable, proceeding", zap.Error(err))
		acquired = true
	}
	if !acquired {
		logger.Log.Info("Webhook duplicate, already processed",
			zap.String("payment_id", paymentID),
			zap.String("status", event.PaymentStatus),
		)
		metrics.WebhookTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	if err := d.route(ctx, event); err != nil {
		d.rdb.Del(ctx, dedupKey)
		metrics.WebhookTotal.WithLabelValues("error").Inc()
		return err
	}
	return nil
}

func (d *Dispatcher) route(ctx context.Context, event *PaymentEvent) error {
	received := event.Received()

	intent, err := d.intents.Resolve(ctx, event.ReferenceID)
	if err != nil {
		return err
	}
	if intent != nil {
		switch intent.Kind {
		case intentModel.KindOrder:
			return d.confirmOrder(ctx, intent.ReferenceID, received)
		case intentModel.KindVendorFee:
			return d.confirmOther(ctx, "vendor fee",
				d.fees.ApplyPaymentConfirmation, intent.ReferenceID, received)
		case intentModel.KindAdvertisement:
			return d.confirmOther(ctx, "advertisement",
				d.ads.ApplyPaymentConfirmation, intent.ReferenceID, received)
		}
	}

	// 意向表之前的历史支付没有登记记录，按引用号逐域探测
	// 订单主键是 uuid 列，非 uuid 引用号直接跳过以免类型报错
	if _, err := uuid.Parse(event.ReferenceID); err == nil {
		if err := d.confirmOrder(ctx, event.ReferenceID, received); !errors.Is(err, errNotFound) {
			return err
		}
	}
	if err := d.confirmOther(ctx, "vendor fee",
		d.fees.ApplyPaymentConfirmation, event.ReferenceID, received); !errors.Is(err, errNotFound) {
		return err
	}
	if err := d.confirmOther(ctx, "advertisement",
		d.ads.ApplyPaymentConfirmation, event.ReferenceID, received); !errors.Is(err, errNotFound) {
		return err
	}

	logger.Log.Warn("Webhook for unknown reference",
		zap.String("payment_id", event.PaymentID.String()),
		zap.String("reference_id", event.ReferenceID),
	)
	metrics.WebhookTotal.WithLabelValues("unknown").Inc()
	return nil
}

var errNotFound = errors.New("reference not found")

func (d *Dispatcher) confirmOrder(ctx context.Context, orderID string, received decimal.Decimal) error {
	err := d.orders.ApplyPaymentConfirmation(ctx, orderID, received)
	switch {
	case err == nil:
		metrics.WebhookTotal.WithLabelValues("confirmed").Inc()
		logger.Log.Info("Order payment confirmed via webhook",
			zap.String("order_id", orderID),
			zap.String("received", received.String()),
		)
		return nil
	case errors.Is(err, orderModel.ErrAlreadyPaid):
		metrics.WebhookTotal.WithLabelValues("duplicate").Inc()
		return nil
	case errors.Is(err, orderModel.ErrInvalidTransition):
		// 终态订单收到迟到回调：不改状态，留审计线索
		metrics.WebhookTotal.WithLabelValues("late").Inc()
		logger.Log.Warn("Late webhook for terminal order, state unchanged",
			zap.String("order_id", orderID),
			zap.String("received", received.String()),
		)
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errNotFound
	default:
		return err
	}
}

func (d *Dispatcher) confirmOther(ctx context.Context, kind string,
	apply func(context.Context, string, decimal.Decimal) error,
	identifier string, received decimal.Decimal) error {

	err := apply(ctx, identifier, received)
	switch {
	case err == nil:
		metrics.WebhookTotal.WithLabelValues("confirmed").Inc()
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errNotFound
	default:
		logger.Log.Error("Webhook confirmation failed",
			zap.String("kind", kind),
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		return err
	}
}
