package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto_market/internal/domain/intent/model"
	intentRepo "crypto_market/internal/domain/intent/repository"
	orderModel "crypto_market/internal/domain/order/model"
	"crypto_market/internal/domain/order/repository"
	"crypto_market/internal/pkg/config"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/internal/pkg/worker"
	"crypto_market/pkg/logger"
	"crypto_market/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CheckoutItem 结算时的商品快照
type CheckoutItem struct {
	ProductID    string
	ProductName  string
	ProductPrice decimal.Decimal
	Quantity     int
	BulkOption   []byte
}

// OrderView 订单详情页数据
type OrderView struct {
	Order      *orderModel.Order `json:"order"`
	IsBuyer    bool              `json:"isBuyer"`
	TotalItems int               `json:"totalItems"`
	PaymentURI string            `json:"paymentUri,omitempty"`
	// 网关暂时不可用时给前端一条降级提示，订单数据照常返回
	PaymentError string `json:"paymentError,omitempty"`
}

type OrderService interface {
	Checkout(ctx context.Context, buyerID, vendorID string, items []CheckoutItem) (*orderModel.Order, error)
	GetOrders(ctx context.Context, userID string, offset, limit int) ([]orderModel.Order, int64, error)

	// ViewOrder 访问订单详情：先跑一遍超时对账，再按需懒创建支付意向
	ViewOrder(ctx context.Context, orderID, actorID string) (*OrderView, error)

	MarkAsSent(ctx context.Context, orderID, actorID string) (*orderModel.Order, error)
	MarkAsCompleted(ctx context.Context, orderID, actorID string) (*orderModel.Order, error)
	CancelOrder(ctx context.Context, orderID, actorID string) (*orderModel.Order, error)

	// ApplyPaymentConfirmation 回调确认支付，幂等：重复确认返回 ErrAlreadyPaid
	ApplyPaymentConfirmation(ctx context.Context, orderID string, received decimal.Decimal) error

	// ReconcileBatch 周期扫描非终态订单并应用超时迁移，返回迁移条数
	ReconcileBatch(ctx context.Context, limit int) (int, error)
}

type orderService struct {
	repo            repository.OrderRepository
	intents         intentRepo.IntentRepository
	gw              *gateway.Client
	payouts         *worker.PayoutPool
	deadlines       DeadlineConfig
	market          config.MarketplaceConfig
	defaultCurrency string
	now             func() time.Time
}

func NewOrderService(
	repo repository.OrderRepository,
	intents intentRepo.IntentRepository,
	gw *gateway.Client,
	payouts *worker.PayoutPool,
	market config.MarketplaceConfig,
	defaultCurrency string,
) OrderService {
	return &orderService{
		repo:            repo,
		intents:         intents,
		gw:              gw,
		payouts:         payouts,
		deadlines:       DeadlineConfigFrom(market),
		market:          market,
		defaultCurrency: defaultCurrency,
		now:             time.Now,
	}
}

func (s *orderService) Checkout(ctx context.Context, buyerID, vendorID string, items []CheckoutItem) (*orderModel.Order, error) {
	if len(items) == 0 {
		return nil, errors.New("cart is empty")
	}
	if buyerID == vendorID {
		return nil, errors.New("cannot order from yourself")
	}

	subtotal := decimal.Zero
	orderItems := make([]orderModel.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("invalid quantity for product %s", item.ProductID)
		}
		line := item.ProductPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
		orderItems = append(orderItems, orderModel.OrderItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductPrice: item.ProductPrice,
			Quantity:     item.Quantity,
			BulkOption:   item.BulkOption,
		})
	}

	commission := subtotal.
		Mul(decimal.NewFromFloat(s.market.CommissionPercentage)).
		Div(decimal.NewFromInt(100)).
		Round(2)

	order := &orderModel.Order{
		BuyerID:    buyerID,
		VendorID:   vendorID,
		Status:     orderModel.StatusWaitingPayment,
		Subtotal:   subtotal,
		Commission: commission,
		Total:      subtotal.Add(commission),
		Items:      orderItems,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	logger.Log.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", buyerID),
		zap.String("vendor_id", vendorID),
		zap.String("total", order.Total.String()),
	)
	return order, nil
}

func (s *orderService) GetOrders(ctx context.Context, userID string, offset, limit int) ([]orderModel.Order, int64, error) {
	return s.repo.ListByParticipant(ctx, userID, offset, limit)
}

func (s *orderService) ViewOrder(ctx context.Context, orderID, actorID string) (*OrderView, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParticipant(actorID) {
		return nil, orderModel.ErrUnauthorized
	}

	// 超时对账先行，过期订单绝不能以"待支付"示人
	order, err = s.reconcile(ctx, order)
	if err != nil {
		return nil, err
	}

	view := &OrderView{
		Order:   order,
		IsBuyer: order.BuyerID == actorID,
	}
	for i := range order.Items {
		view.TotalItems += order.Items[i].Units()
	}

	// 买家首次打开待支付订单时才去网关拿入金地址
	// 同步路径只负责拿地址，支付确认一律走回调
	if view.IsBuyer && order.Status == orderModel.StatusWaitingPayment && !order.HasPaymentIntent() {
		if err := s.ensurePaymentIntent(ctx, order); err != nil {
			// 网关故障降级成提示条，不污染订单状态
			logger.Log.Error("Failed to set up payment",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
			view.PaymentError = "Unable to create payment address. The payment service may be temporarily unavailable. Please try again in a few minutes."
			return view, nil
		}

		order, err = s.repo.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		view.Order = order
	}

	if order.Status == orderModel.StatusWaitingPayment && order.PayAddress != "" {
		view.PaymentURI = s.paymentURI(order.PayCurrency, order.PayAddress, order.PayAmount)
	}

	return view, nil
}

// ensurePaymentIntent 懒创建网关支付意向
// 失败路径保证不留半写的支付字段：只有网关成功返回后才落库，
// 且落库带状态条件，期间被取消的订单不会被覆盖
func (s *orderService) ensurePaymentIntent(ctx context.Context, order *orderModel.Order) error {
	intent, err := s.gw.CreatePayment(ctx, gateway.CreatePaymentRequest{
		PriceAmount:   order.Total,
		PriceCurrency: "usd",
		PayCurrency:   order.PayCurrency,
		ReferenceID:   order.ID,
		Purpose:       gateway.PurposeOrder,
	})
	if err != nil {
		return err
	}

	// 汇率由网关报价反推：total / pay_amount
	rate := decimal.Zero
	if !intent.PayAmount.IsZero() {
		rate = order.Total.DivRound(intent.PayAmount, 8)
	}
	expiresAt := s.now().Add(s.deadlines.PaymentWindow)

	updated, err := s.repo.SetPaymentIntent(ctx, order.ID,
		intent.PaymentID, intent.PayAddress, intent.PayCurrency,
		intent.PayAmount, intent.PayAmount, rate, expiresAt)
	if err != nil {
		return err
	}
	if !updated {
		// 订单在网关调用期间已变更（取消或并发创建），保留现状
		logger.Log.Warn("Payment intent not stored, order state changed meanwhile",
			zap.String("order_id", order.ID),
			zap.String("gateway_payment_id", intent.PaymentID),
		)
		return nil
	}

	return s.intents.Register(ctx, &model.PaymentIntent{
		Kind:             model.KindOrder,
		ReferenceID:      order.ID,
		GatewayPaymentID: intent.PaymentID,
	})
}

func (s *orderService) MarkAsSent(ctx context.Context, orderID, actorID string) (*orderModel.Order, error) {
	return s.repo.UpdateWithLock(ctx, orderID, func(o *orderModel.Order) error {
		return o.MarkSent(actorID, s.now())
	})
}

func (s *orderService) MarkAsCompleted(ctx context.Context, orderID, actorID string) (*orderModel.Order, error) {
	order, err := s.repo.UpdateWithLock(ctx, orderID, func(o *orderModel.Order) error {
		return o.MarkCompleted(actorID, s.now(), false)
	})
	if err != nil {
		return nil, err
	}

	// 只有拿到 sent→completed 迁移的那一次调用会走到这里，打款不会重复
	s.schedulePayout(ctx, order)
	return order, nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, actorID string) (*orderModel.Order, error) {
	return s.repo.UpdateWithLock(ctx, orderID, func(o *orderModel.Order) error {
		return o.Cancel(actorID, s.now(), false)
	})
}

func (s *orderService) ApplyPaymentConfirmation(ctx context.Context, orderID string, received decimal.Decimal) error {
	_, err := s.repo.UpdateWithLock(ctx, orderID, func(o *orderModel.Order) error {
		return o.MarkPaid(s.now(), received)
	})
	return err
}

// reconcile 对单个订单应用超时迁移
// 先用内存里的快照粗判，需要迁移时在行锁下重新评估再执行
func (s *orderService) reconcile(ctx context.Context, order *orderModel.Order) (*orderModel.Order, error) {
	verdict := EvaluateDeadlines(s.now(), order, s.deadlines)
	if verdict.None() {
		return order, nil
	}

	var applied string
	updated, err := s.repo.UpdateWithLock(ctx, order.ID, func(o *orderModel.Order) error {
		// 锁内重评，避免和回调/其它对账并发时重复迁移
		v := EvaluateDeadlines(s.now(), o, s.deadlines)
		switch {
		case v.PaymentExpired:
			applied = "payment_expired"
			return o.Cancel("", s.now(), true)
		case v.ShipDeadlinePassed:
			applied = "auto_cancelled"
			return o.Cancel("", s.now(), true)
		case v.ConfirmDeadlinePassed:
			applied = "auto_completed"
			return o.MarkCompleted("", s.now(), true)
		default:
			applied = ""
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	if applied == "" {
		return updated, nil
	}

	metrics.ReconcileTransitions.WithLabelValues(applied).Inc()
	logger.Log.Info("Deadline transition applied",
		zap.String("order_id", updated.ID),
		zap.String("transition", applied),
		zap.String("status", string(updated.Status)),
	)

	if applied == "auto_completed" {
		s.schedulePayout(ctx, updated)
	}
	return updated, nil
}

func (s *orderService) ReconcileBatch(ctx context.Context, limit int) (int, error) {
	orders, err := s.repo.ListNonTerminal(ctx, limit)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range orders {
		before := orders[i].Status
		after, err := s.reconcile(ctx, &orders[i])
		if err != nil {
			logger.Log.Error("Reconcile failed", zap.String("order_id", orders[i].ID), zap.Error(err))
			continue
		}
		if after.Status != before {
			applied++
		}
	}
	return applied, nil
}

// schedulePayout 订单完结后给卖家打款：total − commission，结算币种
func (s *orderService) schedulePayout(ctx context.Context, order *orderModel.Order) {
	currency := order.PayCurrency
	if currency == "" {
		currency = s.defaultCurrency
	}

	amount := order.VendorPayoutAmount()
	if amount.IsZero() && !order.TotalReceived.IsZero() && !order.Total.IsZero() {
		// 没有本地汇率（意向先于本地记录确认）时按实收金额等比扣佣金
		amount = order.TotalReceived.Mul(order.VendorAmount()).DivRound(order.Total, 12)
	}
	if amount.IsZero() {
		logger.Log.Error("Cannot determine payout amount, manual payout required",
			zap.String("order_id", order.ID))
		metrics.PayoutTotal.WithLabelValues("dead").Inc()
		return
	}

	addr, err := s.repo.GetVendorReturnAddress(ctx, order.VendorID, currency)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Log.Error("Vendor has no return address, manual payout required",
				zap.String("order_id", order.ID),
				zap.String("vendor_id", order.VendorID),
				zap.String("currency", currency),
			)
		} else {
			logger.Log.Error("Failed to load vendor return address",
				zap.String("order_id", order.ID), zap.Error(err))
		}
		metrics.PayoutTotal.WithLabelValues("dead").Inc()
		return
	}

	s.payouts.AddTask(worker.PayoutTask{
		OrderID:  order.ID,
		Address:  addr.Address,
		Amount:   amount,
		Currency: currency,
		Memo:     "order " + order.ID,
	})
}

// paymentURI 生成钱包可识别的支付链接，如 monero:<addr>?tx_amount=<amt>
func (s *orderService) paymentURI(currency, address string, amount decimal.Decimal) string {
	scheme := currency
	param := "amount"
	if c, ok := s.market.Currency(currency); ok && c.URIScheme != "" {
		scheme = c.URIScheme
	}
	if scheme == "monero" {
		param = "tx_amount"
	}
	if amount.IsPositive() {
		return fmt.Sprintf("%s:%s?%s=%s", scheme, address, param, amount.String())
	}
	return fmt.Sprintf("%s:%s", scheme, address)
}
