package order

import (
	"context"

	intentRepo "crypto_market/internal/domain/intent/repository"
	"crypto_market/internal/domain/order/handler"
	"crypto_market/internal/domain/order/repository"
	"crypto_market/internal/domain/order/service"
	"crypto_market/internal/pkg/middleware"
	"crypto_market/internal/pkg/registry"
	"crypto_market/internal/pkg/scheduler"
	"crypto_market/internal/pkg/worker"
)

// OrderModule 订单模块：状态机、超时对账、支付意向与卖家打款
type OrderModule struct {
	service   service.OrderService
	scheduler *scheduler.Scheduler
	pool      *worker.PayoutPool
}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	return 10
}

// Service 暴露给回调分发器和对账调度器
func (m *OrderModule) Service() service.OrderService {
	return m.service
}

// Shutdown 停止后台扫描和打款池
// 先停调度器，不再产生新的打款；再停池，在途打款跑完、排队的进死信日志
func (m *OrderModule) Shutdown() {
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
	if m.pool != nil {
		m.pool.Stop()
	}
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	oRepo := repository.NewOrderRepository(ctx.DB)
	iRepo := intentRepo.NewIntentRepository(ctx.DB)

	// 打款池依赖订单仓储回写 payout id，先建执行器再建池
	executor := service.NewPayoutExecutor(ctx.Gateway, oRepo)
	m.pool = worker.NewPayoutPool(executor, 2, 100)
	m.pool.Start()

	m.service = service.NewOrderService(
		oRepo, iRepo, ctx.Gateway, m.pool,
		ctx.Config.Marketplace,
		ctx.Config.Gateway.DefaultCurrency,
	)

	// 页面访问之外的兜底：周期扫描非终态订单，收敛没人打开的过期单
	m.scheduler = scheduler.New("order-deadlines", ctx.Config.Marketplace.ScanInterval,
		func(ctx context.Context) (int, error) {
			return m.service.ReconcileBatch(ctx, 500)
		})
	m.scheduler.Start()

	h := handler.NewOrderHandler(m.service)

	orders := ctx.Router.Group("/api/v1/orders")
	orders.Use(middleware.AuthMiddleware())
	{
		orders.POST("/checkout", h.Checkout)
		orders.GET("", h.List)
		orders.GET("/:id", h.View)
		orders.POST("/:id/sent", h.MarkAsSent)
		orders.POST("/:id/complete", h.MarkAsCompleted)
		orders.POST("/:id/cancel", h.Cancel)
	}

	return nil
}
