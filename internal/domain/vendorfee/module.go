package vendorfee

import (
	"time"

	intentRepo "crypto_market/internal/domain/intent/repository"
	"crypto_market/internal/domain/vendorfee/handler"
	"crypto_market/internal/domain/vendorfee/repository"
	"crypto_market/internal/domain/vendorfee/service"
	"crypto_market/internal/pkg/middleware"
	"crypto_market/internal/pkg/registry"

	"github.com/shopspring/decimal"
)

// VendorFeeModule 入驻费模块
type VendorFeeModule struct {
	service service.VendorFeeService
}

func init() {
	registry.Register(&VendorFeeModule{})
}

func (m *VendorFeeModule) Name() string {
	return "vendorfee"
}

func (m *VendorFeeModule) Priority() int {
	return 11
}

func (m *VendorFeeModule) Service() service.VendorFeeService {
	return m.service
}

func (m *VendorFeeModule) Init(ctx *registry.ModuleContext) error {
	vRepo := repository.NewVendorFeeRepository(ctx.DB)
	iRepo := intentRepo.NewIntentRepository(ctx.DB)

	m.service = service.NewVendorFeeService(
		vRepo, iRepo, ctx.Gateway,
		decimal.NewFromFloat(ctx.Config.Marketplace.VendorFeeAmount),
		time.Duration(ctx.Config.Marketplace.PaymentWindowMinutes)*time.Minute,
	)

	h := handler.NewVendorFeeHandler(m.service)

	group := ctx.Router.Group("/api/v1/vendor-fee")
	group.Use(middleware.AuthMiddleware())
	{
		group.POST("", h.EnsurePayment)
	}

	return nil
}
