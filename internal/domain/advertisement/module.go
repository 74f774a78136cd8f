package advertisement

import (
	"crypto_market/internal/domain/advertisement/handler"
	"crypto_market/internal/domain/advertisement/repository"
	"crypto_market/internal/domain/advertisement/service"
	intentRepo "crypto_market/internal/domain/intent/repository"
	"crypto_market/internal/pkg/middleware"
	"crypto_market/internal/pkg/registry"

	"github.com/shopspring/decimal"
)

// AdvertisementModule 商品推广模块
type AdvertisementModule struct {
	service service.AdvertisementService
}

func init() {
	registry.Register(&AdvertisementModule{})
}

func (m *AdvertisementModule) Name() string {
	return "advertisement"
}

func (m *AdvertisementModule) Priority() int {
	return 12
}

func (m *AdvertisementModule) Service() service.AdvertisementService {
	return m.service
}

func (m *AdvertisementModule) Init(ctx *registry.ModuleContext) error {
	aRepo := repository.NewAdvertisementRepository(ctx.DB)
	iRepo := intentRepo.NewIntentRepository(ctx.DB)

	m.service = service.NewAdvertisementService(
		aRepo, iRepo, ctx.Gateway,
		decimal.NewFromFloat(ctx.Config.Marketplace.AdPricePerDay),
	)

	h := handler.NewAdvertisementHandler(m.service)

	group := ctx.Router.Group("/api/v1/advertisements")
	group.GET("/active", h.ListActive)
	group.POST("", middleware.AuthMiddleware(), h.Purchase)

	return nil
}
