package webhook

import (
	"fmt"

	"crypto_market/internal/domain/advertisement"
	intentRepo "crypto_market/internal/domain/intent/repository"
	"crypto_market/internal/domain/order"
	"crypto_market/internal/domain/vendorfee"
	"crypto_market/internal/domain/webhook/handler"
	"crypto_market/internal/domain/webhook/service"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/internal/pkg/registry"
)

// WebhookModule 支付网关回调入口
// 依赖三个业务域的服务，优先级必须低于它们
type WebhookModule struct{}

func init() {
	registry.Register(&WebhookModule{})
}

func (m *WebhookModule) Name() string {
	return "webhook"
}

func (m *WebhookModule) Priority() int {
	return 20
}

func (m *WebhookModule) Init(ctx *registry.ModuleContext) error {
	orderModule, ok := registry.Get("order").(*order.OrderModule)
	if !ok {
		return fmt.Errorf("webhook module requires order module")
	}
	feeModule, ok := registry.Get("vendorfee").(*vendorfee.VendorFeeModule)
	if !ok {
		return fmt.Errorf("webhook module requires vendorfee module")
	}
	adModule, ok := registry.Get("advertisement").(*advertisement.AdvertisementModule)
	if !ok {
		return fmt.Errorf("webhook module requires advertisement module")
	}

	dispatcher := service.NewDispatcher(
		intentRepo.NewIntentRepository(ctx.DB),
		orderModule.Service(),
		feeModule.Service(),
		adModule.Service(),
		ctx.Redis,
	)

	verifier := gateway.NewVerifier(ctx.Config.Gateway.IPNSecret)
	h := handler.NewWebhookHandler(verifier, dispatcher)

	// 回调路径不走认证，安全性完全由 HMAC 验签保证
	ctx.Router.POST(ctx.Config.Gateway.CallbackPath, h.HandlePaymentWebhook)

	return nil
}
