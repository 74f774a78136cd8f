package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"crypto_market/internal/domain/webhook/service"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/pkg/logger"
	"crypto_market/pkg/metrics"
	"crypto_market/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureHeader 网关回调的 HMAC 签名头
const SignatureHeader = "X-Gateway-Signature"

type WebhookHandler struct {
	verifier   *gateway.Verifier
	dispatcher *service.Dispatcher
}

func NewWebhookHandler(verifier *gateway.Verifier, dispatcher *service.Dispatcher) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, dispatcher: dispatcher}
}

// HandlePaymentWebhook 接收支付网关回调
// 验签必须基于原始字节，任何先解析再序列化的花样都会破坏签名
// @Summary 支付网关回调
// @Tags Webhook
// @Accept json
// @Router /webhooks/payment-gateway [post]
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil || len(rawBody) == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "empty request body")
		return
	}

	signature := c.GetHeader(SignatureHeader)
	ok, expected, err := h.verifier.Verify(rawBody, signature)
	if err != nil {
		logger.Log.Error("Webhook payload not canonicalizable", zap.Error(err))
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "malformed payload")
		return
	}
	if !ok {
		// 只有验签失败才回 403，其余情况一律 2xx 防止网关无意义重发
		logger.Log.Warn("Webhook signature mismatch",
			zap.String("received", signature),
			zap.String("expected", expected),
			zap.String("remote_addr", c.ClientIP()),
		)
		metrics.WebhookTotal.WithLabelValues("bad_signature").Inc()
		response.Error(c, http.StatusForbidden, response.ErrInvalidSignature, "invalid signature")
		return
	}

	var event service.PaymentEvent
	decoder := json.NewDecoder(bytes.NewReader(rawBody))
	decoder.UseNumber()
	if err := decoder.Decode(&event); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "malformed payload")
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), &event); err != nil {
		logger.Log.Error("Webhook dispatch failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "processing failed")
		return
	}

	response.Success(c, gin.H{"status": "ok"})
}
