package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"crypto_market/internal/pkg/config"
	"crypto_market/pkg/logger"
	"crypto_market/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// payout 鉴权 token 的缓存键，网关 token 有效期约 5 分钟，留 1 分钟余量
const (
	payoutTokenKey = "gateway:payout_token"
	payoutTokenTTL = 4 * time.Minute
)

// Client 支付网关 HTTP 客户端
// 配置显式注入，不在调用路径里读全局配置
type Client struct {
	cfg    config.GatewayConfig
	appURL string
	http   *http.Client
	rdb    *redis.Client
}

// NewClient 创建网关客户端
// appURL 用于把相对回调路径拼成完整 URL
func NewClient(cfg config.GatewayConfig, appURL string, rdb *redis.Client) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		cfg:    cfg,
		appURL: strings.TrimRight(appURL, "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		rdb: rdb,
	}
}

// CreatePayment 创建支付意向，返回入金地址和应付金额
// referenceID 是幂等锚点：调用方只有在确认没有意向生成的失败后才能重发
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentIntent, error) {
	// 调用方没指定结算币种时用配置里的默认币种，网关不接受空 pay_currency
	payCurrency := strings.ToLower(req.PayCurrency)
	if payCurrency == "" {
		payCurrency = strings.ToLower(c.cfg.DefaultCurrency)
	}

	payload := map[string]interface{}{
		"price_amount":      json.Number(req.PriceAmount.String()),
		"price_currency":    strings.ToLower(req.PriceCurrency),
		"pay_currency":      payCurrency,
		"ipn_callback_url":  c.callbackURL(),
		"order_id":          req.ReferenceID,
		"order_description": orderDescription(req.Purpose),
	}

	var intent PaymentIntent
	if err := c.do(ctx, "create_payment", http.MethodPost, "/payment", payload, &intent, ""); err != nil {
		logger.Log.Error("Gateway create payment failed",
			zap.String("reference_id", req.ReferenceID),
			zap.String("purpose", req.Purpose),
			zap.String("pay_currency", payCurrency),
			zap.Error(err),
		)
		return nil, err
	}

	if intent.PaymentID == "" || intent.PayAddress == "" {
		return nil, fmt.Errorf("%w: incomplete payment response", ErrGatewayRejected)
	}
	if intent.PayCurrency == "" {
		intent.PayCurrency = payCurrency
	}

	return &intent, nil
}

// GetPaymentStatus 查询支付状态
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	var status PaymentStatus
	if err := c.do(ctx, "get_payment_status", http.MethodGet, "/payment/"+paymentID, nil, &status, ""); err != nil {
		logger.Log.Error("Gateway status check failed",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return nil, err
	}
	return &status, nil
}

// CreatePayout 向外部地址打款（供应商货款、退款）
// 需要先通过 /auth 换取短期 bearer 凭证
func (c *Client) CreatePayout(ctx context.Context, address string, amount json.Number, currency, memo string) (*Payout, error) {
	if !c.cfg.PayoutEnabled {
		logger.Log.Warn("Payout attempted but payouts are disabled",
			zap.String("address", address),
			zap.String("currency", currency),
		)
		return nil, ErrPayoutDisabled
	}

	payload := map[string]interface{}{
		"address":          address,
		"amount":           amount,
		"currency":         strings.ToLower(currency),
		"ipn_callback_url": c.callbackURL(),
	}
	if memo != "" {
		payload["extraId"] = memo
	}

	token, err := c.payoutToken(ctx, false)
	if err != nil {
		return nil, err
	}

	var payout Payout
	err = c.do(ctx, "create_payout", http.MethodPost, "/payout", payload, &payout, token)
	if isAuthRejected(err) {
		// 凭证过期或被吊销，强制重新认证后再试一次
		token, err = c.payoutToken(ctx, true)
		if err != nil {
			return nil, err
		}
		err = c.do(ctx, "create_payout", http.MethodPost, "/payout", payload, &payout, token)
	}
	if err != nil {
		logger.Log.Error("Gateway payout failed",
			zap.String("address", address),
			zap.String("currency", currency),
			zap.String("memo", memo),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("Gateway payout created",
		zap.String("payout_id", payout.ID),
		zap.String("status", payout.Status),
		zap.String("currency", currency),
	)
	return &payout, nil
}

// payoutToken 获取打款用的 bearer 凭证，Redis 缓存到过期
func (c *Client) payoutToken(ctx context.Context, force bool) (string, error) {
	if !force {
		if token, err := c.rdb.Get(ctx, payoutTokenKey).Result(); err == nil && token != "" {
			return token, nil
		}
	}

	payload := map[string]interface{}{
		"email":    c.cfg.PayoutEmail,
		"password": c.cfg.PayoutPassword,
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "auth", http.MethodPost, "/auth", payload, &result, ""); err != nil {
		return "", fmt.Errorf("gateway auth: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("%w: empty auth token", ErrGatewayRejected)
	}

	if err := c.rdb.Set(ctx, payoutTokenKey, result.Token, payoutTokenTTL).Err(); err != nil {
		// 缓存失败只影响下次调用的耗时
		logger.Log.Warn("Failed to cache payout token", zap.Error(err))
	}

	return result.Token, nil
}

// do 发送请求并解析响应
// 连接错误和 5xx 按配置的次数重试；4xx 视为永久失败不重试
func (c *Client) do(ctx context.Context, op, method, path string, payload interface{}, out interface{}, bearer string) error {
	start := time.Now()

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			// 线性退避，同时尊重上游取消
			select {
			case <-ctx.Done():
				metrics.ObserveGateway(op, "cancelled", start)
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL()+path, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("x-api-key", c.cfg.APIKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				metrics.ObserveGateway(op, "cancelled", start)
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, readErr)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			metrics.ObserveGateway(op, "ok", start)
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
			return nil

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: status %d: %s", ErrGatewayUnavailable, resp.StatusCode, apiMessage(respBody))
			continue

		default:
			// 4xx 不重试
			metrics.ObserveGateway(op, "rejected", start)
			return &RejectedError{
				StatusCode: resp.StatusCode,
				Message:    apiMessage(respBody),
			}
		}
	}

	metrics.ObserveGateway(op, "unavailable", start)
	return lastErr
}

// callbackURL 相对路径前面拼上应用地址
func (c *Client) callbackURL() string {
	path := c.cfg.CallbackPath
	if strings.HasPrefix(path, "/") {
		return c.appURL + path
	}
	return path
}

// RejectedError 网关 4xx 响应，携带状态码和网关侧提示
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment gateway rejected request: status %d: %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Unwrap() error { return ErrGatewayRejected }

func isAuthRejected(err error) bool {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.StatusCode == http.StatusUnauthorized || rejected.StatusCode == http.StatusForbidden
	}
	return false
}

// apiMessage 从网关错误响应里提取 message 字段，取不到就返回原始 body
func apiMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	const max = 256
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}

func orderDescription(purpose string) string {
	switch purpose {
	case PurposeVendorFee:
		return "Vendor registration fee"
	case PurposeOrder:
		return "Order payment"
	case PurposeAdvertisement:
		return "Advertisement payment"
	default:
		return "Payment"
	}
}
