package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 支付链路核心指标
var (
	// WebhookTotal 按处理结果统计回调
	// result: confirmed / ignored / bad_signature / unknown / duplicate / late / error
	WebhookTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_total",
			Help: "Total number of payment gateway webhooks by outcome",
		},
		[]string{"result"},
	)

	// GatewayRequestDuration 网关调用耗时
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Payment gateway HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	// ReconcileTransitions 对账触发的自动状态迁移
	// transition: payment_expired / auto_cancelled / auto_completed
	ReconcileTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_reconcile_transitions_total",
			Help: "Automatic order transitions applied by deadline reconciliation",
		},
		[]string{"transition"},
	)

	// PayoutTotal 按结果统计 payout 任务
	PayoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_payout_total",
			Help: "Vendor payout tasks by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveGateway 记录一次网关调用
func ObserveGateway(operation, outcome string, start time.Time) {
	GatewayRequestDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}
