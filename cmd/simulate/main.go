package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"crypto_market/internal/pkg/config"
	"crypto_market/internal/pkg/gateway"
)

// 本地联调用的回调模拟器：构造一条和网关同构的已签名回调打到本机
// 只允许在沙箱环境使用，防止误触生产确认逻辑
func main() {
	var (
		reference = flag.String("reference", "", "business reference (order id / vf-xxx / ad-xxx)")
		paymentID = flag.Int64("payment-id", 0, "gateway payment id, random if omitted")
		status    = flag.String("status", "finished", "payment status to report")
		amount    = flag.String("amount", "0.05", "actually paid amount in pay currency")
		currency  = flag.String("currency", "xmr", "pay currency")
		target    = flag.String("url", "", "webhook endpoint, defaults to app url + callback path")
	)
	flag.Parse()

	if *reference == "" {
		log.Fatal("missing -reference")
	}

	config.LoadConfig()
	cfg := config.GlobalConfig

	if !cfg.Gateway.IsSandbox() {
		log.Fatal("refusing to simulate payments outside sandbox environment")
	}

	id := *paymentID
	if id == 0 {
		id = rand.New(rand.NewSource(time.Now().UnixNano())).Int63n(9000000000) + 1000000000
	}

	payload := map[string]interface{}{
		"payment_id":     id,
		"payment_status": *status,
		"order_id":       *reference,
		"pay_currency":   *currency,
		"pay_amount":     json.Number(*amount),
		"actually_paid":  json.Number(*amount),
	}
	rawBody, err := json.Marshal(payload)
	if err != nil {
		log.Fatal(err)
	}

	canonical, err := gateway.CanonicalizePayload(rawBody)
	if err != nil {
		log.Fatal(err)
	}
	signature := gateway.NewVerifier(cfg.Gateway.IPNSecret).Sign(canonical)

	endpoint := *target
	if endpoint == "" {
		endpoint = cfg.App.URL + cfg.Gateway.CallbackPath
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(rawBody))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Signature", signature)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("payment_id=%d status=%s -> HTTP %d\n%s\n", id, *status, resp.StatusCode, body)
}
