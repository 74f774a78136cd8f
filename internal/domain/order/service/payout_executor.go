package service

import (
	"context"
	"encoding/json"
	"errors"

	"crypto_market/internal/domain/order/repository"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/internal/pkg/worker"
	"crypto_market/pkg/logger"

	"go.uber.org/zap"
)

// PayoutExecutor 把打款任务落到网关提现接口
type PayoutExecutor struct {
	gw   *gateway.Client
	repo repository.OrderRepository
}

func NewPayoutExecutor(gw *gateway.Client, repo repository.OrderRepository) *PayoutExecutor {
	return &PayoutExecutor{gw: gw, repo: repo}
}

func (e *PayoutExecutor) Execute(ctx context.Context, task worker.PayoutTask) error {
	payout, err := e.gw.CreatePayout(ctx, task.Address, json.Number(task.Amount.String()), task.Currency, task.Memo)
	if err != nil {
		// 网关明确拒绝的重试没有意义，直接进死信
		var rejected *gateway.RejectedError
		if errors.As(err, &rejected) {
			logger.Log.Error("Payout rejected by gateway",
				zap.String("order_id", task.OrderID),
				zap.Int("status_code", rejected.StatusCode),
				zap.String("message", rejected.Message),
			)
			return worker.ErrPermanent
		}
		return err
	}

	if err := e.repo.SetVendorPayoutID(ctx, task.OrderID, payout.ID); err != nil {
		// 打款已发出，记录失败只告警不重试，重试会二次打款
		logger.Log.Error("Payout sent but failed to record payout id",
			zap.String("order_id", task.OrderID),
			zap.String("payout_id", payout.ID),
			zap.Error(err),
		)
		return nil
	}

	logger.Log.Info("Vendor payout submitted",
		zap.String("order_id", task.OrderID),
		zap.String("payout_id", payout.ID),
		zap.String("amount", task.Amount.String()),
		zap.String("currency", task.Currency),
	)
	return nil
}
