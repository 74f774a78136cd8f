package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"crypto_market/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func init() {
	logger.Init("test", false)
}

// blockingExecutor 卡在 release 上，用来制造在途任务
type blockingExecutor struct {
	started  chan struct{}
	release  chan struct{}
	executed int32
}

func (e *blockingExecutor) Execute(ctx context.Context, task PayoutTask) error {
	e.started <- struct{}{}
	<-e.release
	atomic.AddInt32(&e.executed, 1)
	return nil
}

type countingExecutor struct {
	calls int32
	err   error
}

func (e *countingExecutor) Execute(ctx context.Context, task PayoutTask) error {
	atomic.AddInt32(&e.calls, 1)
	return e.err
}

func task(orderID string) PayoutTask {
	return PayoutTask{
		OrderID:  orderID,
		Address:  "payout-addr",
		Amount:   decimal.RequireFromString("0.476190476190"),
		Currency: "xmr",
	}
}

func TestPayoutPoolStop(t *testing.T) {
	t.Run("Stop waits for the in-flight payout", func(t *testing.T) {
		executor := &blockingExecutor{
			started: make(chan struct{}, 1),
			release: make(chan struct{}),
		}
		pool := NewPayoutPool(executor, 1, 10)
		pool.Start()

		pool.AddTask(task("order-1"))
		<-executor.started

		stopped := make(chan struct{})
		go func() {
			pool.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
			t.Fatal("Stop returned while a payout was still executing")
		case <-time.After(100 * time.Millisecond):
		}

		close(executor.release)
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop did not return after the payout finished")
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&executor.executed))
	})

	t.Run("Queued tasks are drained on stop", func(t *testing.T) {
		executor := &blockingExecutor{
			started: make(chan struct{}, 10),
			release: make(chan struct{}),
		}
		pool := NewPayoutPool(executor, 1, 10)
		pool.Start()

		pool.AddTask(task("order-1"))
		<-executor.started
		// 单 worker 被占住，后面的任务只能排队
		pool.AddTask(task("order-2"))
		pool.AddTask(task("order-3"))

		close(executor.release)
		pool.Stop()

		// 排队的任务要么被执行要么进了死信日志，队列里不能有残留
		assert.Zero(t, len(pool.TaskQueue))
		assert.Zero(t, len(pool.RetryQueue))
	})

	t.Run("AddTask after stop goes to dead letter without panic", func(t *testing.T) {
		pool := NewPayoutPool(&countingExecutor{}, 1, 10)
		pool.Start()
		pool.Stop()

		pool.AddTask(task("order-late"))

		assert.Zero(t, len(pool.TaskQueue))
	})

	t.Run("Stop is idempotent", func(t *testing.T) {
		pool := NewPayoutPool(&countingExecutor{}, 1, 10)
		pool.Start()
		pool.Stop()
		pool.Stop()
	})
}

func TestPayoutPoolPermanentFailure(t *testing.T) {
	executor := &countingExecutor{err: ErrPermanent}
	pool := NewPayoutPool(executor, 1, 10)
	pool.Start()
	defer pool.Stop()

	pool.AddTask(task("order-1"))

	// 永久失败不重试，只会执行一次
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&executor.calls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&executor.calls))
	assert.Zero(t, len(pool.RetryQueue))
}
