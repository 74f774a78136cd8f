package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"crypto_market/pkg/logger"
	"crypto_market/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayoutTask 一笔待执行的打款
type PayoutTask struct {
	OrderID  string
	Address  string
	Amount   decimal.Decimal
	Currency string
	Memo     string
	Retry    int // 重试次数
}

// ErrPermanent 表示这笔打款重试也不会成功（如网关明确拒绝），直接进死信
var ErrPermanent = errors.New("permanent payout failure")

// errStopped 停机时还没执行的任务带着它进死信日志
var errStopped = errors.New("payout pool stopped")

// PayoutExecutor 执行打款并回写结果
// 由 order 模块实现：调网关 CreatePayout，成功后把 payout id 写回订单
type PayoutExecutor interface {
	Execute(ctx context.Context, task PayoutTask) error
}

// PayoutPool 打款任务池
// 打款是订单完结的副作用，失败不能丢：先重试，超限后进死信日志等人工处理
type PayoutPool struct {
	TaskQueue  chan PayoutTask
	RetryQueue chan PayoutTask // 重试队列
	Executor   PayoutExecutor
	WorkerNum  int
	MaxRetry   int // 最大重试次数

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPayoutPool(executor PayoutExecutor, workerNum, bufferSize int) *PayoutPool {
	return &PayoutPool{
		TaskQueue:  make(chan PayoutTask, bufferSize),
		RetryQueue: make(chan PayoutTask, bufferSize/2),
		Executor:   executor,
		WorkerNum:  workerNum,
		MaxRetry:   3, // 最多重试3次
		stop:       make(chan struct{}),
	}
}

func (p *PayoutPool) Start() {
	p.wg.Add(p.WorkerNum + 1)
	for i := 0; i < p.WorkerNum; i++ {
		go p.worker(i)
	}
	// 启动重试处理协程
	go p.retryWorker()
	logger.Log.Info("Payout pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 停止任务池并等待在途打款执行完，还在排队的任务落进死信日志
func (p *PayoutPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()
		logger.Log.Info("Payout pool stopped")
	})
}

func (p *PayoutPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.drain()
			return
		case task := <-p.TaskQueue:
			p.process(id, task)
		}
	}
}

func (p *PayoutPool) process(id int, task PayoutTask) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err := p.Executor.Execute(ctx, task)
	cancel()

	if err == nil {
		metrics.PayoutTotal.WithLabelValues("ok").Inc()
		return
	}

	logger.Log.Error("Payout task failed",
		zap.Int("worker", id),
		zap.String("order_id", task.OrderID),
		zap.Int("attempt", task.Retry),
		zap.Error(err),
	)

	// 如果未达到最大重试次数，加入重试队列
	if errors.Is(err, ErrPermanent) {
		p.logFailedTask(task, err)
		return
	}
	if task.Retry < p.MaxRetry {
		task.Retry++
		select {
		case p.RetryQueue <- task:
			metrics.PayoutTotal.WithLabelValues("retried").Inc()
		default:
			logger.Log.Error("Payout retry queue full, task dropped", zap.String("order_id", task.OrderID))
			p.logFailedTask(task, err)
		}
	} else {
		p.logFailedTask(task, err)
	}
}

func (p *PayoutPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.drain()
			return
		case task := <-p.RetryQueue:
			// 延迟重试，避免立即重试；停机时不再等待
			select {
			case <-p.stop:
				p.logFailedTask(task, errStopped)
				continue
			case <-time.After(time.Duration(task.Retry) * time.Second):
			}

			// 重新加入主队列
			select {
			case p.TaskQueue <- task:
			default:
				logger.Log.Error("Payout main queue full, task dropped", zap.String("order_id", task.OrderID))
				p.logFailedTask(task, nil)
			}
		}
	}
}

// drain 停机路径：把两个队列里剩余的任务全部落进死信日志，不能无声丢失
func (p *PayoutPool) drain() {
	for {
		select {
		case task := <-p.TaskQueue:
			p.logFailedTask(task, errStopped)
		case task := <-p.RetryQueue:
			p.logFailedTask(task, errStopped)
		default:
			return
		}
	}
}

// logFailedTask 死信记录：打款涉及真金白银，必须能被告警系统捞出来人工补发
func (p *PayoutPool) logFailedTask(task PayoutTask, err error) {
	metrics.PayoutTotal.WithLabelValues("dead").Inc()
	logger.Log.Error("Payout task failed permanently",
		zap.String("order_id", task.OrderID),
		zap.String("address", task.Address),
		zap.String("amount", task.Amount.String()),
		zap.String("currency", task.Currency),
		zap.Error(err),
	)
}

func (p *PayoutPool) AddTask(task PayoutTask) {
	select {
	case <-p.stop:
		// 已停机，直接进死信
		p.logFailedTask(task, errStopped)
		return
	default:
	}

	select {
	case p.TaskQueue <- task:
		// 任务入队成功
	default:
		logger.Log.Error("Payout pool queue full, dropping task", zap.String("order_id", task.OrderID))
		p.logFailedTask(task, nil)
	}
}
