package scheduler

import (
	"context"
	"time"

	"crypto_market/pkg/logger"

	"go.uber.org/zap"
)

// Job 一次扫描任务，返回本轮应用的迁移条数
type Job func(ctx context.Context) (int, error)

// Scheduler 周期扫描器
// 超时迁移不能只靠页面访问触发，没人打开的过期订单也要被收敛
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	stop     chan struct{}
	done     chan struct{}
}

func New(name string, interval time.Duration, job Job) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go s.run()
	logger.Log.Info("Scheduler started",
		zap.String("name", s.name),
		zap.Duration("interval", s.interval),
	)
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	applied, err := s.job(ctx)
	if err != nil {
		logger.Log.Error("Scheduled scan failed",
			zap.String("name", s.name),
			zap.Error(err),
		)
		return
	}
	if applied > 0 {
		logger.Log.Info("Scheduled scan applied transitions",
			zap.String("name", s.name),
			zap.Int("applied", applied),
		)
	}
}

// Stop 停止调度并等待当前一轮跑完
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}
