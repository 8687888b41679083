package worker

import (
	"context"
	"errors"
	"strings"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/queue"
	"github.com/threadline/storefront/internal/service"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const defaultSweepSchedule = "*/10 * * * *"

// sweepRunner 超时清理能力
type sweepRunner interface {
	SweepAbandoned(input service.SweepInput) (*service.SweepResult, error)
	DefaultAbandonedMinutes() int
}

// sweepEnqueuer 清理任务入队能力
type sweepEnqueuer interface {
	Enabled() bool
	EnqueueAbandonedOrderSweep(payload queue.AbandonedOrderSweepPayload) (bool, error)
}

// Scheduler 定时触发超时订单清理
// 队列可用时推送唯一任务，由 worker 执行；否则在进程内直接执行
type Scheduler struct {
	name     string
	cron     *cron.Cron
	schedule string
	sweeper  sweepRunner
	enqueuer sweepEnqueuer
}

// NewScheduler 创建定时调度服务
func NewScheduler(schedule string, sweeper sweepRunner, enqueuer sweepEnqueuer) (*Scheduler, error) {
	if sweeper == nil {
		return nil, errors.New("sweeper is nil")
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = defaultSweepSchedule
	}
	s := &Scheduler{
		name:     "scheduler",
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule: schedule,
		sweeper:  sweeper,
		enqueuer: enqueuer,
	}
	if _, err := s.cron.AddFunc(schedule, s.triggerSweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Name 服务名称
func (s *Scheduler) Name() string {
	return s.name
}

// Start 启动调度并阻塞到 ctx 结束
func (s *Scheduler) Start(ctx context.Context) error {
	logger.Infow("scheduler_started", "sweep_schedule", s.schedule)
	s.cron.Start()
	<-ctx.Done()
	return nil
}

// Stop 停止调度，等待进行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) triggerSweep() {
	minutes := s.sweeper.DefaultAbandonedMinutes()
	if s.enqueuer != nil && s.enqueuer.Enabled() {
		queued, err := s.enqueuer.EnqueueAbandonedOrderSweep(queue.AbandonedOrderSweepPayload{
			AbandonedMinutes: minutes,
			Trigger:          constants.SweepTriggerCron,
		})
		if err == nil {
			logger.Debugw("scheduler_sweep_enqueued", "queued", queued)
			return
		}
		logger.Warnw("scheduler_sweep_enqueue_failed", "error", err, "fallback", "inline")
	}
	if _, err := s.sweeper.SweepAbandoned(service.SweepInput{
		AbandonedMinutes: minutes,
		Trigger:          constants.SweepTriggerCron,
		RequestID:        uuid.NewString(),
	}); err != nil {
		logger.Warnw("scheduler_sweep_failed", "error", err)
	}
}
