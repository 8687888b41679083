package worker

import (
	"context"
	"errors"
	"time"

	"github.com/threadline/storefront/internal/config"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/queue"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const workerShutdownTimeout = 10 * time.Second

// Service 异步任务消费服务
type Service struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewService 创建异步任务消费服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	serverCfg.Logger = asynqLogger{log: logger.S().With("component", "asynq")}
	serverCfg.ShutdownTimeout = workerShutdownTimeout
	serverCfg.ErrorHandler = asynq.ErrorHandlerFunc(logTaskError)

	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{server: asynq.NewServer(opt, serverCfg), mux: mux}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	return "worker"
}

// Start 启动消费并阻塞至 ctx 结束
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Stop 停止拉取新任务并等待进行中的任务完成
func (s *Service) Stop(_ context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.server.Shutdown()
	return nil
}

func logTaskError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)
	logger.Warnw("worker_task_failed",
		"task_type", task.Type(),
		"task_id", taskID,
		"retried", retried,
		"max_retry", maxRetry,
		"error", err,
	)
}

// asynqLogger 将 asynq 内部日志转到 zap
type asynqLogger struct {
	log *zap.SugaredLogger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(args...) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(args...) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(args...) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(args...) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(args...) }
