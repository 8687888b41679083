package app

import (
	"errors"

	"github.com/threadline/storefront/internal/config"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/provider"
	"github.com/threadline/storefront/internal/router"
	"github.com/threadline/storefront/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	// 初始化 Worker 服务（队列关闭时任务在请求内同步处理）
	if mode == ModeAll || mode == ModeWorker {
		if cfg.Queue.Enabled && container.QueueClient.Enabled() {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else if mode == ModeWorker {
			return nil, errors.New("worker mode requires queue.enabled")
		}

		// 定时清理超时订单
		if cfg.Order.SweepEnabled {
			scheduler, err := worker.NewScheduler(cfg.Order.SweepSchedule, container.PaymentService, container.QueueClient)
			if err != nil {
				return nil, err
			}
			services = append(services, scheduler)
		} else {
			logger.Infow("scheduler_sweep_disabled")
		}
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
