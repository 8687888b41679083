package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/config"
	"github.com/threadline/storefront/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 高优先级队列
	CriticalQueue = constants.QueueCritical

	sweepUniqueTTL       = 5 * time.Minute
	paymentEmailRetain   = 24 * time.Hour
	paymentEmailMaxRetry = 5
)

// Client asynq 客户端封装，未启用时所有入队操作为空操作
type Client struct {
	client *asynq.Client
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{client: asynq.NewClient(buildRedisOpt(cfg))}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// enqueue 入队；唯一性冲突（重复任务或任务 ID 冲突）返回 (false, nil)
func (c *Client) enqueue(task *asynq.Task, opts ...asynq.Option) (bool, error) {
	if _, err := c.client.Enqueue(task, opts...); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			return false, nil
		}
		return false, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return true, nil
}

// EnqueuePaymentConfirmationEmail 推送支付确认邮件任务，同一订单只发送一次
func (c *Client) EnqueuePaymentConfirmationEmail(payload PaymentConfirmationEmailPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewPaymentConfirmationEmailTask(payload)
	if err != nil {
		return err
	}
	_, err = c.enqueue(task,
		asynq.Queue(DefaultQueue),
		asynq.MaxRetry(paymentEmailMaxRetry),
		asynq.TaskID(paymentEmailTaskID(payload.OrderID)),
		asynq.Retention(paymentEmailRetain),
	)
	return err
}

// EnqueueOrderStatusEmail 推送订单状态邮件任务
func (c *Client) EnqueueOrderStatusEmail(payload OrderStatusEmailPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewOrderStatusEmailTask(payload)
	if err != nil {
		return err
	}
	_, err = c.enqueue(task, asynq.Queue(DefaultQueue))
	return err
}

// EnqueueAbandonedOrderSweep 推送清理任务，唯一窗口内已有同类任务时返回 (false, nil)
func (c *Client) EnqueueAbandonedOrderSweep(payload AbandonedOrderSweepPayload) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	task, err := NewAbandonedOrderSweepTask(payload)
	if err != nil {
		return false, err
	}
	return c.enqueue(task,
		asynq.Queue(CriticalQueue),
		asynq.Unique(sweepUniqueTTL),
		asynq.MaxRetry(1),
	)
}

// BuildServerConfig 生成 worker 端连接与并发配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{DefaultQueue: 1, CriticalQueue: 2},
	}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			serverCfg.Concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			serverCfg.Queues = cfg.Queues
		}
	}
	return buildRedisOpt(cfg), serverCfg
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = fmt.Sprintf("%s:%d", host, port)
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
