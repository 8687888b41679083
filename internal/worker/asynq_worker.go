package worker

import (
	"context"
	"errors"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/provider"
	"github.com/threadline/storefront/internal/queue"
	"github.com/threadline/storefront/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentConfirmationEmail, c.handlePaymentConfirmationEmail)
	mux.HandleFunc(queue.TaskAbandonedOrderSweep, c.handleAbandonedOrderSweep)
	mux.HandleFunc(queue.TaskOrderStatusEmail, c.handleOrderStatusEmail)
}

// skipEmailError 邮件未配置、收件人为空或被拒收时不重试
func skipEmailError(err error) bool {
	return errors.Is(err, service.ErrEmailServiceDisabled) ||
		errors.Is(err, service.ErrEmailServiceNotConfigured) ||
		errors.Is(err, service.ErrEmailRecipientEmpty) ||
		errors.Is(err, service.ErrEmailRecipientRejected) ||
		errors.Is(err, service.ErrOrderNotFound)
}

func (c *Consumer) handlePaymentConfirmationEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParsePaymentConfirmationEmailPayload(task)
	if err != nil {
		logger.Warnw("worker_payment_email_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_payment_email_skip_invalid_payload")
		return nil
	}
	if c.PaymentService == nil {
		logger.Warnw("worker_payment_email_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.PaymentService.SendPaymentConfirmationEmail(payload.OrderID, payload.Locale); err != nil {
		if skipEmailError(err) {
			logger.Debugw("worker_payment_email_skipped", "order_id", payload.OrderID, "reason", err.Error())
			return nil
		}
		logger.Warnw("worker_payment_email_send_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleAbandonedOrderSweep(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseAbandonedOrderSweepPayload(task)
	if err != nil {
		logger.Warnw("worker_sweep_unmarshal_failed", "error", err)
		return err
	}
	if c.PaymentService == nil {
		logger.Warnw("worker_sweep_skip_service_nil")
		return nil
	}
	trigger := payload.Trigger
	if trigger == "" {
		trigger = constants.SweepTriggerQueue
	}
	_, err = c.PaymentService.SweepAbandoned(service.SweepInput{
		AbandonedMinutes: payload.AbandonedMinutes,
		Trigger:          trigger,
	})
	if err != nil {
		logger.Warnw("worker_sweep_failed", "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleOrderStatusEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_status_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseOrderStatusEmailPayload(task)
	if err != nil {
		logger.Warnw("worker_order_status_email_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_status_email_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.OrderService == nil {
		logger.Warnw("worker_order_status_email_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.OrderService.SendOrderStatusEmail(payload.OrderID, payload.Status, payload.Locale); err != nil {
		if skipEmailError(err) {
			logger.Debugw("worker_order_status_email_skipped", "order_id", payload.OrderID, "reason", err.Error())
			return nil
		}
		logger.Warnw("worker_order_status_email_send_failed",
			"order_id", payload.OrderID,
			"status", payload.Status,
			"error", err,
		)
		return err
	}
	return nil
}
