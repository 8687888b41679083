package queue

import (
	"encoding/json"
	"fmt"

	"github.com/threadline/storefront/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentConfirmationEmail 支付确认邮件任务
	TaskPaymentConfirmationEmail = constants.TaskPaymentConfirmationEmail
	// TaskAbandonedOrderSweep 超时未支付订单清理任务
	TaskAbandonedOrderSweep = constants.TaskAbandonedOrderSweep
	// TaskOrderStatusEmail 订单状态邮件任务
	TaskOrderStatusEmail = constants.TaskOrderStatusEmail
)

// PaymentConfirmationEmailPayload 支付确认邮件载荷
type PaymentConfirmationEmailPayload struct {
	OrderID uint   `json:"order_id"`
	Locale  string `json:"locale,omitempty"`
}

// AbandonedOrderSweepPayload 清理任务载荷，AbandonedMinutes 为 0 时使用服务端默认值
type AbandonedOrderSweepPayload struct {
	AbandonedMinutes int    `json:"abandoned_minutes"`
	Trigger          string `json:"trigger,omitempty"`
}

// OrderStatusEmailPayload 订单状态邮件载荷
type OrderStatusEmailPayload struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
	Locale  string `json:"locale,omitempty"`
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, body), nil
}

func parsePayload[T any](task *asynq.Task) (T, error) {
	var payload T
	if task == nil {
		return payload, fmt.Errorf("nil task")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}
	return payload, nil
}

// NewPaymentConfirmationEmailTask 创建支付确认邮件任务
func NewPaymentConfirmationEmailTask(payload PaymentConfirmationEmailPayload) (*asynq.Task, error) {
	return newTask(TaskPaymentConfirmationEmail, payload)
}

// NewAbandonedOrderSweepTask 创建清理任务
func NewAbandonedOrderSweepTask(payload AbandonedOrderSweepPayload) (*asynq.Task, error) {
	return newTask(TaskAbandonedOrderSweep, payload)
}

// NewOrderStatusEmailTask 创建订单状态邮件任务
func NewOrderStatusEmailTask(payload OrderStatusEmailPayload) (*asynq.Task, error) {
	return newTask(TaskOrderStatusEmail, payload)
}

// ParsePaymentConfirmationEmailPayload 解析支付确认邮件载荷
func ParsePaymentConfirmationEmailPayload(task *asynq.Task) (PaymentConfirmationEmailPayload, error) {
	return parsePayload[PaymentConfirmationEmailPayload](task)
}

// ParseAbandonedOrderSweepPayload 解析清理任务载荷
func ParseAbandonedOrderSweepPayload(task *asynq.Task) (AbandonedOrderSweepPayload, error) {
	return parsePayload[AbandonedOrderSweepPayload](task)
}

// ParseOrderStatusEmailPayload 解析订单状态邮件载荷
func ParseOrderStatusEmailPayload(task *asynq.Task) (OrderStatusEmailPayload, error) {
	return parsePayload[OrderStatusEmailPayload](task)
}

// paymentEmailTaskID 同一订单的支付确认邮件只入队一次（webhook 与手动核验可能同时确认）
func paymentEmailTaskID(orderID uint) string {
	return fmt.Sprintf("payment-email:%d", orderID)
}
