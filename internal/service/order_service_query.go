package service

import (
	"time"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/queue"
	"github.com/threadline/storefront/internal/repository"
)

// ListByUser 用户订单列表
func (s *OrderService) ListByUser(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if filter.UserID == 0 {
		return nil, 0, ErrInvalidInput
	}
	return s.orderRepo.ListByUser(filter)
}

// GetByUser 获取用户自己的订单
func (s *OrderService) GetByUser(orderID, userID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListAdmin 后台订单列表
func (s *OrderService) ListAdmin(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	filter.Status = normalizeOrderStatus(filter.Status)
	return s.orderRepo.ListAdmin(filter)
}

// GetAdmin 后台订单详情
func (s *OrderService) GetAdmin(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListPaymentLogs 后台支付日志查询
func (s *OrderService) ListPaymentLogs(filter repository.PaymentLogListFilter) ([]models.PaymentLog, int64, error) {
	return s.paymentLogRepo.List(filter)
}

// CancelByUser 用户取消自己的待支付订单
func (s *OrderService) CancelByUser(orderID, userID uint, requestID string) (*models.Order, error) {
	order, err := s.GetByUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.OrderStatusPending || order.IsPaid() {
		return nil, ErrOrderNotCancellable
	}
	return s.cancelOrder(order, constants.CancelReasonCustomer, requestID)
}

// cancelOrder 通过 CAS 取消订单，只有本次取消成功才回补库存
func (s *OrderService) cancelOrder(order *models.Order, reason, requestID string) (*models.Order, error) {
	now := time.Now()
	var affected int64
	var err error
	if order.Status == constants.OrderStatusPending {
		affected, err = s.orderRepo.CancelPending(order.ID, reason, now)
	} else {
		affected, err = s.orderRepo.TransitionStatus(order.ID, order.Status, constants.OrderStatusCancelled, map[string]interface{}{
			"cancellation_reason": reason,
			"cancelled_at":        now,
		})
	}
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrOrderNotCancellable
	}
	outcome := s.releaser.release(order)
	logger.Infow("order_cancelled",
		"request_id", requestID,
		"order_id", order.ID,
		"reason", reason,
		"restored", outcome.Restored,
		"failed", outcome.Failed,
	)
	return s.orderRepo.GetByID(order.ID)
}

// UpdateStatusInput 后台更新订单状态输入
type UpdateStatusInput struct {
	OrderID   uint
	Status    string
	AdminID   uint
	RequestID string
}

// UpdateStatusAdmin 后台按流转表推进订单状态
// 在线支付订单只能由支付确认进入 confirmed；已支付订单取消需走退款
func (s *OrderService) UpdateStatusAdmin(input UpdateStatusInput) (*models.Order, error) {
	order, err := s.GetAdmin(input.OrderID)
	if err != nil {
		return nil, err
	}
	target := normalizeOrderStatus(input.Status)
	if !canTransition(order.Status, target) {
		return nil, ErrOrderStatusInvalid
	}

	switch target {
	case constants.OrderStatusConfirmed:
		if order.PaymentMethod != constants.PaymentMethodCOD {
			return nil, ErrOrderStatusInvalid
		}
	case constants.OrderStatusCancelled:
		if order.IsPaid() {
			return nil, ErrOrderNotCancellable
		}
		return s.cancelOrder(order, constants.CancelReasonAdmin, input.RequestID)
	}

	affected, err := s.orderRepo.TransitionStatus(order.ID, order.Status, target, nil)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrOrderStatusInvalid
	}
	logger.Infow("order_status_updated",
		"request_id", input.RequestID,
		"admin_id", input.AdminID,
		"order_id", order.ID,
		"from", order.Status,
		"to", target,
	)
	if order.Email != "" && (target == constants.OrderStatusShipped || target == constants.OrderStatusDelivered) {
		if err := s.queueClient.EnqueueOrderStatusEmail(queue.OrderStatusEmailPayload{OrderID: order.ID, Status: target}); err != nil {
			logger.Warnw("order_status_email_enqueue_failed", "order_id", order.ID, "error", err)
		}
	}
	return s.orderRepo.GetByID(order.ID)
}

// SendOrderStatusEmail 发送订单状态邮件（队列消费者调用）
func (s *OrderService) SendOrderStatusEmail(orderID uint, status, locale string) error {
	order, err := s.GetAdmin(orderID)
	if err != nil {
		return err
	}
	if s.emailService == nil {
		return ErrEmailServiceDisabled
	}
	return s.emailService.SendOrderStatusEmail(order.Email, OrderStatusEmailInput{
		OrderNo: order.OrderNo,
		Status:  status,
	}, locale)
}
