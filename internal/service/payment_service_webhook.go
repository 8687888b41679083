package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/payment/razorpay"

	"gorm.io/datatypes"
)

// webhook 处理结果动作
const (
	WebhookActionCaptured      = "captured"
	WebhookActionAlreadyPaid   = "already_paid"
	WebhookActionMarkedFailed  = "marked_failed"
	WebhookActionRefunded      = "refunded"
	WebhookActionNoop          = "noop"
	WebhookActionOrderNotFound = "order_not_found"
	WebhookActionIgnored       = "ignored"
)

// WebhookInput 网关 webhook 输入（原始请求体）
type WebhookInput struct {
	Body      []byte
	Signature string
	RequestID string
}

// WebhookResult webhook 处理结果
type WebhookResult struct {
	Event   string `json:"event"`
	OrderID uint   `json:"order_id,omitempty"`
	Action  string `json:"action"`
}

// HandleWebhook 处理网关 webhook
// 每个事件（无论签名是否有效）都先写入支付日志，签名无效时不触碰订单
func (s *PaymentService) HandleWebhook(input WebhookInput) (*WebhookResult, error) {
	log := paymentLogger("request_id", input.RequestID)
	if s.gateway == nil {
		return nil, ErrPaymentGatewayUnavailable
	}

	if err := s.gateway.VerifyWebhookSignature(input.Body, input.Signature); err != nil {
		eventName := razorpay.PeekEventName(input.Body)
		entry := &models.PaymentLog{
			EventType: eventName,
			Verified:  false,
			Source:    constants.PaymentLogSourceWebhook,
			RequestID: input.RequestID,
			Message:   "signature_invalid",
			Payload:   rawPayload(input.Body),
		}
		if event, parseErr := razorpay.ParseWebhookEvent(input.Body); parseErr == nil {
			entry.PaymentID = event.Payment.ID
			entry.RazorpayOrderID = event.Payment.OrderID
			entry.Status = event.Payment.Status
		}
		_ = s.appendPaymentLog(entry)
		log.Warnw("payment_webhook_signature_invalid", "event", eventName, "error", err)
		return &WebhookResult{Event: eventName, Action: WebhookActionIgnored}, fmt.Errorf("%w: %v", ErrWebhookSignatureInvalid, err)
	}

	event, err := razorpay.ParseWebhookEvent(input.Body)
	if err != nil {
		eventName := razorpay.PeekEventName(input.Body)
		message := "payload_invalid"
		if errors.Is(err, razorpay.ErrUnsupportedEvent) {
			message = "event_unsupported"
		}
		_ = s.appendPaymentLog(&models.PaymentLog{
			EventType: eventName,
			Verified:  true,
			Source:    constants.PaymentLogSourceWebhook,
			RequestID: input.RequestID,
			Message:   message,
			Payload:   rawPayload(input.Body),
		})
		result := &WebhookResult{Event: eventName, Action: WebhookActionIgnored}
		if errors.Is(err, razorpay.ErrUnsupportedEvent) {
			log.Infow("payment_webhook_event_ignored", "event", eventName)
			return result, nil
		}
		log.Warnw("payment_webhook_payload_invalid", "event", eventName, "error", err)
		return result, fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, err)
	}

	log = log.With("event", event.Event, "payment_id", event.Payment.ID, "razorpay_order_id", event.Payment.OrderID)
	log.Infow("payment_webhook_received")

	order, strategy, lookupErr := s.resolveOrder(event.Payment)
	if lookupErr != nil {
		order = nil
	}

	entry := buildGatewayPaymentLog(event.Payment, order)
	entry.EventType = event.Event
	entry.Verified = true
	entry.Source = constants.PaymentLogSourceWebhook
	entry.RequestID = input.RequestID
	entry.Payload = rawPayload(input.Body)
	switch {
	case lookupErr != nil:
		entry.Message = "lookup_failed"
	case strategy != "":
		entry.Message = "resolved_by_" + strategy
	}
	if lookupErr != nil {
		_ = s.appendPaymentLog(entry)
		log.Errorw("payment_webhook_order_lookup_failed", "lookup", strategy, "error", lookupErr)
		return &WebhookResult{Event: event.Event, Action: WebhookActionNoop}, lookupErr
	}
	if err := s.appendPaymentLog(entry); err != nil {
		return &WebhookResult{Event: event.Event, Action: WebhookActionNoop}, err
	}

	if order == nil {
		log.Warnw("payment_webhook_order_not_found")
		return &WebhookResult{Event: event.Event, Action: WebhookActionOrderNotFound}, nil
	}
	result := &WebhookResult{Event: event.Event, OrderID: order.ID}
	log = log.With("order_id", order.ID, "lookup", strategy)

	switch event.Kind {
	case razorpay.EventPaymentCaptured:
		applied, err := s.applyCapture(order, event.Payment, input.RequestID)
		if err != nil {
			log.Errorw("payment_webhook_capture_failed", "error", err)
			return result, err
		}
		if !applied {
			result.Action = WebhookActionAlreadyPaid
			return result, nil
		}
		result.Action = WebhookActionCaptured
		s.notifyPaymentConfirmed(order, "", input.RequestID)
	case razorpay.EventPaymentFailed:
		affected, err := s.orderRepo.MarkPaymentFailed(order.ID)
		if err != nil {
			log.Errorw("payment_webhook_mark_failed_error", "error", err)
			return result, err
		}
		result.Action = WebhookActionNoop
		if affected > 0 {
			result.Action = WebhookActionMarkedFailed
			log.Infow("payment_webhook_marked_failed",
				"error_code", event.Payment.ErrorCode,
				"error_description", event.Payment.ErrorDescription,
			)
		}
	case razorpay.EventPaymentRefunded:
		affected, err := s.orderRepo.MarkRefunded(order.ID)
		if err != nil {
			log.Errorw("payment_webhook_refund_failed", "error", err)
			return result, err
		}
		result.Action = WebhookActionNoop
		if affected > 0 {
			result.Action = WebhookActionRefunded
			log.Infow("payment_webhook_refunded")
		}
	}
	return result, nil
}

func rawPayload(body []byte) datatypes.JSON {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	return datatypes.JSON(trimmed)
}

// orderLookupStrategy 订单定位策略，按顺序尝试，返回 nil 表示本策略未命中
type orderLookupStrategy struct {
	name string
	find func(payment razorpay.Payment) (*models.Order, error)
}

func (s *PaymentService) orderLookupStrategies() []orderLookupStrategy {
	return []orderLookupStrategy{
		{name: "notes", find: s.findOrderByNotes},
		{name: "gateway_ids", find: s.findOrderByGatewayIDs},
		{name: "payment_logs", find: s.findOrderByPaymentLogs},
	}
}

// resolveOrder 依次执行定位策略，返回命中的订单与策略名
func (s *PaymentService) resolveOrder(payment razorpay.Payment) (*models.Order, string, error) {
	for _, strategy := range s.orderLookupStrategies() {
		order, err := strategy.find(payment)
		if err != nil {
			return nil, strategy.name, err
		}
		if order != nil {
			return order, strategy.name, nil
		}
	}
	return nil, "", nil
}

func (s *PaymentService) findOrderByNotes(payment razorpay.Payment) (*models.Order, error) {
	var order *models.Order
	var err error
	if raw := payment.Notes.Get("order_id"); raw != "" {
		id, parseErr := strconv.ParseUint(raw, 10, 64)
		if parseErr == nil && id > 0 {
			order, err = s.orderRepo.GetByID(uint(id))
		}
	}
	if err == nil && order == nil {
		if orderNo := payment.Notes.Get("order_no"); orderNo != "" {
			order, err = s.orderRepo.GetByOrderNo(orderNo)
		}
	}
	if err != nil || order == nil {
		return nil, err
	}
	// notes 可被篡改时以网关订单号为准
	if payment.OrderID != "" && order.RazorpayOrderID != "" && order.RazorpayOrderID != payment.OrderID {
		paymentLogger("order_id", order.ID, "payment_id", payment.ID).Warnw("payment_notes_order_mismatch",
			"order_razorpay_order_id", order.RazorpayOrderID,
			"payment_razorpay_order_id", payment.OrderID,
		)
		return nil, nil
	}
	return order, nil
}

func (s *PaymentService) findOrderByGatewayIDs(payment razorpay.Payment) (*models.Order, error) {
	if payment.ID != "" {
		order, err := s.orderRepo.GetByPaymentID(payment.ID)
		if err != nil || order != nil {
			return order, err
		}
	}
	if payment.OrderID != "" {
		return s.orderRepo.GetByRazorpayOrderID(payment.OrderID)
	}
	return nil, nil
}

func (s *PaymentService) findOrderByPaymentLogs(payment razorpay.Payment) (*models.Order, error) {
	orderID, err := s.paymentLogRepo.FindLatestOrderID(payment.ID, payment.OrderID)
	if err != nil || orderID == 0 {
		return nil, err
	}
	return s.orderRepo.GetByID(orderID)
}
