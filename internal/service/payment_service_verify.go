package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/i18n"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/payment/razorpay"
)

// VerifyPaymentInput 人工核验输入
type VerifyPaymentInput struct {
	OrderID       uint
	PaymentIDHint string
	UserID        uint
	IsAdmin       bool
	Locale        string
	RequestID     string
}

// VerifyPaymentResult 人工核验结果
type VerifyPaymentResult struct {
	Order       *models.Order          `json:"order"`
	Payment     *GatewayPaymentSummary `json:"payment,omitempty"`
	AlreadyPaid bool                   `json:"already_paid"`
	Applied     bool                   `json:"applied"`
}

// VerifyPayment 主动向网关拉取订单支付并对账
// 仅订单所有者或管理员可调用；已支付时直接返回，不再访问网关
func (s *PaymentService) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*VerifyPaymentResult, error) {
	if input.OrderID == 0 {
		return nil, ErrInvalidInput
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !input.IsAdmin && order.UserID != input.UserID {
		return nil, ErrOrderAccessDenied
	}
	if order.IsPaid() {
		return &VerifyPaymentResult{Order: order, AlreadyPaid: true}, nil
	}
	if strings.TrimSpace(order.RazorpayOrderID) == "" {
		return nil, ErrOrderGatewayRefMissing
	}
	if s.gateway == nil || !s.gateway.Enabled() {
		return nil, ErrPaymentGatewayUnavailable
	}

	log := paymentLogger("request_id", input.RequestID, "order_id", order.ID, "razorpay_order_id", order.RazorpayOrderID)
	if ctx == nil {
		ctx = context.Background()
	}
	pullCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	payments, err := s.gateway.FetchOrderPayments(pullCtx, order.RazorpayOrderID)
	if err != nil {
		log.Errorw("payment_verify_gateway_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayUnavailable, err)
	}

	summaries := make([]GatewayPaymentSummary, 0, len(payments))
	for _, payment := range payments {
		summaries = append(summaries, summarizePayment(payment))
	}
	captured := pickCapturedPayment(payments, input.PaymentIDHint)

	entry := &models.PaymentLog{
		EventType:       constants.PaymentEventManualVerify,
		RazorpayOrderID: order.RazorpayOrderID,
		Status:          "none",
		Currency:        order.Currency,
		Verified:        true,
		Source:          constants.PaymentLogSourceManual,
		RequestID:       input.RequestID,
		Payload:         marshalLogPayload(summaries),
	}
	if captured != nil {
		entry = buildGatewayPaymentLog(*captured, order)
		entry.EventType = constants.PaymentEventManualVerify
		entry.Verified = true
		entry.Source = constants.PaymentLogSourceManual
		entry.RequestID = input.RequestID
		entry.Payload = marshalLogPayload(summaries)
	} else {
		orderID := order.ID
		entry.OrderID = &orderID
	}
	if input.IsAdmin {
		entry.Message = "verified_by_admin"
	}
	if err := s.appendPaymentLog(entry); err != nil {
		return nil, err
	}

	if captured == nil {
		recommendation := i18n.T(input.Locale, verifyRecommendationKey(payments))
		log.Infow("payment_verify_no_capture", "payments", len(payments))
		return nil, &NoCapturedPaymentError{Payments: summaries, Recommendation: recommendation}
	}

	applied, err := s.applyCapture(order, *captured, input.RequestID)
	if err != nil {
		log.Errorw("payment_verify_capture_failed", "error", err)
		return nil, err
	}
	if applied {
		s.notifyPaymentConfirmed(order, input.Locale, input.RequestID)
	}

	refreshed, err := s.orderRepo.GetByID(order.ID)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		refreshed = order
	}
	summary := summarizePayment(*captured)
	return &VerifyPaymentResult{
		Order:       refreshed,
		Payment:     &summary,
		AlreadyPaid: !applied,
		Applied:     applied,
	}, nil
}

// pickCapturedPayment 选择第一笔已捕获支付，调用方提供的支付ID命中时优先
func pickCapturedPayment(payments []razorpay.Payment, hint string) *razorpay.Payment {
	hint = strings.TrimSpace(hint)
	var first *razorpay.Payment
	for i := range payments {
		if !payments[i].IsCaptured() {
			continue
		}
		if hint != "" && payments[i].ID == hint {
			return &payments[i]
		}
		if first == nil {
			first = &payments[i]
		}
	}
	return first
}

// verifyRecommendationKey 根据网关支付状态给出下一步建议
func verifyRecommendationKey(payments []razorpay.Payment) string {
	if len(payments) == 0 {
		return "verify.recommend.none"
	}
	hasFailed := false
	for _, payment := range payments {
		switch strings.ToLower(payment.Status) {
		case razorpay.PaymentStatusAuthorized:
			return "verify.recommend.authorized"
		case razorpay.PaymentStatusRefunded:
			return "verify.recommend.refunded"
		case razorpay.PaymentStatusFailed:
			hasFailed = true
		}
	}
	if hasFailed {
		return "verify.recommend.failed"
	}
	return "verify.recommend.pending"
}
