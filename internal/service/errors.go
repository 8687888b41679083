package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrUserDisabled       = errors.New("user disabled")

	ErrProductNotFound     = errors.New("product not found")
	ErrProductNotAvailable = errors.New("product not available")
	ErrCartEmpty           = errors.New("cart is empty")
	ErrCartItemInvalid     = errors.New("invalid cart item")
	ErrInsufficientStock   = errors.New("insufficient stock")

	ErrCouponCodeRequired  = errors.New("coupon code required")
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrCouponExpired       = errors.New("coupon expired")
	ErrCouponNotStarted    = fmt.Errorf("%w: not started", ErrCouponExpired)
	ErrCouponInactive      = errors.New("coupon inactive")
	ErrCouponMinAmount     = errors.New("coupon minimum purchase not met")
	ErrCouponNoRuleMatched = errors.New("no coupon rule matched")
	ErrCouponInvalid       = errors.New("invalid coupon configuration")
	ErrCouponCodeExists    = errors.New("coupon code already exists")

	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderAccessDenied      = errors.New("order access denied")
	ErrOrderGatewayRefMissing = errors.New("order has no gateway order id")
	ErrOrderStatusInvalid     = errors.New("order status transition not allowed")
	ErrOrderNotCancellable    = errors.New("order cannot be cancelled")
	ErrOrderAddressInvalid    = errors.New("shipping address incomplete")
	ErrPaymentMethodInvalid   = errors.New("unsupported payment method")

	ErrPaymentGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrWebhookSignatureInvalid   = errors.New("webhook signature invalid")
	ErrWebhookPayloadInvalid     = errors.New("webhook payload invalid")
	ErrNoCapturedPayment         = errors.New("no captured payment")

	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	ErrEmailRecipientEmpty       = errors.New("email recipient empty")
	ErrEmailRecipientRejected    = errors.New("email recipient rejected")
	ErrInvalidEmail              = errors.New("invalid email")
	ErrQueueUnavailable          = errors.New("queue unavailable")
)

// StockShortageError 携带库存不足明细
type StockShortageError struct {
	Shortages []StockShortage
}

func (e *StockShortageError) Error() string {
	if e == nil || len(e.Shortages) == 0 {
		return ErrInsufficientStock.Error()
	}
	first := e.Shortages[0]
	return fmt.Sprintf("%s: product %d requested %d available %d",
		ErrInsufficientStock.Error(), first.ProductID, first.Requested, first.Available)
}

// Unwrap 使 errors.Is(err, ErrInsufficientStock) 成立
func (e *StockShortageError) Unwrap() error {
	return ErrInsufficientStock
}

// NoCapturedPaymentError 人工核验未找到已捕获支付时的诊断信息
type NoCapturedPaymentError struct {
	Payments       []GatewayPaymentSummary
	Recommendation string
}

func (e *NoCapturedPaymentError) Error() string {
	return fmt.Sprintf("%s (%d payments found)", ErrNoCapturedPayment.Error(), len(e.Payments))
}

// Unwrap 使 errors.Is(err, ErrNoCapturedPayment) 成立
func (e *NoCapturedPaymentError) Unwrap() error {
	return ErrNoCapturedPayment
}
