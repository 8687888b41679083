package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/payment/razorpay"
	"github.com/threadline/storefront/internal/queue"
	"github.com/threadline/storefront/internal/repository"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultGatewayTimeout   = 10 * time.Second
	defaultAbandonedMinutes = 30
)

// PaymentGateway 支付网关能力，进程启动时构造一次并注入
type PaymentGateway interface {
	Enabled() bool
	KeyID() string
	CreateOrder(ctx context.Context, input razorpay.CreateOrderInput) (*razorpay.Order, error)
	FetchOrderPayments(ctx context.Context, gatewayOrderID string) ([]razorpay.Payment, error)
	VerifyWebhookSignature(body []byte, signature string) error
}

// GatewayPaymentSummary 网关侧支付摘要
type GatewayPaymentSummary struct {
	ID               string       `json:"id"`
	Status           string       `json:"status"`
	Method           string       `json:"method,omitempty"`
	Amount           models.Money `json:"amount"`
	Currency         string       `json:"currency"`
	ErrorCode        string       `json:"error_code,omitempty"`
	ErrorDescription string       `json:"error_description,omitempty"`
	CreatedAt        int64        `json:"created_at"`
}

func summarizePayment(payment razorpay.Payment) GatewayPaymentSummary {
	return GatewayPaymentSummary{
		ID:               payment.ID,
		Status:           payment.Status,
		Method:           payment.Method,
		Amount:           models.NewMoneyFromDecimal(razorpay.FromMinorUnits(payment.Amount, payment.Currency)),
		Currency:         payment.Currency,
		ErrorCode:        payment.ErrorCode,
		ErrorDescription: payment.ErrorDescription,
		CreatedAt:        payment.CreatedAt,
	}
}

// PaymentServiceOptions 支付服务依赖
type PaymentServiceOptions struct {
	OrderRepo        repository.OrderRepository
	PaymentLogRepo   repository.PaymentLogRepository
	CouponRepo       repository.CouponRepository
	CouponUsageRepo  repository.CouponUsageRepository
	StockService     *StockService
	Gateway          PaymentGateway
	QueueClient      *queue.Client
	EmailService     *EmailService
	AbandonedMinutes int
	GatewayTimeout   time.Duration
}

// PaymentService 支付对账服务（webhook / 人工核验 / 超时清理）
type PaymentService struct {
	orderRepo        repository.OrderRepository
	paymentLogRepo   repository.PaymentLogRepository
	gateway          PaymentGateway
	queueClient      *queue.Client
	emailService     *EmailService
	releaser         *orderReleaser
	abandonedMinutes int
	gatewayTimeout   time.Duration
	now              func() time.Time
}

// NewPaymentService 创建支付服务
func NewPaymentService(opts PaymentServiceOptions) *PaymentService {
	abandonedMinutes := opts.AbandonedMinutes
	if abandonedMinutes <= 0 {
		abandonedMinutes = defaultAbandonedMinutes
	}
	gatewayTimeout := opts.GatewayTimeout
	if gatewayTimeout <= 0 {
		gatewayTimeout = defaultGatewayTimeout
	}
	return &PaymentService{
		orderRepo:      opts.OrderRepo,
		paymentLogRepo: opts.PaymentLogRepo,
		gateway:        opts.Gateway,
		queueClient:    opts.QueueClient,
		emailService:   opts.EmailService,
		releaser: &orderReleaser{
			stock:           opts.StockService,
			couponRepo:      opts.CouponRepo,
			couponUsageRepo: opts.CouponUsageRepo,
		},
		abandonedMinutes: abandonedMinutes,
		gatewayTimeout:   gatewayTimeout,
		now:              time.Now,
	}
}

// DefaultAbandonedMinutes 返回配置的超时阈值
func (s *PaymentService) DefaultAbandonedMinutes() int {
	return s.abandonedMinutes
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// appendPaymentLog 追加审计日志，必须先于任何订单状态变更
func (s *PaymentService) appendPaymentLog(entry *models.PaymentLog) error {
	if entry.EventType == "" {
		entry.EventType = constants.PaymentEventUnknown
	}
	if err := s.paymentLogRepo.Create(entry); err != nil {
		paymentLogger("request_id", entry.RequestID).Errorw("payment_log_append_failed",
			"event_type", entry.EventType,
			"payment_id", entry.PaymentID,
			"razorpay_order_id", entry.RazorpayOrderID,
			"error", err,
		)
		return err
	}
	return nil
}

func buildGatewayPaymentLog(payment razorpay.Payment, order *models.Order) *models.PaymentLog {
	entry := &models.PaymentLog{
		PaymentID:       payment.ID,
		RazorpayOrderID: payment.OrderID,
		Status:          payment.Status,
		Currency:        payment.Currency,
	}
	if payment.Amount > 0 {
		entry.Amount = models.NewMoneyFromDecimal(razorpay.FromMinorUnits(payment.Amount, payment.Currency))
	}
	if order != nil {
		orderID := order.ID
		entry.OrderID = &orderID
		if entry.RazorpayOrderID == "" {
			entry.RazorpayOrderID = order.RazorpayOrderID
		}
	}
	return entry
}

func marshalLogPayload(value interface{}) datatypes.JSON {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// applyCapture 把已捕获的网关支付应用到订单
// 通过 payment_status 的 CAS 保证只有一条路径完成转换，返回本次是否完成
func (s *PaymentService) applyCapture(order *models.Order, payment razorpay.Payment, requestID string) (bool, error) {
	log := paymentLogger("request_id", requestID, "order_id", order.ID, "payment_id", payment.ID)
	if order.IsPaid() {
		if order.PaymentID != nil && *order.PaymentID != payment.ID {
			log.Warnw("payment_capture_duplicate_payment",
				"recorded_payment_id", *order.PaymentID,
			)
		}
		return false, nil
	}

	captured := razorpay.FromMinorUnits(payment.Amount, payment.Currency)
	if payment.Amount > 0 && !captured.Equal(order.TotalAmount.Decimal) {
		log.Warnw("payment_capture_amount_mismatch",
			"order_total", order.TotalAmount.String(),
			"captured_amount", captured.StringFixed(2),
		)
	}

	affected, err := s.orderRepo.MarkPaid(order.ID, payment.ID, s.now())
	if err != nil {
		return false, err
	}
	if affected == 0 {
		log.Infow("payment_capture_already_applied")
		return false, nil
	}
	if order.Status == constants.OrderStatusCancelled {
		log.Warnw("payment_captured_after_cancel",
			"order_no", order.OrderNo,
			"cancellation_reason", order.CancellationReason,
		)
	}
	log.Infow("payment_capture_applied", "order_no", order.OrderNo)
	return true, nil
}

// notifyPaymentConfirmed 尽力发送支付确认邮件，失败只记录日志
func (s *PaymentService) notifyPaymentConfirmed(order *models.Order, locale, requestID string) {
	if order == nil {
		return
	}
	log := paymentLogger("request_id", requestID, "order_id", order.ID)
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueuePaymentConfirmationEmail(queue.PaymentConfirmationEmailPayload{
			OrderID: order.ID,
			Locale:  locale,
		})
		if err != nil {
			log.Warnw("payment_confirmation_email_enqueue_failed", "error", err)
		}
		return
	}
	if err := s.sendPaymentConfirmation(order, locale); err != nil {
		if errors.Is(err, ErrEmailServiceDisabled) || errors.Is(err, ErrEmailRecipientEmpty) {
			log.Debugw("payment_confirmation_email_skipped", "reason", err.Error())
			return
		}
		log.Warnw("payment_confirmation_email_failed", "error", err)
	}
}

// SendPaymentConfirmationEmail 发送支付确认邮件（队列消费者调用）
func (s *PaymentService) SendPaymentConfirmationEmail(orderID uint, locale string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	return s.sendPaymentConfirmation(order, locale)
}

func (s *PaymentService) sendPaymentConfirmation(order *models.Order, locale string) error {
	if s.emailService == nil {
		return ErrEmailServiceDisabled
	}
	if strings.TrimSpace(order.Email) == "" {
		return ErrEmailRecipientEmpty
	}
	return s.emailService.SendPaymentConfirmation(order.Email, PaymentConfirmationEmailInput{
		OrderNo:  order.OrderNo,
		Amount:   order.TotalAmount,
		Currency: order.Currency,
	}, locale)
}
