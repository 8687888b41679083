package public

import (
	"errors"
	"io"
	"net/http"
	"strings"

	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/i18n"
	"github.com/threadline/storefront/internal/payment/razorpay"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// webhookBodyLimit 网关事件体上限
const webhookBodyLimit = 1 << 20

// Webhook 网关事件回调
// 签名无效返回 401，其余情况一律 200，避免网关重复投递已记录的事件
func (h *Handler) Webhook(c *gin.Context) {
	requestID := handlershared.RequestID(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		requestLog(c).Warnw("payment_webhook_body_read_failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": false, "requestId": requestID})
		return
	}

	result, err := h.PaymentService.HandleWebhook(service.WebhookInput{
		Body:      body,
		Signature: strings.TrimSpace(c.GetHeader(razorpay.SignatureHeader)),
		RequestID: requestID,
	})
	if errors.Is(err, service.ErrWebhookSignatureInvalid) {
		handlershared.RespondStatus(c, http.StatusUnauthorized, "error.webhook_signature", nil)
		return
	}

	payload := gin.H{"received": true, "requestId": requestID}
	if result != nil {
		payload["event"] = result.Event
		payload["action"] = result.Action
		if result.OrderID != 0 {
			payload["orderId"] = result.OrderID
		}
	}
	if err != nil {
		requestLog(c).Errorw("payment_webhook_handle_failed", "error", err)
	}
	c.JSON(http.StatusOK, payload)
}

// VerifyPaymentRequest 人工核验请求
type VerifyPaymentRequest struct {
	OrderID   uint   `json:"orderId" binding:"required"`
	PaymentID string `json:"paymentId"`
}

// VerifyPayment 用户或管理员主动核验订单支付
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondStatus(c, http.StatusBadRequest, "error.bad_request", nil)
		return
	}

	input := service.VerifyPaymentInput{
		OrderID:       req.OrderID,
		PaymentIDHint: strings.TrimSpace(req.PaymentID),
		Locale:        i18n.ResolveLocale(c),
		RequestID:     handlershared.RequestID(c),
	}
	if adminID, ok := handlershared.LookupContextUint(c, handlershared.ContextAdminID); ok {
		input.IsAdmin = true
		input.UserID = adminID
	} else if userID, ok := handlershared.LookupContextUint(c, handlershared.ContextUserID); ok {
		input.UserID = userID
	} else {
		handlershared.RespondStatus(c, http.StatusUnauthorized, "error.unauthorized", nil)
		return
	}

	result, err := h.PaymentService.VerifyPayment(c.Request.Context(), input)
	if err != nil {
		respondVerifyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"order":       result.Order,
		"payment":     result.Payment,
		"alreadyPaid": result.AlreadyPaid,
		"applied":     result.Applied,
		"requestId":   input.RequestID,
	})
}

func respondVerifyError(c *gin.Context, err error) {
	var noCapture *service.NoCapturedPaymentError
	if errors.As(err, &noCapture) {
		handlershared.RespondStatus(c, http.StatusNotFound, "error.payment_not_captured", gin.H{
			"payments":       noCapture.Payments,
			"recommendation": noCapture.Recommendation,
		})
		return
	}
	if rule, ok := handlershared.MatchMappedError(err, verifyStatusRules); ok {
		handlershared.RespondStatus(c, rule.Code, rule.Key, nil)
		return
	}
	requestLog(c).Errorw("payment_verify_failed", "error", err)
	handlershared.RespondStatus(c, http.StatusInternalServerError, "error.internal", nil)
}
