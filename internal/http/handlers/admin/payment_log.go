package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListPaymentLogs 支付日志列表，用于对账排查
func (h *Handler) ListPaymentLogs(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.PaymentLogListFilter{
		Page:            page,
		PageSize:        pageSize,
		PaymentID:       strings.TrimSpace(c.Query("payment_id")),
		RazorpayOrderID: strings.TrimSpace(c.Query("razorpay_order_id")),
		EventType:       strings.TrimSpace(c.Query("event_type")),
		Source:          strings.TrimSpace(c.Query("source")),
	}
	if raw := strings.TrimSpace(c.Query("order_id")); raw != "" {
		orderID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
		filter.OrderID = uint(orderID)
	}
	if raw := strings.TrimSpace(c.Query("verified")); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
		filter.Verified = &verified
	}
	var err error
	if filter.CreatedFrom, err = parseTimeQuery(c, "created_from"); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if filter.CreatedTo, err = parseTimeQuery(c, "created_to"); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	logs, total, err := h.OrderService.ListPaymentLogs(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, logs, handlershared.BuildPagination(page, pageSize, total))
}
