package public

import (
	"strings"

	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	Items           []service.CartLine     `json:"items"`
	CouponCode      string                 `json:"coupon_code"`
	PaymentMethod   string                 `json:"payment_method" binding:"required"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
	Email           string                 `json:"email"`
}

// CreateOrder 下单，items 为空时使用服务端购物车
func (h *Handler) CreateOrder(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = c.GetString(handlershared.ContextUserEmail)
	}

	result, err := h.OrderService.Checkout(c.Request.Context(), service.CheckoutInput{
		UserID:          userID,
		Email:           email,
		Lines:           req.Items,
		CouponCode:      req.CouponCode,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		RequestID:       handlershared.RequestID(c),
	})
	if err != nil {
		requestLog(c).Warnw("order_checkout_rejected", "user_id", userID, "error", err)
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

// ListOrders 当前用户订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	orders, total, err := h.OrderService.ListByUser(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   userID,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, orders, handlershared.BuildPagination(page, pageSize, total))
}

// GetOrder 当前用户订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.GetByUser(orderID, userID)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// CancelOrder 用户取消未支付订单
func (h *Handler) CancelOrder(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.CancelByUser(orderID, userID, handlershared.RequestID(c))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}
