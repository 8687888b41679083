package public

import (
	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// EvaluateCouponRequest 优惠券试算请求
type EvaluateCouponRequest struct {
	Code  string             `json:"code"`
	Items []service.CartLine `json:"items" binding:"required"`
}

// EvaluateCoupon 按购物车试算优惠券
func (h *Handler) EvaluateCoupon(c *gin.Context) {
	var req EvaluateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	evaluation, err := h.OrderService.EvaluateCoupon(c.Request.Context(), req.Code, req.Items)
	if err != nil {
		respondCouponEvaluateError(c, err)
		return
	}
	response.Success(c, evaluation)
}

func respondCouponEvaluateError(c *gin.Context, err error) {
	if _, ok := handlershared.MatchMappedError(err, cartErrorRules); ok {
		respondCartError(c, err)
		return
	}
	respondCouponError(c, err)
}
