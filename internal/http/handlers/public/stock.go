package public

import (
	"errors"
	"strings"

	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// GetProductStock 查询单个规格的可用库存
func (h *Handler) GetProductStock(c *gin.Context) {
	productID, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	size := strings.TrimSpace(c.Query("size"))
	color := strings.TrimSpace(c.Query("color"))

	available, _, err := h.StockService.Available(productID, size, color)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			respondError(c, response.CodeNotFound, "error.product_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"product_id": productID,
		"size":       size,
		"color":      color,
		"available":  available,
		"in_stock":   available > 0,
	})
}

// ValidateCartRequest 购物车库存校验请求
type ValidateCartRequest struct {
	Items []service.CartLine `json:"items" binding:"required"`
}

// ValidateCart 校验购物车库存，返回不足的行
func (h *Handler) ValidateCart(c *gin.Context) {
	var req ValidateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	issues, err := h.StockService.ValidateCartStock(req.Items)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}
