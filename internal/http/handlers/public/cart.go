package public

import (
	"strings"

	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/i18n"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// GetCart 获取购物车（附库存问题）
func (h *Handler) GetCart(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	view, err := h.CartService.Get(userID)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, view)
}

// UpsertCartItemRequest 购物车更新请求
type UpsertCartItemRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity" binding:"required"`
	Increment bool   `json:"increment"`
}

// UpsertCartItem 添加或更新购物车项
func (h *Handler) UpsertCartItem(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req UpsertCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	view, err := h.CartService.Upsert(service.UpsertCartItemInput{
		UserID:    userID,
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
		Quantity:  req.Quantity,
		Increment: req.Increment,
	})
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, view)
}

// RemoveCartItemRequest 删除购物车项请求
type RemoveCartItemRequest struct {
	ProductID uint   `json:"product_id" form:"product_id" binding:"required"`
	Size      string `json:"size" form:"size"`
	Color     string `json:"color" form:"color"`
}

// RemoveCartItem 删除购物车项
func (h *Handler) RemoveCartItem(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req RemoveCartItemRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	view, err := h.CartService.Remove(userID, req.ProductID, strings.TrimSpace(req.Size), strings.TrimSpace(req.Color))
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, view)
}

func i18nOnlyNLeft(c *gin.Context, available int) string {
	return i18n.Sprintf(i18n.ResolveLocale(c), "stock.only_n_left", available)
}
