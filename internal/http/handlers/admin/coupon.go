package admin

import (
	"strings"

	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/repository"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// ListCoupons 优惠券列表
func (h *Handler) ListCoupons(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.CouponListFilter{
		Code:     strings.TrimSpace(c.Query("code")),
		Page:     page,
		PageSize: pageSize,
	}
	switch strings.TrimSpace(c.Query("is_active")) {
	case "true", "1":
		active := true
		filter.IsActive = &active
	case "false", "0":
		active := false
		filter.IsActive = &active
	}

	coupons, total, err := h.CouponAdminService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, coupons, handlershared.BuildPagination(page, pageSize, total))
}

// GetCoupon 优惠券详情（含规则）
func (h *Handler) GetCoupon(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	coupon, err := h.CouponAdminService.Get(id)
	if err != nil {
		respondCouponAdminError(c, err)
		return
	}
	response.Success(c, coupon)
}

// CreateCoupon 创建优惠券
func (h *Handler) CreateCoupon(c *gin.Context) {
	var req service.CouponInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	coupon, err := h.CouponAdminService.Create(req)
	if err != nil {
		respondCouponAdminError(c, err)
		return
	}
	adminID, _ := handlershared.LookupContextUint(c, handlershared.ContextAdminID)
	requestLog(c).Infow("admin_coupon_created", "admin_id", adminID, "coupon_id", coupon.ID, "code", coupon.Code)
	response.Success(c, coupon)
}

// UpdateCoupon 更新优惠券，规则整体替换
func (h *Handler) UpdateCoupon(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.CouponInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	coupon, err := h.CouponAdminService.Update(id, req)
	if err != nil {
		respondCouponAdminError(c, err)
		return
	}
	adminID, _ := handlershared.LookupContextUint(c, handlershared.ContextAdminID)
	requestLog(c).Infow("admin_coupon_updated", "admin_id", adminID, "coupon_id", coupon.ID, "code", coupon.Code)
	response.Success(c, coupon)
}

// DeleteCoupon 删除优惠券
func (h *Handler) DeleteCoupon(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.CouponAdminService.Delete(id); err != nil {
		respondCouponAdminError(c, err)
		return
	}
	adminID, _ := handlershared.LookupContextUint(c, handlershared.ContextAdminID)
	requestLog(c).Infow("admin_coupon_deleted", "admin_id", adminID, "coupon_id", id)
	response.Success(c, nil)
}
