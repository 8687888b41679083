package service

import (
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"
)

// releaseOutcome 订单取消后的资源释放结果
type releaseOutcome struct {
	Restored int
	Failed   int
}

// orderReleaser 释放已取消订单占用的库存与优惠券额度
// 只应由赢得取消 CAS 的调用方执行，保证每笔订单只回补一次
type orderReleaser struct {
	stock           *StockService
	couponRepo      repository.CouponRepository
	couponUsageRepo repository.CouponUsageRepository
}

// release 逐项在独立事务中回补库存，单项失败只计数不中断
func (r *orderReleaser) release(order *models.Order) releaseOutcome {
	var outcome releaseOutcome
	if r == nil || order == nil {
		return outcome
	}
	for _, item := range order.Items {
		if item.Quantity <= 0 {
			continue
		}
		if err := r.stock.RestoreInOwnTx(item.ProductID, item.SelectedSize, item.SelectedColor, item.Quantity); err != nil {
			outcome.Failed++
			logger.Errorw("order_stock_restore_failed",
				"order_id", order.ID,
				"order_no", order.OrderNo,
				"product_id", item.ProductID,
				"size", item.SelectedSize,
				"color", item.SelectedColor,
				"quantity", item.Quantity,
				"error", err,
			)
			continue
		}
		outcome.Restored++
	}
	r.releaseCoupon(order)
	return outcome
}

func (r *orderReleaser) releaseCoupon(order *models.Order) {
	if r.couponUsageRepo == nil || order.CouponCode == "" {
		return
	}
	usage, err := r.couponUsageRepo.ReleaseByOrderID(order.ID)
	if err != nil {
		logger.Warnw("order_coupon_usage_release_failed", "order_id", order.ID, "error", err)
		return
	}
	if usage == nil || r.couponRepo == nil {
		return
	}
	if err := r.couponRepo.DecrementUsedCount(usage.CouponID, 1); err != nil {
		logger.Warnw("order_coupon_used_count_decrement_failed",
			"order_id", order.ID,
			"coupon_id", usage.CouponID,
			"error", err,
		)
	}
}
