package cache

import (
	"context"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/models"
)

const couponCacheTTL = 60 * time.Second

func couponKey(code string) string {
	return "coupon:" + strings.ToUpper(strings.TrimSpace(code))
}

// GetCoupon 读取优惠券缓存（含规则）
func GetCoupon(ctx context.Context, code string) (*models.Coupon, bool, error) {
	var coupon models.Coupon
	hit, err := GetJSON(ctx, couponKey(code), &coupon)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &coupon, true, nil
}

// SetCoupon 写入优惠券缓存
func SetCoupon(ctx context.Context, coupon *models.Coupon) error {
	if coupon == nil || coupon.Code == "" {
		return nil
	}
	return SetJSON(ctx, couponKey(coupon.Code), coupon, couponCacheTTL)
}

// DelCoupon 删除优惠券缓存
func DelCoupon(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	return Del(ctx, couponKey(code))
}
