package public

import "github.com/threadline/storefront/internal/provider"

// Handler 店铺前台处理器：库存、购物车、下单、优惠券试算，以及网关回调与人工核验
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
