package admin

import "github.com/threadline/storefront/internal/provider"

// Handler 后台接口处理器：优惠券、订单、支付日志、权限与超时订单清理
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
