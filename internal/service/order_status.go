package service

import (
	"strings"

	"github.com/threadline/storefront/internal/constants"
)

// allowedTransitions 订单状态流转表（refunded 只能由退款事件进入）
var allowedTransitions = map[string][]string{
	constants.OrderStatusPending:    {constants.OrderStatusConfirmed, constants.OrderStatusCancelled},
	constants.OrderStatusConfirmed:  {constants.OrderStatusProcessing, constants.OrderStatusCancelled},
	constants.OrderStatusProcessing: {constants.OrderStatusShipped},
	constants.OrderStatusShipped:    {constants.OrderStatusDelivered},
}

// terminalStatuses 终态订单不再流转
var terminalStatuses = map[string]struct{}{
	constants.OrderStatusDelivered: {},
	constants.OrderStatusCancelled: {},
	constants.OrderStatusRefunded:  {},
}

// normalizeOrderStatus 归一化状态值，兼容 canceled 拼写
func normalizeOrderStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "canceled" {
		return constants.OrderStatusCancelled
	}
	return status
}

// canTransition 判断状态是否允许流转
func canTransition(from, to string) bool {
	from = normalizeOrderStatus(from)
	to = normalizeOrderStatus(to)
	if _, ok := terminalStatuses[from]; ok {
		return false
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus 是否为终态
func IsTerminalOrderStatus(status string) bool {
	_, ok := terminalStatuses[normalizeOrderStatus(status)]
	return ok
}
