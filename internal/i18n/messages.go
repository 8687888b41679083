package i18n

var catalogs = map[string]map[string]string{
	LocaleEN: {
		"error.bad_request":               "Invalid request",
		"error.unauthorized":              "Unauthorized",
		"error.forbidden":                 "You do not have access to this resource",
		"error.not_found":                 "Resource not found",
		"error.internal":                  "Something went wrong, please try again",
		"error.rate_limited":              "Too many requests, please retry in %d seconds",
		"error.rate_limit_unavailable":    "Rate limiter unavailable",
		"error.jwt_secret_missing":        "Authentication is not configured",
		"error.auth_header_missing":       "Authorization header is required",
		"error.auth_header_invalid":       "Authorization header must be a Bearer token",
		"error.token_invalid":             "Invalid or expired token",
		"error.token_revoked":             "Token has been revoked",
		"error.user_disabled":             "Account is disabled",
		"error.user_id_invalid":           "Invalid user id",
		"error.user_id_type_invalid":      "Invalid user id type",
		"error.admin_id_invalid":          "Invalid admin id",
		"error.admin_id_type_invalid":     "Invalid admin id type",
		"error.login_invalid":             "Invalid username or password",
		"error.login_too_many":            "Too many login attempts, please retry in %d seconds",
		"error.cron_secret_missing":       "Cleanup is not configured",
		"error.product_not_found":         "Product not found",
		"error.product_not_available":     "Product is not available",
		"error.cart_empty":                "Your cart is empty",
		"error.cart_item_invalid":         "Invalid cart item",
		"error.stock_insufficient":        "Not enough stock for one or more items",
		"error.coupon_code_required":      "Please enter a coupon code",
		"error.coupon_not_found":          "Coupon code not found",
		"error.coupon_expired":            "This coupon is not valid at this time",
		"error.coupon_inactive":           "This coupon is no longer active",
		"error.coupon_min_amount":         "Your cart does not meet the minimum purchase amount for this coupon",
		"error.coupon_no_rule_matched":    "Your cart does not qualify for this coupon",
		"error.coupon_invalid":            "Invalid coupon configuration",
		"error.coupon_code_exists":        "Coupon code already exists",
		"error.order_not_found":           "Order not found",
		"error.order_access_denied":       "You do not have access to this order",
		"error.order_gateway_missing":     "This order has no online payment reference",
		"error.order_status_invalid":      "Order status cannot be changed",
		"error.order_not_cancellable":     "Order can no longer be cancelled",
		"error.order_address_invalid":     "Shipping address is incomplete",
		"error.payment_method_invalid":    "Unsupported payment method",
		"error.payment_gateway_failed":    "Payment gateway is unavailable, please try again",
		"error.payment_not_captured":      "No captured payment found for this order",
		"error.webhook_signature":         "Invalid webhook signature",
		"error.queue_unavailable":         "Background queue unavailable",
		"error.role_required":             "Role is required",
		"error.role_not_found":            "Role not found",
		"error.role_reserved":             "This role name is reserved",
		"error.role_builtin_locked":       "Builtin role permissions cannot be changed",
		"error.policy_action_required":    "Policy action is required",
		"stock.only_n_left":               "Only %d in stock",
		"verify.recommend.none":           "No payment attempt was found for this order. Please retry the payment from your orders page.",
		"verify.recommend.authorized":     "The payment is authorized but not yet captured. Please wait a few minutes and verify again.",
		"verify.recommend.failed":         "The last payment attempt failed. Please retry the payment or choose cash on delivery.",
		"verify.recommend.refunded":       "The payment for this order was refunded. Contact support if this is unexpected.",
		"verify.recommend.pending":        "The payment is still being processed by the bank. Please verify again shortly.",
		"email.payment_confirmed.subject": "Payment received for order %s",
		"email.payment_confirmed.body":    "Hi,\n\nWe have received your payment of %s %s for order %s. Your order is confirmed and will be packed soon.\n\nThank you for shopping with us.",
		"email.order_status.subject":      "Order %s: %s",
		"email.order_status.body":         "Hi,\n\nYour order %s is now %s.\n\nThank you for shopping with us.",
		"order.status.pending":            "Pending",
		"order.status.confirmed":          "Confirmed",
		"order.status.processing":         "Processing",
		"order.status.shipped":            "Shipped",
		"order.status.delivered":          "Delivered",
		"order.status.cancelled":          "Cancelled",
		"order.status.refunded":           "Refunded",
	},
	LocaleHI: {
		"error.coupon_not_found":       "कूपन कोड नहीं मिला",
		"error.coupon_expired":         "यह कूपन इस समय मान्य नहीं है",
		"error.coupon_inactive":        "यह कूपन अब सक्रिय नहीं है",
		"error.coupon_min_amount":      "आपकी कार्ट इस कूपन की न्यूनतम राशि पूरी नहीं करती",
		"error.coupon_no_rule_matched": "आपकी कार्ट इस कूपन के लिए योग्य नहीं है",
		"error.stock_insufficient":     "कुछ वस्तुओं का पर्याप्त स्टॉक नहीं है",
		"stock.only_n_left":            "केवल %d स्टॉक में",
		"order.status.shipped":         "भेज दिया गया",
		"order.status.delivered":       "पहुंचा दिया गया",
		"order.status.cancelled":       "रद्द",
	},
}
