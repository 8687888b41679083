package public

import (
	"errors"

	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

var couponErrorRules = []handlershared.MappedError{
	{Target: service.ErrCouponCodeRequired, Code: response.CodeBadRequest, Key: "error.coupon_code_required"},
	{Target: service.ErrCouponNotFound, Code: response.CodeNotFound, Key: "error.coupon_not_found"},
	{Target: service.ErrCouponExpired, Code: response.CodeBadRequest, Key: "error.coupon_expired"},
	{Target: service.ErrCouponInactive, Code: response.CodeBadRequest, Key: "error.coupon_inactive"},
	{Target: service.ErrCouponMinAmount, Code: response.CodeBadRequest, Key: "error.coupon_min_amount"},
	{Target: service.ErrCouponNoRuleMatched, Code: response.CodeBadRequest, Key: "error.coupon_no_rule_matched"},
}

var cartErrorRules = []handlershared.MappedError{
	{Target: service.ErrCartItemInvalid, Code: response.CodeBadRequest, Key: "error.cart_item_invalid"},
	{Target: service.ErrCartEmpty, Code: response.CodeBadRequest, Key: "error.cart_empty"},
	{Target: service.ErrProductNotFound, Code: response.CodeNotFound, Key: "error.product_not_found"},
	{Target: service.ErrProductNotAvailable, Code: response.CodeBadRequest, Key: "error.product_not_available"},
	{Target: service.ErrInsufficientStock, Code: response.CodeBadRequest, Key: "error.stock_insufficient"},
}

var checkoutErrorRules = handlershared.ConcatMappedErrors(cartErrorRules, couponErrorRules, []handlershared.MappedError{
	{Target: service.ErrInvalidInput, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrInvalidEmail, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrOrderAddressInvalid, Code: response.CodeBadRequest, Key: "error.order_address_invalid"},
	{Target: service.ErrPaymentMethodInvalid, Code: response.CodeBadRequest, Key: "error.payment_method_invalid"},
	{Target: service.ErrPaymentGatewayUnavailable, Code: response.CodeBadGateway, Key: "error.payment_gateway_failed"},
})

var orderErrorRules = []handlershared.MappedError{
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Key: "error.order_not_found"},
	{Target: service.ErrOrderNotCancellable, Code: response.CodeBadRequest, Key: "error.order_not_cancellable"},
}

// verifyStatusRules 人工核验使用真实 HTTP 状态码
var verifyStatusRules = []handlershared.MappedError{
	{Target: service.ErrInvalidInput, Code: 400, Key: "error.bad_request"},
	{Target: service.ErrOrderGatewayRefMissing, Code: 400, Key: "error.order_gateway_missing"},
	{Target: service.ErrOrderAccessDenied, Code: 403, Key: "error.order_access_denied"},
	{Target: service.ErrOrderNotFound, Code: 404, Key: "error.order_not_found"},
}

func respondCouponError(c *gin.Context, err error) {
	handlershared.RespondWithMappedError(c, err, couponErrorRules, response.CodeInternal, "error.internal")
}

func respondCartError(c *gin.Context, err error) {
	var quantityErr *service.CartQuantityError
	if errors.As(err, &quantityErr) {
		handlershared.RespondErrorWithData(c, response.CodeBadRequest, "error.stock_insufficient", gin.H{
			"available": quantityErr.Available,
			"message":   i18nOnlyNLeft(c, quantityErr.Available),
		})
		return
	}
	handlershared.RespondWithMappedError(c, err, cartErrorRules, response.CodeInternal, "error.internal")
}

func respondCheckoutError(c *gin.Context, err error) {
	var shortage *service.StockShortageError
	if errors.As(err, &shortage) {
		handlershared.RespondErrorWithData(c, response.CodeBadRequest, "error.stock_insufficient", gin.H{
			"shortages": shortage.Shortages,
		})
		return
	}
	handlershared.RespondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "error.internal")
}

func respondOrderError(c *gin.Context, err error) {
	handlershared.RespondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "error.internal")
}
