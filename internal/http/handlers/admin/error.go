package admin

import (
	"github.com/threadline/storefront/internal/authz"
	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var couponAdminErrorRules = []handlershared.MappedError{
	{Target: service.ErrCouponNotFound, Code: response.CodeNotFound, Key: "error.coupon_not_found"},
	{Target: service.ErrCouponCodeExists, Code: response.CodeConflict, Key: "error.coupon_code_exists"},
	{Target: service.ErrCouponCodeRequired, Code: response.CodeBadRequest, Key: "error.coupon_code_required"},
	{Target: service.ErrCouponInvalid, Code: response.CodeBadRequest, Key: "error.coupon_invalid"},
}

var orderAdminErrorRules = []handlershared.MappedError{
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Key: "error.order_not_found"},
	{Target: service.ErrOrderStatusInvalid, Code: response.CodeBadRequest, Key: "error.order_status_invalid"},
	{Target: service.ErrOrderNotCancellable, Code: response.CodeBadRequest, Key: "error.order_not_cancellable"},
}

var authzErrorRules = []handlershared.MappedError{
	{Target: authz.ErrRoleRequired, Code: response.CodeBadRequest, Key: "error.role_required"},
	{Target: authz.ErrRoleNotFound, Code: response.CodeNotFound, Key: "error.role_not_found"},
	{Target: authz.ErrReservedRole, Code: response.CodeBadRequest, Key: "error.role_reserved"},
	{Target: authz.ErrBuiltinRoleLock, Code: response.CodeForbidden, Key: "error.role_builtin_locked"},
	{Target: authz.ErrActionRequired, Code: response.CodeBadRequest, Key: "error.policy_action_required"},
	{Target: authz.ErrAdminIDRequired, Code: response.CodeBadRequest, Key: "error.admin_id_invalid"},
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func respondCouponAdminError(c *gin.Context, err error) {
	handlershared.RespondWithMappedError(c, err, couponAdminErrorRules, response.CodeInternal, "error.internal")
}

func respondOrderAdminError(c *gin.Context, err error) {
	handlershared.RespondWithMappedError(c, err, orderAdminErrorRules, response.CodeInternal, "error.internal")
}

func respondAuthzError(c *gin.Context, err error) {
	handlershared.RespondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.internal")
}
