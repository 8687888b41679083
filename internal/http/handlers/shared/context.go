package shared

import (
	"strconv"
	"strings"

	"github.com/threadline/storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// 鉴权中间件写入的上下文键
const (
	ContextUserID       = "user_id"
	ContextUserEmail    = "user_email"
	ContextAdminID      = "admin_id"
	ContextAdminName    = "username"
	ContextAdminIsSuper = "admin_is_super"
	ContextCronAuth     = "cron_authorized"
)

// GetContextUintWithKeys 从上下文读取 uint 值并统一处理错误响应。
func GetContextUintWithKeys(c *gin.Context, key, invalidKey, typeInvalidKey string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return 0, false
	}
	id, ok := toUint(value)
	if !ok {
		RespondError(c, response.CodeInternal, typeInvalidKey, nil)
		return 0, false
	}
	if id == 0 {
		RespondError(c, response.CodeBadRequest, invalidKey, nil)
		return 0, false
	}
	return id, true
}

// LookupContextUint 读取可选的 uint 上下文值，不写响应
func LookupContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		return 0, false
	}
	id, ok := toUint(value)
	return id, ok && id > 0
}

func toUint(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, true
		}
		return uint(v), true
	case float64:
		if v < 0 {
			return 0, true
		}
		return uint(v), true
	default:
		return 0, false
	}
}

// ParseIDParam 解析路径中的数字 ID
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, false
	}
	return uint(id), true
}
