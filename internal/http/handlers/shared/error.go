package shared

import (
	"errors"

	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/i18n"
	"github.com/threadline/storefront/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if id := RequestID(c); id != "" {
		return logger.SW("request_id", id)
	}
	return logger.S()
}

// RequestID 读取当前请求 ID
func RequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

// RespondError 返回国际化错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, key string, err error) {
	locale := i18n.ResolveLocale(c)
	msg := i18n.T(locale, key)
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondErrorWithData 返回带附加数据的国际化错误响应
func RespondErrorWithData(c *gin.Context, code int, key string, data interface{}) {
	response.ErrorWithData(c, code, i18n.T(i18n.ResolveLocale(c), key), data)
}

// MappedError 业务错误到接口错误响应的映射
type MappedError struct {
	Target error
	Code   int
	Key    string
}

// MatchMappedError 按顺序查找第一条匹配的规则
func MatchMappedError(err error, rules []MappedError) (MappedError, bool) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			return rule, true
		}
	}
	return MappedError{}, false
}

// RespondWithMappedError 命中规则时按规则响应，否则记录原始错误并返回兜底响应
func RespondWithMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackKey string) {
	if rule, ok := MatchMappedError(err, rules); ok {
		RespondError(c, rule.Code, rule.Key, nil)
		return
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// ConcatMappedErrors 合并多组映射规则
func ConcatMappedErrors(groups ...[]MappedError) []MappedError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]MappedError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

// RespondStatus 以真实 HTTP 状态码返回错误（网关回调与运维接口使用）
func RespondStatus(c *gin.Context, status int, key string, extra gin.H) {
	body := gin.H{"error": i18n.T(i18n.ResolveLocale(c), key)}
	for k, v := range extra {
		body[k] = v
	}
	response.Status(c, status, body)
}
