package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	LocaleEN = "en"
	LocaleHI = "hi"
)

// T 返回指定语言的消息，缺失时回退英文，再回退为 key 本身
func T(locale, key string) string {
	if catalog, ok := catalogs[locale]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if msg, ok := catalogs[LocaleEN][key]; ok {
		return msg
	}
	return key
}

// Sprintf 返回格式化后的消息
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}

// ResolveLocale 从请求头解析语言
func ResolveLocale(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return LocaleEN
	}
	return NormalizeLocale(c.GetHeader("Accept-Language"))
}

// NormalizeLocale 归一化语言标识
func NormalizeLocale(raw string) string {
	l := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(l, "hi") {
		return LocaleHI
	}
	return LocaleEN
}
