package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/threadline/storefront/internal/config"
	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/i18n"
	"github.com/threadline/storefront/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// 限流 key 仅读取请求体前 64KB
const rateLimitBodyPeek = 64 << 10

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则：WindowSeconds 窗口内最多 MaxRequests 次
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	MessageKey    string
}

// NewRateLimitRule 由配置构造限流规则
func NewRateLimitRule(prefix string, cfg config.RateLimitConfig, messageKey string) RateLimitRule {
	return RateLimitRule{
		Prefix:        prefix,
		WindowSeconds: cfg.WindowSeconds,
		MaxRequests:   cfg.MaxAttempts,
		MessageKey:    messageKey,
	}
}

func (r RateLimitRule) enabled() bool {
	return r.WindowSeconds > 0 && r.MaxRequests > 0
}

func (r RateLimitRule) window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// rateLimiter 判定一次请求是否放行，拒绝时返回需等待的秒数
type rateLimiter interface {
	allow(ctx context.Context, key string) (bool, int, error)
}

// fixedWindowScript 固定窗口计数：首次计数时设置过期时间
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("TTL", KEYS[1])}
`)

type redisLimiter struct {
	client *redis.Client
	rule   RateLimitRule
}

func (l *redisLimiter) allow(ctx context.Context, key string) (bool, int, error) {
	values, err := fixedWindowScript.Run(ctx, l.client, []string{key}, l.rule.WindowSeconds).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(values) < 2 {
		return false, 0, fmt.Errorf("unexpected rate limit reply: %v", values)
	}
	if values[0] <= int64(l.rule.MaxRequests) {
		return true, 0, nil
	}
	wait := int(values[1])
	if wait < 1 {
		wait = l.rule.WindowSeconds
	}
	return false, wait, nil
}

// localLimiter 进程内令牌桶，Redis 未启用时使用（多实例部署下各实例独立计数）
type localLimiter struct {
	rule    RateLimitRule
	mu      sync.Mutex
	buckets map[string]*localBucket
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLocalLimiter(rule RateLimitRule) *localLimiter {
	return &localLimiter{rule: rule, buckets: make(map[string]*localBucket)}
}

func (l *localLimiter) allow(_ context.Context, key string) (bool, int, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		every := l.rule.window() / time.Duration(l.rule.MaxRequests)
		bucket = &localBucket{limiter: rate.NewLimiter(rate.Every(every), l.rule.MaxRequests)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now
	l.evictIdle(now)

	reservation := bucket.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return true, 0, nil
	}
	reservation.CancelAt(now)
	return false, int(math.Ceil(delay.Seconds())), nil
}

// evictIdle 清理超过两个窗口未访问的桶
func (l *localLimiter) evictIdle(now time.Time) {
	if len(l.buckets) < 1024 {
		return
	}
	idle := 2 * l.rule.window()
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > idle {
			delete(l.buckets, key)
		}
	}
}

// RateLimitMiddleware 限流中间件：有 Redis 时跨实例计数，否则退化为进程内令牌桶
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	if !rule.enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	var limiter rateLimiter
	if client != nil {
		limiter = &redisLimiter{client: client, rule: rule}
	} else {
		limiter = newLocalLimiter(rule)
	}

	return func(c *gin.Context) {
		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = rule.Prefix + ":" + key
		}

		allowed, waitSeconds, err := limiter.allow(c.Request.Context(), key)
		if err != nil {
			logger.Warnw("rate_limit_check_failed", "prefix", rule.Prefix, "error", err)
			abortRateLimitUnavailable(c)
			return
		}
		if allowed {
			c.Next()
			return
		}
		abortRateLimited(c, rule, waitSeconds)
	}
}

func abortRateLimited(c *gin.Context, rule RateLimitRule, waitSeconds int) {
	if waitSeconds < 1 {
		waitSeconds = 1
	}
	msgKey := strings.TrimSpace(rule.MessageKey)
	if msgKey == "" {
		msgKey = "error.rate_limited"
	}
	c.Header("Retry-After", strconv.Itoa(waitSeconds))
	msg := i18n.Sprintf(i18n.ResolveLocale(c), msgKey, waitSeconds)
	if useHTTPStatus(c) {
		response.AbortStatus(c, http.StatusTooManyRequests, gin.H{"error": msg, "retryAfter": waitSeconds})
		return
	}
	response.AbortError(c, response.CodeTooManyRequests, msg)
}

func abortRateLimitUnavailable(c *gin.Context) {
	if useHTTPStatus(c) {
		handlershared.RespondStatus(c, http.StatusServiceUnavailable, "error.rate_limit_unavailable", nil)
		c.Abort()
		return
	}
	response.AbortError(c, response.CodeServiceUnavailable, i18n.T(i18n.ResolveLocale(c), "error.rate_limit_unavailable"))
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByIPAndJSONField 使用 JSON 字段 + IP 作为限流 key，字段缺失时仅用 IP
func KeyByIPAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		value := strings.ToLower(readJSONField(c, field))
		if value == "" {
			return c.ClientIP()
		}
		return value + "|" + c.ClientIP()
	}
}

// KeyByPrincipal 已鉴权时按用户/管理员限流，否则按 IP
func KeyByPrincipal(c *gin.Context) string {
	if userID, ok := handlershared.LookupContextUint(c, handlershared.ContextUserID); ok {
		return fmt.Sprintf("user:%d", userID)
	}
	if adminID, ok := handlershared.LookupContextUint(c, handlershared.ContextAdminID); ok {
		return fmt.Sprintf("admin:%d", adminID)
	}
	return c.ClientIP()
}

// readJSONField 读取请求体中的字符串字段，读取后恢复请求体供后续绑定
func readJSONField(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(c.Request.Body, rateLimitBodyPeek))
	if err != nil {
		return ""
	}
	c.Request.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), c.Request.Body), c.Request.Body}

	var payload map[string]json.RawMessage
	if len(head) == 0 || json.Unmarshal(head, &payload) != nil {
		return ""
	}
	var text string
	if raw, ok := payload[field]; !ok || json.Unmarshal(raw, &text) != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
