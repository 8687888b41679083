package router

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/authz"
	"github.com/threadline/storefront/internal/config"
	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/http/response"
	"github.com/threadline/storefront/internal/i18n"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"
const cronSecretHeader = "X-Cron-Secret"

// httpStatusModeKey 运维接口使用真实 HTTP 状态码而非统一信封
const httpStatusModeKey = "http_status_mode"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Accept-Language",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			requestIDHeader,
			cronSecretHeader,
		}
	}
	policy := newOriginPolicy(allowedOrigins, cfg.AllowCredentials)
	preflight := map[string]string{
		"Access-Control-Allow-Headers": strings.Join(allowedHeaders, ", "),
		"Access-Control-Allow-Methods": strings.Join(allowedMethods, ", "),
	}
	if cfg.MaxAge > 0 {
		preflight["Access-Control-Max-Age"] = strconv.Itoa(cfg.MaxAge)
	}

	return func(c *gin.Context) {
		header := c.Writer.Header()
		if origin := policy.allow(c.GetHeader("Origin")); origin != "" {
			header.Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				header.Add("Vary", "Origin")
			}
			if cfg.AllowCredentials {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		header.Set("Access-Control-Expose-Headers", requestIDHeader+", Retry-After")

		if c.Request.Method == http.MethodOptions {
			for key, value := range preflight {
				header.Set(key, value)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// originPolicy 允许的来源集合；通配且需要凭证时回显请求来源
type originPolicy struct {
	wildcard    bool
	credentials bool
	origins     map[string]struct{}
}

func newOriginPolicy(allowed []string, credentials bool) originPolicy {
	policy := originPolicy{credentials: credentials, origins: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		if origin == "*" {
			policy.wildcard = true
			continue
		}
		if origin != "" {
			policy.origins[origin] = struct{}{}
		}
	}
	return policy
}

func (p originPolicy) allow(origin string) string {
	if p.wildcard {
		if p.credentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin == "" {
		return ""
	}
	if _, ok := p.origins[strings.ToLower(origin)]; ok {
		return origin
	}
	return ""
}

// maxRequestIDLength 外部传入的请求 ID 超长或含非法字符时重新生成
const maxRequestIDLength = 64

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}

// LoggerMiddleware 结构化访问日志：5xx 记 error，4xx 记 warn，健康检查不记录
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.L()
	}
	sugar := log.Sugar()
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []interface{}{
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			sugar.Errorw("http_request", fields...)
		case status >= http.StatusBadRequest:
			sugar.Warnw("http_request", fields...)
		default:
			sugar.Infow("http_request", fields...)
		}
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// HTTPStatusModeMiddleware 标记当前路由组以真实 HTTP 状态码返回错误
func HTTPStatusModeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(httpStatusModeKey, true)
		c.Next()
	}
}

func useHTTPStatus(c *gin.Context) bool {
	value, ok := c.Get(httpStatusModeKey)
	if !ok {
		return false
	}
	flag, ok := value.(bool)
	return ok && flag
}

// abortAuth 终止请求：普通接口使用统一信封，运维接口使用真实状态码
func abortAuth(c *gin.Context, status int, key string) {
	if useHTTPStatus(c) {
		handlershared.RespondStatus(c, status, key, nil)
		c.Abort()
		return
	}
	code := response.CodeUnauthorized
	if status == http.StatusForbidden {
		code = response.CodeForbidden
	}
	response.AbortError(c, code, i18n.T(i18n.ResolveLocale(c), key))
}

// bearerToken 读取 Authorization: Bearer <token>
func bearerToken(c *gin.Context) (string, string) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return "", "error.auth_header_missing"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", "error.auth_header_invalid"
	}
	return strings.TrimSpace(parts[1]), ""
}

func tokenErrorKey(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenRevoked):
		return "error.token_revoked"
	case errors.Is(err, service.ErrUserDisabled):
		return "error.user_disabled"
	default:
		return "error.token_invalid"
	}
}

// authenticateAdmin 校验管理员 token 并写入上下文
func authenticateAdmin(c *gin.Context, authService *service.AuthService, token string) error {
	claims, err := authService.ParseJWT(token)
	if err != nil {
		return err
	}
	state, err := authService.ResolveAdmin(c.Request.Context(), claims)
	if err != nil {
		return err
	}
	c.Set(handlershared.ContextAdminID, state.AdminID)
	c.Set(handlershared.ContextAdminName, state.Username)
	c.Set(handlershared.ContextAdminIsSuper, state.IsSuper)
	return nil
}

// authenticateUser 校验用户 token 并写入上下文
func authenticateUser(c *gin.Context, userAuth *service.UserAuthService, token string) error {
	claims, err := userAuth.ParseUserJWT(token)
	if err != nil {
		return err
	}
	if _, err := userAuth.ResolveUser(c.Request.Context(), claims); err != nil {
		return err
	}
	c.Set(handlershared.ContextUserID, claims.UserID)
	c.Set(handlershared.ContextUserEmail, claims.Email)
	return nil
}

// AdminJWTAuthMiddleware 管理员 JWT 鉴权中间件
func AdminJWTAuthMiddleware(secretKey string, authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretKey == "" || authService == nil {
			abortAuth(c, http.StatusUnauthorized, "error.jwt_secret_missing")
			return
		}
		token, key := bearerToken(c)
		if key != "" {
			abortAuth(c, http.StatusUnauthorized, key)
			return
		}
		if err := authenticateAdmin(c, authService, token); err != nil {
			abortAuth(c, http.StatusUnauthorized, tokenErrorKey(err))
			return
		}
		c.Next()
	}
}

// UserJWTAuthMiddleware 用户 JWT 鉴权中间件
func UserJWTAuthMiddleware(secretKey string, userAuth *service.UserAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretKey == "" || userAuth == nil {
			abortAuth(c, http.StatusUnauthorized, "error.jwt_secret_missing")
			return
		}
		token, key := bearerToken(c)
		if key != "" {
			abortAuth(c, http.StatusUnauthorized, key)
			return
		}
		if err := authenticateUser(c, userAuth, token); err != nil {
			abortAuth(c, http.StatusUnauthorized, tokenErrorKey(err))
			return
		}
		c.Next()
	}
}

// ShopperOrAdminAuthMiddleware 接受管理员或用户 token；管理员路径同时校验 RBAC
func ShopperOrAdminAuthMiddleware(authService *service.AuthService, userAuth *service.UserAuthService, authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, key := bearerToken(c)
		if key != "" {
			abortAuth(c, http.StatusUnauthorized, key)
			return
		}
		if authService != nil {
			if err := authenticateAdmin(c, authService, token); err == nil {
				if enforceAdminRBAC(c, authzService) {
					c.Next()
				}
				return
			}
		}
		if userAuth == nil {
			abortAuth(c, http.StatusUnauthorized, "error.token_invalid")
			return
		}
		if err := authenticateUser(c, userAuth, token); err != nil {
			abortAuth(c, http.StatusUnauthorized, tokenErrorKey(err))
			return
		}
		c.Next()
	}
}

// CronOrAdminAuthMiddleware 接受定时任务密钥（X-Cron-Secret 或 Bearer）或管理员 token
func CronOrAdminAuthMiddleware(cronSecret string, authService *service.AuthService, authzService *authz.Service) gin.HandlerFunc {
	cronSecret = strings.TrimSpace(cronSecret)
	return func(c *gin.Context) {
		headerSecret := strings.TrimSpace(c.GetHeader(cronSecretHeader))
		token, key := bearerToken(c)

		if cronSecret != "" && (secretEqual(headerSecret, cronSecret) || secretEqual(token, cronSecret)) {
			c.Set(handlershared.ContextCronAuth, true)
			c.Next()
			return
		}
		if key != "" {
			if cronSecret == "" {
				key = "error.cron_secret_missing"
			} else if headerSecret != "" {
				key = "error.unauthorized"
			}
			abortAuth(c, http.StatusUnauthorized, key)
			return
		}
		if authService == nil {
			abortAuth(c, http.StatusUnauthorized, "error.unauthorized")
			return
		}
		if err := authenticateAdmin(c, authService, token); err != nil {
			abortAuth(c, http.StatusUnauthorized, tokenErrorKey(err))
			return
		}
		if enforceAdminRBAC(c, authzService) {
			c.Next()
		}
	}
}

func secretEqual(given, expected string) bool {
	if given == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}

// AdminRBACMiddleware 管理端 RBAC 鉴权中间件
func AdminRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if enforceAdminRBAC(c, authzService) {
			c.Next()
		}
	}
}

// enforceAdminRBAC 超级管理员直接放行，其余按路由模板与方法校验
func enforceAdminRBAC(c *gin.Context, authzService *authz.Service) bool {
	if authzService == nil {
		logger.Errorw("admin_rbac_service_unavailable")
		abortAuth(c, http.StatusUnauthorized, "error.unauthorized")
		return false
	}

	if isSuper, ok := c.Get(handlershared.ContextAdminIsSuper); ok {
		if superValue, typeOK := isSuper.(bool); typeOK && superValue {
			return true
		}
	}

	adminID, ok := handlershared.LookupContextUint(c, handlershared.ContextAdminID)
	if !ok || adminID == 0 {
		abortAuth(c, http.StatusUnauthorized, "error.unauthorized")
		return false
	}

	resource := c.FullPath()
	if strings.TrimSpace(resource) == "" {
		resource = c.Request.URL.Path
	}

	allowed, err := authzService.EnforceAdmin(adminID, resource, c.Request.Method)
	if err != nil {
		logger.Errorw("admin_rbac_enforce_failed",
			"admin_id", adminID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
		abortAuth(c, http.StatusUnauthorized, "error.unauthorized")
		return false
	}
	if !allowed {
		logger.Warnw("admin_rbac_permission_denied",
			"admin_id", adminID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"resource", authz.NormalizeObject(resource),
		)
		abortAuth(c, http.StatusForbidden, "error.forbidden")
		return false
	}
	return true
}
