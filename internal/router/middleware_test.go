package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/threadline/storefront/internal/authz"
	"github.com/threadline/storefront/internal/config"
	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestOriginPolicy(t *testing.T) {
	if got := newOriginPolicy([]string{"*"}, false).allow("https://example.com"); got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}
	if got := newOriginPolicy([]string{"*"}, true).allow("https://example.com"); got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}
	list := newOriginPolicy([]string{"https://A.example.com/", "https://b.example.com"}, false)
	if got := list.allow("https://a.example.com"); got != "https://a.example.com" {
		t.Fatalf("allow-list should match case-insensitively without trailing slash, got %s", got)
	}
	if got := list.allow("https://x.example.com"); got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(config.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, MaxAge: 600}))
	r.POST("/verify-payment", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/verify-payment", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight want 204 got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://shop.example.com" || w.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("unexpected preflight headers: %v", w.Header())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/verify-payment", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin must not be allowed")
	}
}

func TestValidRequestID(t *testing.T) {
	if !validRequestID("req-123_a.b:c") {
		t.Fatalf("plain id should be accepted")
	}
	if validRequestID("bad id\n") || validRequestID(strings.Repeat("a", maxRequestIDLength+1)) {
		t.Fatalf("unsafe or oversized ids should be rejected")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatalf("generated request id should not be empty")
	}
	if resp := strings.TrimSpace(generated); resp == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

func TestAdminJWTAuthMiddlewareMissingSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AdminJWTAuthMiddleware("", nil))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("status_code want 401 got %d", resp.StatusCode)
	}
}

type authFixture struct {
	cfg      *config.Config
	auth     *service.AuthService
	userAuth *service.UserAuthService
	authz    *authz.Service
	admins   *repository.GormAdminRepository
}

func setupAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Admin{}, &models.User{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	cfg := &config.Config{
		JWT:     config.JWTConfig{SecretKey: "admin-secret", ExpireHours: 1},
		UserJWT: config.JWTConfig{SecretKey: "user-secret", ExpireHours: 1},
	}
	admins := repository.NewAdminRepository(db)
	return &authFixture{
		cfg:      cfg,
		auth:     service.NewAuthService(cfg, admins),
		userAuth: service.NewUserAuthService(cfg, repository.NewUserRepository(db)),
		authz:    authzService,
		admins:   admins,
	}
}

func (f *authFixture) adminToken(t *testing.T, username string, isSuper bool) (*models.Admin, string) {
	t.Helper()
	admin := &models.Admin{Username: username, PasswordHash: "hash", IsSuper: isSuper}
	if err := f.admins.Create(admin); err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	token, _, err := f.auth.GenerateJWT(admin)
	if err != nil {
		t.Fatalf("generate admin token failed: %v", err)
	}
	return admin, token
}

func (f *authFixture) userToken(t *testing.T, id uint, email string) string {
	t.Helper()
	token, _, err := f.userAuth.GenerateUserJWT(&models.User{ID: id, Email: email})
	if err != nil {
		t.Fatalf("generate user token failed: %v", err)
	}
	return token
}

func cleanupRouter(f *authFixture, secret string) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	ops := r.Group("", HTTPStatusModeMiddleware(), CronOrAdminAuthMiddleware(secret, f.auth, f.authz))
	ops.POST("/cleanup", func(c *gin.Context) {
		_, byCron := c.Get(handlershared.ContextCronAuth)
		c.JSON(http.StatusOK, gin.H{"cron": byCron})
	})
	return r
}

func TestCronOrAdminAuthMiddleware(t *testing.T) {
	f := setupAuthFixture(t)
	_, superToken := f.adminToken(t, "root", true)
	_, plainToken := f.adminToken(t, "clerk", false)
	finance, financeToken := f.adminToken(t, "ledger", false)
	if err := f.authz.SetAdminRoles(finance.ID, []string{"finance"}); err != nil {
		t.Fatalf("assign finance role failed: %v", err)
	}

	cases := []struct {
		name     string
		secret   string
		header   string
		bearer   string
		wantCode int
		wantCron bool
	}{
		{name: "cron header", secret: "s3cret", header: "s3cret", wantCode: http.StatusOK, wantCron: true},
		{name: "cron bearer", secret: "s3cret", bearer: "s3cret", wantCode: http.StatusOK, wantCron: true},
		{name: "wrong header", secret: "s3cret", header: "nope", wantCode: http.StatusUnauthorized},
		{name: "no credentials", secret: "s3cret", wantCode: http.StatusUnauthorized},
		{name: "secret not configured", secret: "", header: "anything", wantCode: http.StatusUnauthorized},
		{name: "super admin", secret: "s3cret", bearer: superToken, wantCode: http.StatusOK},
		{name: "finance admin", secret: "s3cret", bearer: financeToken, wantCode: http.StatusOK},
		{name: "admin without role", secret: "s3cret", bearer: plainToken, wantCode: http.StatusForbidden},
		{name: "garbage bearer", secret: "s3cret", bearer: "not-a-jwt", wantCode: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := cleanupRouter(f, tc.secret)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/cleanup", nil)
			if tc.header != "" {
				req.Header.Set(cronSecretHeader, tc.header)
			}
			if tc.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tc.bearer)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.wantCode {
				t.Fatalf("status want %d got %d body=%s", tc.wantCode, w.Code, w.Body.String())
			}
			if tc.wantCode != http.StatusOK {
				if !strings.Contains(w.Body.String(), `"requestId"`) {
					t.Fatalf("error body should carry requestId, got %s", w.Body.String())
				}
				return
			}
			var resp struct {
				Cron bool `json:"cron"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal response failed: %v", err)
			}
			if resp.Cron != tc.wantCron {
				t.Fatalf("cron flag want %v got %v", tc.wantCron, resp.Cron)
			}
		})
	}
}

func TestShopperOrAdminAuthMiddleware(t *testing.T) {
	f := setupAuthFixture(t)
	_, superToken := f.adminToken(t, "root", true)
	_, plainToken := f.adminToken(t, "clerk", false)
	shopperToken := f.userToken(t, 42, "Shopper@Example.com")

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.POST("/verify-payment", HTTPStatusModeMiddleware(), ShopperOrAdminAuthMiddleware(f.auth, f.userAuth, f.authz), func(c *gin.Context) {
		userID, _ := handlershared.LookupContextUint(c, handlershared.ContextUserID)
		adminID, _ := handlershared.LookupContextUint(c, handlershared.ContextAdminID)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "admin_id": adminID})
	})

	call := func(bearer string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/verify-payment", nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		r.ServeHTTP(w, req)
		return w
	}

	if w := call(""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token want 401 got %d", w.Code)
	}
	if w := call(plainToken); w.Code != http.StatusForbidden {
		t.Fatalf("admin without role want 403 got %d", w.Code)
	}
	if w := call(superToken); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"admin_id":`) {
		t.Fatalf("super admin want 200 got %d %s", w.Code, w.Body.String())
	}
	w := call(shopperToken)
	if w.Code != http.StatusOK {
		t.Fatalf("shopper want 200 got %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		UserID  uint `json:"user_id"`
		AdminID uint `json:"admin_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.UserID != 42 || resp.AdminID != 0 {
		t.Fatalf("unexpected principal: %+v", resp)
	}
}
