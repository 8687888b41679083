package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/threadline/storefront/internal/config"
	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func TestKeyByIPAndJSONField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"email":" Test@Example.com "}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.RemoteAddr = "1.2.3.4:5678"

	key := KeyByIPAndJSONField("email")(c)
	if key != "test@example.com|1.2.3.4" {
		t.Fatalf("key want test@example.com|1.2.3.4 got %s", key)
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		t.Fatalf("read body after key extraction failed: %v", err)
	}
	if !strings.Contains(string(body), "Test@Example.com") {
		t.Fatalf("request body should be restored after reading field")
	}
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("expected handler response body, got %s", w.Body.String())
	}
}

func TestKeyByPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/verify-payment", nil)
	c.Request.RemoteAddr = "9.8.7.6:1000"

	if key := KeyByPrincipal(c); key != "9.8.7.6" {
		t.Fatalf("anonymous key want ip got %s", key)
	}
	c.Set(handlershared.ContextAdminID, uint(3))
	if key := KeyByPrincipal(c); key != "admin:3" {
		t.Fatalf("admin key want admin:3 got %s", key)
	}
	c.Set(handlershared.ContextUserID, uint(7))
	if key := KeyByPrincipal(c); key != "user:7" {
		t.Fatalf("user key want user:7 got %s", key)
	}
}

func TestLocalLimiterRejectsAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	rule := RateLimitRule{Prefix: "coupon", WindowSeconds: 60, MaxRequests: 2}
	r.POST("/coupons/evaluate", RateLimitMiddleware(nil, rule, KeyByIPAndJSONField("code")), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	send := func(code, ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/coupons/evaluate", strings.NewReader(`{"code":"`+code+`"}`))
		req.RemoteAddr = ip + ":1000"
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send("SAVE20", "5.5.5.5"); !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("request %d should pass: %s", i, w.Body.String())
		}
	}
	w := send("save20", "5.5.5.5")
	if !strings.Contains(w.Body.String(), `"status_code":429`) {
		t.Fatalf("third request should be limited: %s", w.Body.String())
	}
	if retry := w.Header().Get("Retry-After"); retry == "" || retry == "0" {
		t.Fatalf("Retry-After header missing, got %q", retry)
	}
	if w := send("SAVE20", "6.6.6.6"); !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("other ip should have its own bucket: %s", w.Body.String())
	}
	if w := send("OTHER", "5.5.5.5"); !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("other code should have its own bucket: %s", w.Body.String())
	}
}

func TestRateLimitStatusModeUses429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	rule := RateLimitRule{Prefix: "verify", WindowSeconds: 60, MaxRequests: 1}
	r.POST("/verify-payment", HTTPStatusModeMiddleware(), RateLimitMiddleware(nil, rule, KeyByPrincipal), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/verify-payment", nil)
		req.RemoteAddr = "7.7.7.7:1"
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("request %d want %d got %d", i, want, w.Code)
		}
		if want == http.StatusTooManyRequests && !strings.Contains(w.Body.String(), `"retryAfter"`) {
			t.Fatalf("429 body should carry retryAfter: %s", w.Body.String())
		}
	}
}

func TestDisabledRuleSkipsLimiting(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/ping", RateLimitMiddleware(nil, NewRateLimitRule("x", config.RateLimitConfig{}, ""), KeyByIP), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("disabled rule should never limit, got %d", w.Code)
		}
	}
}
