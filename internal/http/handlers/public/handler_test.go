package public

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/threadline/storefront/internal/constants"
	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/payment/razorpay"
	"github.com/threadline/storefront/internal/provider"
	"github.com/threadline/storefront/internal/repository"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const handlerWebhookSecret = "whsec_handler"

// gatewayStub 模拟网关的按订单查询支付接口
type gatewayStub struct {
	mu       sync.Mutex
	payments map[string][]razorpay.Payment
	down     bool
}

func (g *gatewayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		http.Error(w, `{"error":{"code":"SERVER_ERROR"}}`, http.StatusInternalServerError)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[1] != "orders" || parts[3] != "payments" {
		http.NotFound(w, r)
		return
	}
	items := g.payments[parts[2]]
	if items == nil {
		items = []razorpay.Payment{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"entity": "collection", "count": len(items), "items": items})
}

type handlerFixture struct {
	db      *gorm.DB
	handler *Handler
	gateway *gatewayStub
	orders  *repository.GormOrderRepository
}

func setupHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.Tables()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	stub := &gatewayStub{payments: map[string][]razorpay.Payment{}}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)
	gateway := razorpay.NewClient(razorpay.Config{
		KeyID:         "rzp_test_handler",
		KeySecret:     "secret",
		WebhookSecret: handlerWebhookSecret,
		APIBaseURL:    server.URL,
		Timeout:       2 * time.Second,
	}, server.Client())

	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	usageRepo := repository.NewCouponUsageRepository(db)
	logRepo := repository.NewPaymentLogRepository(db)
	stock := service.NewStockService(productRepo)
	coupons := service.NewCouponService(couponRepo)

	c := &provider.Container{
		DB:             db,
		Gateway:        gateway,
		OrderRepo:      orderRepo,
		ProductRepo:    productRepo,
		CartRepo:       cartRepo,
		PaymentLogRepo: logRepo,
		StockService:   stock,
		CouponService:  coupons,
		CartService:    service.NewCartService(cartRepo, stock, "INR"),
		OrderService: service.NewOrderService(service.OrderServiceOptions{
			OrderRepo:       orderRepo,
			ProductRepo:     productRepo,
			CartRepo:        cartRepo,
			CouponRepo:      couponRepo,
			CouponUsageRepo: usageRepo,
			PaymentLogRepo:  logRepo,
			StockService:    stock,
			CouponService:   coupons,
			Gateway:         gateway,
			Pricing:         service.OrderPricing{Currency: "INR"},
		}),
		PaymentService: service.NewPaymentService(service.PaymentServiceOptions{
			OrderRepo:       orderRepo,
			PaymentLogRepo:  logRepo,
			CouponRepo:      couponRepo,
			CouponUsageRepo: usageRepo,
			StockService:    stock,
			Gateway:         gateway,
		}),
	}
	return &handlerFixture{db: db, handler: New(c), gateway: stub, orders: orderRepo}
}

func (f *handlerFixture) createProduct(t *testing.T, slug string, stock int, bySize models.SizeStock) *models.Product {
	t.Helper()
	product := &models.Product{
		Slug:        slug,
		Name:        slug,
		PriceAmount: models.NewMoneyFromInt(800),
		IsActive:    true,
		Stock:       stock,
		StockBySize: datatypes.NewJSONType(bySize),
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func (f *handlerFixture) createPendingOrder(t *testing.T, userID uint) *models.Order {
	t.Helper()
	seq := time.Now().UnixNano()
	order := &models.Order{
		OrderNo:         fmt.Sprintf("SFH%d", seq),
		UserID:          userID,
		Email:           "shopper@example.com",
		ShippingAddress: datatypes.NewJSONType(models.ShippingAddress{Name: "Asha", City: "Pune"}),
		Currency:        "INR",
		SubtotalAmount:  models.NewMoneyFromInt(1000),
		TotalAmount:     models.NewMoneyFromInt(1000),
		Status:          constants.OrderStatusPending,
		PaymentStatus:   constants.PaymentStatusPending,
		PaymentMethod:   constants.PaymentMethodRazorpay,
		RazorpayOrderID: fmt.Sprintf("order_h_%d", seq),
	}
	if err := f.orders.Create(order, nil); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func withContext(values map[string]interface{}, next gin.HandlerFunc) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			c.Set("request_id", "req-handler")
			for k, v := range values {
				c.Set(k, v)
			}
			c.Next()
		},
		next,
	}
}

func serve(r *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func signedWebhook(t *testing.T, event string, payment razorpay.Payment) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"entity":  "event",
		"event":   event,
		"payload": map[string]interface{}{"payment": map[string]interface{}{"entity": payment}},
	})
	if err != nil {
		t.Fatalf("marshal webhook failed: %v", err)
	}
	return body, razorpay.ComputeSignature(handlerWebhookSecret, body)
}

func TestWebhookStatusCodes(t *testing.T) {
	f := setupHandlerFixture(t)
	order := f.createPendingOrder(t, 7)
	r := gin.New()
	r.POST("/webhook", withContext(nil, f.handler.Webhook)...)

	payment := razorpay.Payment{
		ID:       "pay_h1",
		Amount:   100000,
		Currency: "INR",
		Status:   razorpay.PaymentStatusCaptured,
		OrderID:  order.RazorpayOrderID,
		Captured: true,
		Notes:    razorpay.Notes{"order_id": strconv.FormatUint(uint64(order.ID), 10)},
	}
	body, sig := signedWebhook(t, "payment.captured", payment)

	w := serve(r, http.MethodPost, "/webhook", body, map[string]string{razorpay.SignatureHeader: "bad"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature want 401 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"requestId":"req-handler"`) {
		t.Fatalf("401 body should carry requestId: %s", w.Body.String())
	}

	w = serve(r, http.MethodPost, "/webhook", body, map[string]string{razorpay.SignatureHeader: sig})
	if w.Code != http.StatusOK {
		t.Fatalf("signed webhook want 200 got %d", w.Code)
	}
	var resp struct {
		Received bool   `json:"received"`
		Event    string `json:"event"`
		Action   string `json:"action"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if !resp.Received || resp.Event != "payment.captured" || resp.Action != service.WebhookActionCaptured {
		t.Fatalf("unexpected webhook response: %+v", resp)
	}

	unknown, unknownSig := signedWebhook(t, "payment.authorized", payment)
	w = serve(r, http.MethodPost, "/webhook", unknown, map[string]string{razorpay.SignatureHeader: unknownSig})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"received":true`) {
		t.Fatalf("unsupported event should be acknowledged, got %d %s", w.Code, w.Body.String())
	}

	garbled := []byte(`{"event":"payment.captured","payload":{"payment":"not-an-object"}}`)
	w = serve(r, http.MethodPost, "/webhook", garbled, map[string]string{razorpay.SignatureHeader: razorpay.ComputeSignature(handlerWebhookSecret, garbled)})
	if w.Code != http.StatusOK {
		t.Fatalf("malformed signed payload want 200 got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), `"error"`) {
		t.Fatalf("internal errors must not be echoed to the gateway: %s", w.Body.String())
	}

	reloaded, err := f.orders.GetByID(order.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.PaymentStatus != constants.PaymentStatusPaid {
		t.Fatalf("order should be paid, got %s", reloaded.PaymentStatus)
	}
}

func TestVerifyPaymentStatusCodes(t *testing.T) {
	f := setupHandlerFixture(t)
	order := f.createPendingOrder(t, 7)
	f.gateway.payments[order.RazorpayOrderID] = []razorpay.Payment{{
		ID:               "pay_failed",
		Amount:           100000,
		Currency:         "INR",
		Status:           "failed",
		OrderID:          order.RazorpayOrderID,
		ErrorCode:        "BAD_REQUEST_ERROR",
		ErrorDescription: "card declined",
	}}

	asUser := func(id uint) *gin.Engine {
		r := gin.New()
		r.POST("/verify-payment", withContext(map[string]interface{}{handlershared.ContextUserID: id}, f.handler.VerifyPayment)...)
		return r
	}
	body := []byte(fmt.Sprintf(`{"orderId":%d}`, order.ID))

	if w := serve(asUser(7), http.MethodPost, "/verify-payment", []byte(`{}`), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing order id want 400 got %d", w.Code)
	}
	if w := serve(asUser(8), http.MethodPost, "/verify-payment", body, nil); w.Code != http.StatusForbidden {
		t.Fatalf("other shopper want 403 got %d", w.Code)
	}
	if w := serve(asUser(7), http.MethodPost, "/verify-payment", []byte(`{"orderId":999999}`), nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown order want 404 got %d", w.Code)
	}

	w := serve(asUser(7), http.MethodPost, "/verify-payment", body, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("no capture want 404 got %d %s", w.Code, w.Body.String())
	}
	var diag struct {
		Payments       []service.GatewayPaymentSummary `json:"payments"`
		Recommendation string                          `json:"recommendation"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &diag); err != nil {
		t.Fatalf("unmarshal diagnostics failed: %v", err)
	}
	if len(diag.Payments) != 1 || diag.Payments[0].ID != "pay_failed" || diag.Recommendation == "" {
		t.Fatalf("unexpected diagnostics: %+v", diag)
	}

	f.gateway.mu.Lock()
	f.gateway.payments[order.RazorpayOrderID] = append(f.gateway.payments[order.RazorpayOrderID], razorpay.Payment{
		ID:       "pay_ok",
		Amount:   100000,
		Currency: "INR",
		Status:   razorpay.PaymentStatusCaptured,
		OrderID:  order.RazorpayOrderID,
		Captured: true,
	})
	f.gateway.mu.Unlock()

	f.gateway.mu.Lock()
	f.gateway.down = true
	f.gateway.mu.Unlock()
	w = serve(asUser(7), http.MethodPost, "/verify-payment", body, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("gateway outage want 500 got %d %s", w.Code, w.Body.String())
	}
	f.gateway.mu.Lock()
	f.gateway.down = false
	f.gateway.mu.Unlock()

	admin := gin.New()
	admin.POST("/verify-payment", withContext(map[string]interface{}{handlershared.ContextAdminID: uint(1)}, f.handler.VerifyPayment)...)
	w = serve(admin, http.MethodPost, "/verify-payment", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin verify want 200 got %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"applied":true`) {
		t.Fatalf("expected capture to be applied: %s", w.Body.String())
	}
}

func TestStockAndCartValidation(t *testing.T) {
	f := setupHandlerFixture(t)
	product := f.createProduct(t, "kurta", 10, models.SizeStock{"M": 2})

	r := gin.New()
	r.GET("/products/:id/stock", withContext(nil, f.handler.GetProductStock)...)
	r.POST("/cart/validate", withContext(nil, f.handler.ValidateCart)...)
	r.POST("/cart/items", withContext(map[string]interface{}{handlershared.ContextUserID: uint(5)}, f.handler.UpsertCartItem)...)

	w := serve(r, http.MethodGet, fmt.Sprintf("/products/%d/stock?size=M", product.ID), nil, nil)
	if !strings.Contains(w.Body.String(), `"available":2`) {
		t.Fatalf("size stock want 2: %s", w.Body.String())
	}
	w = serve(r, http.MethodGet, fmt.Sprintf("/products/%d/stock?size=XL", product.ID), nil, nil)
	if !strings.Contains(w.Body.String(), `"available":0`) {
		t.Fatalf("missing size should resolve to 0: %s", w.Body.String())
	}

	body := []byte(fmt.Sprintf(`{"items":[{"product_id":%d,"size":"M","quantity":3}]}`, product.ID))
	w = serve(r, http.MethodPost, "/cart/validate", body, nil)
	var validate struct {
		Data struct {
			Valid  bool                    `json:"valid"`
			Issues []service.StockShortage `json:"issues"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &validate); err != nil {
		t.Fatalf("unmarshal validate failed: %v", err)
	}
	if validate.Data.Valid || len(validate.Data.Issues) != 1 || validate.Data.Issues[0].Available != 2 {
		t.Fatalf("unexpected validation: %s", w.Body.String())
	}

	w = serve(r, http.MethodPost, "/cart/items", []byte(fmt.Sprintf(`{"product_id":%d,"size":"M","quantity":3}`, product.ID)), nil)
	var upsert struct {
		StatusCode int `json:"status_code"`
		Data       struct {
			Available int    `json:"available"`
			Message   string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &upsert); err != nil {
		t.Fatalf("unmarshal upsert failed: %v", err)
	}
	if upsert.StatusCode != 400 || upsert.Data.Available != 2 || upsert.Data.Message != "Only 2 in stock" {
		t.Fatalf("unexpected upsert rejection: %s", w.Body.String())
	}
}
