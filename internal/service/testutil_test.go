package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/payment/razorpay"
	"github.com/threadline/storefront/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test"

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.Tables()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

// fakeGateway 内存网关
type fakeGateway struct {
	mu        sync.Mutex
	disabled  bool
	payments  map[string][]razorpay.Payment
	fetchErr  error
	createErr error
	created   []razorpay.CreateOrderInput
	fetches   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string][]razorpay.Payment{}}
}

func (g *fakeGateway) Enabled() bool { return !g.disabled }

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, input razorpay.CreateOrderInput) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, input)
	amount, err := razorpay.ToMinorUnits(input.Amount, input.Currency)
	if err != nil {
		return nil, err
	}
	return &razorpay.Order{
		ID:       fmt.Sprintf("order_fake_%d", len(g.created)),
		Entity:   "order",
		Amount:   amount,
		Currency: input.Currency,
		Receipt:  input.Receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) FetchOrderPayments(_ context.Context, gatewayOrderID string) ([]razorpay.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.payments[gatewayOrderID], nil
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, signature string) error {
	return razorpay.VerifySignature(testWebhookSecret, body, signature)
}

type reconciliationFixture struct {
	db             *gorm.DB
	gateway        *fakeGateway
	orderRepo      *repository.GormOrderRepository
	productRepo    *repository.GormProductRepository
	paymentLogRepo *repository.GormPaymentLogRepository
	couponRepo     *repository.GormCouponRepository
	usageRepo      *repository.GormCouponUsageRepository
	cartRepo       *repository.GormCartRepository
	stock          *StockService
	payments       *PaymentService
	now            time.Time
}

func newReconciliationFixture(t *testing.T) *reconciliationFixture {
	t.Helper()
	db := openServiceTestDB(t)
	f := &reconciliationFixture{
		db:             db,
		gateway:        newFakeGateway(),
		orderRepo:      repository.NewOrderRepository(db),
		productRepo:    repository.NewProductRepository(db),
		paymentLogRepo: repository.NewPaymentLogRepository(db),
		couponRepo:     repository.NewCouponRepository(db),
		usageRepo:      repository.NewCouponUsageRepository(db),
		cartRepo:       repository.NewCartRepository(db),
		now:            time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.stock = NewStockService(f.productRepo)
	f.payments = NewPaymentService(PaymentServiceOptions{
		OrderRepo:       f.orderRepo,
		PaymentLogRepo:  f.paymentLogRepo,
		CouponRepo:      f.couponRepo,
		CouponUsageRepo: f.usageRepo,
		StockService:    f.stock,
		Gateway:         f.gateway,
	})
	f.payments.now = func() time.Time { return f.now }
	return f
}

func (f *reconciliationFixture) orderService(pricing OrderPricing) *OrderService {
	return NewOrderService(OrderServiceOptions{
		OrderRepo:       f.orderRepo,
		ProductRepo:     f.productRepo,
		CartRepo:        f.cartRepo,
		CouponRepo:      f.couponRepo,
		CouponUsageRepo: f.usageRepo,
		PaymentLogRepo:  f.paymentLogRepo,
		StockService:    f.stock,
		CouponService:   NewCouponService(f.couponRepo),
		Gateway:         f.gateway,
		Pricing:         pricing,
	})
}

func (f *reconciliationFixture) createProduct(t *testing.T, product *models.Product) *models.Product {
	t.Helper()
	if product.Slug == "" {
		product.Slug = fmt.Sprintf("product-%d", time.Now().UnixNano())
	}
	if product.Name == "" {
		product.Name = product.Slug
	}
	product.IsActive = true
	if err := f.productRepo.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

// createPendingOrder 写入一笔在线支付待付款订单，createdAgo 为距 f.now 的时长
func (f *reconciliationFixture) createPendingOrder(t *testing.T, userID uint, createdAgo time.Duration, items ...models.OrderItem) *models.Order {
	t.Helper()
	createdAt := f.now.Add(-createdAgo)
	seq := time.Now().UnixNano()
	order := &models.Order{
		OrderNo:         fmt.Sprintf("SFTEST%d", seq),
		UserID:          userID,
		Email:           "shopper@example.com",
		ShippingAddress: datatypes.NewJSONType(models.ShippingAddress{Name: "Asha", City: "Pune"}),
		Currency:        "INR",
		SubtotalAmount:  models.NewMoneyFromInt(1000),
		TotalAmount:     models.NewMoneyFromInt(1000),
		Status:          constants.OrderStatusPending,
		PaymentStatus:   constants.PaymentStatusPending,
		PaymentMethod:   constants.PaymentMethodRazorpay,
		RazorpayOrderID: fmt.Sprintf("order_rzp_%d", seq),
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := f.orderRepo.Create(order, items); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func (f *reconciliationFixture) reloadOrder(t *testing.T, id uint) *models.Order {
	t.Helper()
	order, err := f.orderRepo.GetByID(id)
	if err != nil || order == nil {
		t.Fatalf("reload order %d failed: %v", id, err)
	}
	return order
}

func (f *reconciliationFixture) reloadProduct(t *testing.T, id uint) *models.Product {
	t.Helper()
	var product models.Product
	if err := f.db.Unscoped().First(&product, id).Error; err != nil {
		t.Fatalf("reload product %d failed: %v", id, err)
	}
	return &product
}

func (f *reconciliationFixture) paymentLogs(t *testing.T) []models.PaymentLog {
	t.Helper()
	var logs []models.PaymentLog
	if err := f.db.Order("id asc").Find(&logs).Error; err != nil {
		t.Fatalf("list payment logs failed: %v", err)
	}
	return logs
}

// webhookBody 构造网关 webhook 请求体与签名
func webhookBody(t *testing.T, event string, payment razorpay.Payment) ([]byte, string) {
	t.Helper()
	payload := map[string]interface{}{
		"entity":     "event",
		"account_id": "acc_test",
		"event":      event,
		"created_at": 1767000000,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{"entity": payment},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal webhook failed: %v", err)
	}
	return body, razorpay.ComputeSignature(testWebhookSecret, body)
}
