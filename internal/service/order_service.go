package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/payment/razorpay"
	"github.com/threadline/storefront/internal/queue"
	"github.com/threadline/storefront/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderPricing 订单计价配置
type OrderPricing struct {
	Currency              string
	TaxRatePercent        decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// OrderServiceOptions 订单服务依赖
type OrderServiceOptions struct {
	OrderRepo       repository.OrderRepository
	ProductRepo     repository.ProductRepository
	CartRepo        repository.CartRepository
	CouponRepo      repository.CouponRepository
	CouponUsageRepo repository.CouponUsageRepository
	PaymentLogRepo  repository.PaymentLogRepository
	StockService    *StockService
	CouponService   *CouponService
	Gateway         PaymentGateway
	QueueClient     *queue.Client
	EmailService    *EmailService
	Pricing         OrderPricing
	GatewayTimeout  time.Duration
}

// OrderService 订单服务
type OrderService struct {
	orderRepo       repository.OrderRepository
	productRepo     repository.ProductRepository
	cartRepo        repository.CartRepository
	couponRepo      repository.CouponRepository
	couponUsageRepo repository.CouponUsageRepository
	paymentLogRepo  repository.PaymentLogRepository
	stock           *StockService
	coupons         *CouponService
	gateway         PaymentGateway
	queueClient     *queue.Client
	emailService    *EmailService
	releaser        *orderReleaser
	pricing         OrderPricing
	gatewayTimeout  time.Duration
}

// NewOrderService 创建订单服务
func NewOrderService(opts OrderServiceOptions) *OrderService {
	pricing := opts.Pricing
	pricing.Currency = strings.ToUpper(strings.TrimSpace(pricing.Currency))
	if pricing.Currency == "" {
		pricing.Currency = constants.DefaultCurrency
	}
	gatewayTimeout := opts.GatewayTimeout
	if gatewayTimeout <= 0 {
		gatewayTimeout = defaultGatewayTimeout
	}
	return &OrderService{
		orderRepo:       opts.OrderRepo,
		productRepo:     opts.ProductRepo,
		cartRepo:        opts.CartRepo,
		couponRepo:      opts.CouponRepo,
		couponUsageRepo: opts.CouponUsageRepo,
		paymentLogRepo:  opts.PaymentLogRepo,
		stock:           opts.StockService,
		coupons:         opts.CouponService,
		gateway:         opts.Gateway,
		queueClient:     opts.QueueClient,
		emailService:    opts.EmailService,
		releaser: &orderReleaser{
			stock:           opts.StockService,
			couponRepo:      opts.CouponRepo,
			couponUsageRepo: opts.CouponUsageRepo,
		},
		pricing:        pricing,
		gatewayTimeout: gatewayTimeout,
	}
}

// CheckoutInput 下单输入
type CheckoutInput struct {
	UserID          uint
	Email           string
	Lines           []CartLine // 为空时使用用户购物车
	CouponCode      string
	PaymentMethod   string
	ShippingAddress models.ShippingAddress
	RequestID       string
}

// GatewayCheckout 前端拉起网关支付所需信息
type GatewayCheckout struct {
	KeyID           string `json:"key_id"`
	RazorpayOrderID string `json:"razorpay_order_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// CheckoutResult 下单结果
type CheckoutResult struct {
	Order   *models.Order     `json:"order"`
	Coupon  *CouponEvaluation `json:"coupon,omitempty"`
	Gateway *GatewayCheckout  `json:"gateway,omitempty"`
}

type pricedLine struct {
	line    CartLine
	product *models.Product
}

// Checkout 校验库存与优惠券，扣减库存并创建订单；在线支付同时创建网关订单
func (s *OrderService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	method := strings.ToLower(strings.TrimSpace(input.PaymentMethod))
	if method == "" {
		method = constants.PaymentMethodRazorpay
	}
	if method != constants.PaymentMethodRazorpay && method != constants.PaymentMethodCOD {
		return nil, ErrPaymentMethodInvalid
	}
	if method == constants.PaymentMethodRazorpay && (s.gateway == nil || !s.gateway.Enabled()) {
		return nil, ErrPaymentGatewayUnavailable
	}
	address, err := normalizeShippingAddress(input.ShippingAddress)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(input.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
	}

	fromCart := len(input.Lines) == 0
	lines := input.Lines
	if fromCart {
		lines, err = s.cartLines(input.UserID)
		if err != nil {
			return nil, err
		}
	}
	lines, err = mergeCartLines(lines)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrCartEmpty
	}

	priced, err := s.priceLines(lines)
	if err != nil {
		return nil, err
	}
	shortages, err := s.stock.ValidateCartStock(lines)
	if err != nil {
		return nil, err
	}
	if len(shortages) > 0 {
		return nil, &StockShortageError{Shortages: shortages}
	}

	items := make([]models.OrderItem, 0, len(priced))
	subtotal := decimal.Zero
	for _, p := range priced {
		unit := p.product.PriceAmount.Decimal
		lineTotal := unit.Mul(decimal.NewFromInt(int64(p.line.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		image := ""
		if len(p.product.Images) > 0 {
			image = p.product.Images[0]
		}
		items = append(items, models.OrderItem{
			ProductID:     p.product.ID,
			Name:          p.product.Name,
			Image:         image,
			SKU:           p.product.SKU,
			SelectedColor: p.line.Color,
			SelectedSize:  p.line.Size,
			Quantity:      p.line.Quantity,
			UnitPrice:     models.NewMoneyFromDecimal(unit),
			TotalPrice:    models.NewMoneyFromDecimal(lineTotal),
		})
	}

	var evaluation *CouponEvaluation
	discount := decimal.Zero
	if code := strings.TrimSpace(input.CouponCode); code != "" {
		evaluation, err = s.coupons.Evaluate(ctx, CouponEvaluationInput{
			Code:     code,
			Lines:    buildCouponLines(priced),
			Subtotal: &subtotal,
		})
		if err != nil {
			return nil, err
		}
		discount = evaluation.DiscountAmount.Decimal
	}

	amounts := s.computeTotals(subtotal, discount)
	now := time.Now()
	order := &models.Order{
		OrderNo:         generateOrderNo(),
		UserID:          input.UserID,
		Email:           email,
		ShippingAddress: datatypes.NewJSONType(address),
		Currency:        s.pricing.Currency,
		SubtotalAmount:  models.NewMoneyFromDecimal(subtotal),
		TaxAmount:       models.NewMoneyFromDecimal(amounts.tax),
		ShippingAmount:  models.NewMoneyFromDecimal(amounts.shipping),
		DiscountAmount:  models.NewMoneyFromDecimal(discount),
		TotalAmount:     models.NewMoneyFromDecimal(amounts.total),
		Status:          constants.OrderStatusPending,
		PaymentStatus:   constants.PaymentStatusPending,
		PaymentMethod:   method,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if evaluation != nil {
		order.CouponCode = evaluation.Code
	}
	if method == constants.PaymentMethodCOD {
		order.Status = constants.OrderStatusConfirmed
	}

	err = s.productRepo.Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			if err := s.stock.Deduct(tx, item.ProductID, item.SelectedSize, item.SelectedColor, item.Quantity); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					return &StockShortageError{Shortages: []StockShortage{{
						ProductID:   item.ProductID,
						ProductName: item.Name,
						Size:        item.SelectedSize,
						Color:       item.SelectedColor,
						Requested:   item.Quantity,
					}}}
				}
				return err
			}
		}
		if err := s.orderRepo.WithTx(tx).Create(order, items); err != nil {
			return err
		}
		if evaluation != nil {
			usage := &models.CouponUsage{
				CouponID:       evaluation.CouponID,
				UserID:         input.UserID,
				OrderID:        order.ID,
				RuleID:         evaluation.RuleID,
				DiscountAmount: evaluation.DiscountAmount,
			}
			if err := s.couponUsageRepo.WithTx(tx).Create(usage); err != nil {
				return err
			}
			if err := s.couponRepo.WithTx(tx).IncrementUsedCount(evaluation.CouponID, 1); err != nil {
				return err
			}
		}
		if fromCart && s.cartRepo != nil {
			return s.cartRepo.WithTx(tx).ClearByUser(input.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Items = items

	log := logger.SW("request_id", input.RequestID, "order_id", order.ID, "order_no", order.OrderNo)
	log.Infow("order_created",
		"payment_method", method,
		"total_amount", order.TotalAmount.String(),
		"coupon_code", order.CouponCode,
	)

	result := &CheckoutResult{Order: order, Coupon: evaluation}
	if method != constants.PaymentMethodRazorpay {
		return result, nil
	}

	gatewayOrder, err := s.createGatewayOrder(ctx, order)
	if err != nil {
		log.Errorw("order_gateway_create_failed", "error", err)
		s.cancelAfterGatewayFailure(order, input.RequestID)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayUnavailable, err)
	}
	order.RazorpayOrderID = gatewayOrder.ID
	if err := s.orderRepo.SetRazorpayOrderID(order.ID, gatewayOrder.ID); err != nil {
		log.Errorw("order_gateway_ref_save_failed", "razorpay_order_id", gatewayOrder.ID, "error", err)
		s.cancelAfterGatewayFailure(order, input.RequestID)
		return nil, err
	}
	orderID := order.ID
	if err := s.paymentLogRepo.Create(&models.PaymentLog{
		OrderID:         &orderID,
		RazorpayOrderID: gatewayOrder.ID,
		EventType:       constants.PaymentEventOrderCreated,
		Status:          gatewayOrder.Status,
		Amount:          order.TotalAmount,
		Currency:        order.Currency,
		Verified:        true,
		Source:          constants.PaymentLogSourceCheckout,
		RequestID:       input.RequestID,
	}); err != nil {
		log.Warnw("order_created_payment_log_failed", "error", err)
	}

	result.Gateway = &GatewayCheckout{
		KeyID:           s.gateway.KeyID(),
		RazorpayOrderID: gatewayOrder.ID,
		Amount:          gatewayOrder.Amount,
		Currency:        gatewayOrder.Currency,
	}
	return result, nil
}

func (s *OrderService) createGatewayOrder(ctx context.Context, order *models.Order) (*razorpay.Order, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	return s.gateway.CreateOrder(callCtx, razorpay.CreateOrderInput{
		Amount:   order.TotalAmount.Decimal,
		Currency: order.Currency,
		Receipt:  order.OrderNo,
		Notes: map[string]string{
			"order_id": strconv.FormatUint(uint64(order.ID), 10),
			"order_no": order.OrderNo,
		},
	})
}

// cancelAfterGatewayFailure 网关下单失败时取消订单并释放库存
func (s *OrderService) cancelAfterGatewayFailure(order *models.Order, requestID string) {
	affected, err := s.orderRepo.CancelPending(order.ID, constants.CancelReasonGatewayFailed, time.Now())
	if err != nil || affected == 0 {
		logger.Errorw("order_gateway_failure_cancel_failed",
			"request_id", requestID,
			"order_id", order.ID,
			"affected", affected,
			"error", err,
		)
		return
	}
	outcome := s.releaser.release(order)
	logger.Warnw("order_cancelled_gateway_failure",
		"request_id", requestID,
		"order_id", order.ID,
		"restored", outcome.Restored,
		"failed", outcome.Failed,
	)
}

type orderTotals struct {
	tax      decimal.Decimal
	shipping decimal.Decimal
	total    decimal.Decimal
}

// computeTotals 计算税费、运费与实付金额；税费按折后金额计
func (s *OrderService) computeTotals(subtotal, discount decimal.Decimal) orderTotals {
	taxable := models.FloorZero(subtotal.Sub(discount))
	shipping := models.FloorZero(s.pricing.ShippingFee)
	if s.pricing.FreeShippingThreshold.GreaterThan(decimal.Zero) && taxable.GreaterThanOrEqual(s.pricing.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := decimal.Zero
	if s.pricing.TaxRatePercent.GreaterThan(decimal.Zero) {
		tax = taxable.Mul(s.pricing.TaxRatePercent).Div(hundred).Round(2)
	}
	return orderTotals{
		tax:      tax,
		shipping: shipping.Round(2),
		total:    taxable.Add(tax).Add(shipping).Round(2),
	}
}

func (s *OrderService) cartLines(userID uint) ([]CartLine, error) {
	if s.cartRepo == nil {
		return nil, ErrCartEmpty
	}
	rows, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	lines := make([]CartLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, CartLine{
			ProductID: row.ProductID,
			Size:      row.Size,
			Color:     row.Color,
			Quantity:  row.Quantity,
		})
	}
	return lines, nil
}

// priceLines 加载商品并校验上架状态
func (s *OrderService) priceLines(lines []CartLine) ([]pricedLine, error) {
	ids := make([]uint, 0, len(lines))
	seen := make(map[uint]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	priced := make([]pricedLine, 0, len(lines))
	for _, line := range lines {
		product := byID[line.ProductID]
		if product == nil {
			return nil, ErrProductNotFound
		}
		if !product.IsActive {
			return nil, ErrProductNotAvailable
		}
		priced = append(priced, pricedLine{line: line, product: product})
	}
	return priced, nil
}

// buildCouponLines 将已定价的购物车行转换为优惠计算行，附带可用库存
func buildCouponLines(priced []pricedLine) []CouponLine {
	lines := make([]CouponLine, 0, len(priced))
	for _, p := range priced {
		available := AvailableStock(p.product, p.line.Size, p.line.Color)
		lines = append(lines, CouponLine{
			ProductID:      p.product.ID,
			CategoryID:     p.product.CategoryID,
			IsNewArrival:   p.product.IsNewArrival,
			Size:           p.line.Size,
			Color:          p.line.Color,
			UnitPrice:      p.product.PriceAmount.Decimal,
			Quantity:       p.line.Quantity,
			AvailableStock: &available,
		})
	}
	return lines
}

// EvaluateCoupon 按服务端商品价格预览优惠券，不落库
func (s *OrderService) EvaluateCoupon(ctx context.Context, code string, lines []CartLine) (*CouponEvaluation, error) {
	lines, err := mergeCartLines(lines)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrCartEmpty
	}
	priced, err := s.priceLines(lines)
	if err != nil {
		return nil, err
	}
	return s.coupons.Evaluate(ctx, CouponEvaluationInput{
		Code:  code,
		Lines: buildCouponLines(priced),
	})
}

// mergeCartLines 合并相同规格的行
func mergeCartLines(lines []CartLine) ([]CartLine, error) {
	merged := make([]CartLine, 0, len(lines))
	index := make(map[variantKey]int, len(lines))
	for _, line := range lines {
		if line.ProductID == 0 || line.Quantity <= 0 {
			return nil, ErrCartItemInvalid
		}
		line.Size = strings.TrimSpace(line.Size)
		line.Color = strings.TrimSpace(line.Color)
		key := variantKey{productID: line.ProductID, size: line.Size, color: line.Color}
		if pos, ok := index[key]; ok {
			merged[pos].Quantity += line.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

func normalizeShippingAddress(address models.ShippingAddress) (models.ShippingAddress, error) {
	address.Name = strings.TrimSpace(address.Name)
	address.Phone = strings.TrimSpace(address.Phone)
	address.Line1 = strings.TrimSpace(address.Line1)
	address.Line2 = strings.TrimSpace(address.Line2)
	address.City = strings.TrimSpace(address.City)
	address.State = strings.TrimSpace(address.State)
	address.PostalCode = strings.TrimSpace(address.PostalCode)
	address.Country = strings.ToUpper(strings.TrimSpace(address.Country))
	if address.Country == "" {
		address.Country = "IN"
	}
	if address.Name == "" || address.Phone == "" || address.Line1 == "" || address.City == "" || address.PostalCode == "" {
		return address, ErrOrderAddressInvalid
	}
	return address, nil
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("SF%s%s", now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(n.String())
	}
	return b.String()
}
