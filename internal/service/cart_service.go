package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// CartItemDetail 购物车项详情（用于响应）
type CartItemDetail struct {
	ProductID  uint            `json:"product_id"`
	Size       string          `json:"size"`
	Color      string          `json:"color"`
	Quantity   int             `json:"quantity"`
	UnitPrice  models.Money    `json:"unit_price"`
	LineTotal  models.Money    `json:"line_total"`
	Available  int             `json:"available"`
	StockIssue bool            `json:"stock_issue"`
	Product    *models.Product `json:"product,omitempty"`
}

// CartView 购物车视图
type CartView struct {
	Items    []CartItemDetail `json:"items"`
	Subtotal models.Money     `json:"subtotal"`
	Currency string           `json:"currency"`
	Issues   []StockShortage  `json:"issues"`
}

// CartQuantityError 数量超过可用库存
type CartQuantityError struct {
	Available int
}

func (e *CartQuantityError) Error() string {
	return fmt.Sprintf("%s: only %d in stock", ErrInsufficientStock.Error(), e.Available)
}

// Unwrap 使 errors.Is(err, ErrInsufficientStock) 成立
func (e *CartQuantityError) Unwrap() error {
	return ErrInsufficientStock
}

// UpsertCartItemInput 购物车更新输入
type UpsertCartItemInput struct {
	UserID    uint
	ProductID uint
	Size      string
	Color     string
	Quantity  int
	Increment bool // true 时在现有数量上累加
}

// CartService 购物车服务
type CartService struct {
	cartRepo repository.CartRepository
	stock    *StockService
	currency string
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, stock *StockService, currency string) *CartService {
	if strings.TrimSpace(currency) == "" {
		currency = constants.DefaultCurrency
	}
	return &CartService{cartRepo: cartRepo, stock: stock, currency: currency}
}

// Get 获取用户购物车，并标出库存不足的行
func (s *CartService) Get(userID uint) (*CartView, error) {
	if userID == 0 {
		return nil, ErrCartItemInvalid
	}
	rows, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	view := &CartView{
		Items:    make([]CartItemDetail, 0, len(rows)),
		Currency: s.currency,
		Issues:   []StockShortage{},
	}
	lines := make([]CartLine, 0, len(rows))
	subtotal := decimal.Zero
	for _, row := range rows {
		detail := CartItemDetail{
			ProductID: row.ProductID,
			Size:      row.Size,
			Color:     row.Color,
			Quantity:  row.Quantity,
			Product:   row.Product,
		}
		if row.Product != nil {
			unit := row.Product.PriceAmount.Decimal
			lineTotal := unit.Mul(decimal.NewFromInt(int64(row.Quantity)))
			detail.UnitPrice = models.NewMoneyFromDecimal(unit)
			detail.LineTotal = models.NewMoneyFromDecimal(lineTotal)
			if row.Product.IsActive {
				detail.Available = AvailableStock(row.Product, row.Size, row.Color)
			}
			subtotal = subtotal.Add(lineTotal)
		}
		detail.StockIssue = detail.Quantity > detail.Available
		view.Items = append(view.Items, detail)
		lines = append(lines, CartLine{ProductID: row.ProductID, Size: row.Size, Color: row.Color, Quantity: row.Quantity})
	}
	view.Subtotal = models.NewMoneyFromDecimal(subtotal)
	if len(lines) > 0 {
		issues, err := s.stock.ValidateCartStock(lines)
		if err != nil {
			return nil, err
		}
		view.Issues = issues
	}
	return view, nil
}

// Upsert 添加或更新购物车项，超出可用库存时拒绝
func (s *CartService) Upsert(input UpsertCartItemInput) (*CartView, error) {
	if input.UserID == 0 || input.ProductID == 0 || input.Quantity <= 0 {
		return nil, ErrCartItemInvalid
	}
	size := strings.TrimSpace(input.Size)
	color := strings.TrimSpace(input.Color)

	available, product, err := s.stock.Available(input.ProductID, size, color)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, ErrProductNotAvailable
	}

	quantity := input.Quantity
	if input.Increment {
		existing, err := s.cartRepo.GetLine(input.UserID, input.ProductID, size, color)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			quantity += existing.Quantity
		}
	}
	if quantity > available {
		return nil, &CartQuantityError{Available: available}
	}

	if err := s.cartRepo.Upsert(&models.CartItem{
		UserID:    input.UserID,
		ProductID: input.ProductID,
		Size:      size,
		Color:     color,
		Quantity:  quantity,
		UpdatedAt: time.Now(),
	}); err != nil {
		return nil, err
	}
	return s.Get(input.UserID)
}

// Remove 删除购物车项
func (s *CartService) Remove(userID, productID uint, size, color string) (*CartView, error) {
	if userID == 0 || productID == 0 {
		return nil, ErrCartItemInvalid
	}
	if err := s.cartRepo.DeleteLine(userID, productID, strings.TrimSpace(size), strings.TrimSpace(color)); err != nil {
		return nil, err
	}
	return s.Get(userID)
}
