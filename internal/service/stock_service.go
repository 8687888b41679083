package service

import (
	"strings"

	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"

	"gorm.io/gorm"
)

// CartLine 购物车行（商品 + 规格 + 数量）
type CartLine struct {
	ProductID uint   `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

// StockShortage 库存不足明细
type StockShortage struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Size        string `json:"size"`
	Color       string `json:"color,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// StockService 库存服务
type StockService struct {
	productRepo repository.ProductRepository
}

// NewStockService 创建库存服务
func NewStockService(productRepo repository.ProductRepository) *StockService {
	return &StockService{productRepo: productRepo}
}

// Available 查询单个商品规格的可用库存
func (s *StockService) Available(productID uint, size, color string) (int, *models.Product, error) {
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return 0, nil, err
	}
	if product == nil {
		return 0, nil, ErrProductNotFound
	}
	if !product.IsActive {
		return 0, product, nil
	}
	return AvailableStock(product, size, color), product, nil
}

type variantKey struct {
	productID uint
	size      string
	color     string
}

// ValidateCartStock 一次读取校验整车库存，返回所有不足的行
// 同一规格的多行合并计算，下架或不存在的商品可用量为 0
func (s *StockService) ValidateCartStock(lines []CartLine) ([]StockShortage, error) {
	if len(lines) == 0 {
		return []StockShortage{}, nil
	}
	ids := make([]uint, 0, len(lines))
	seen := make(map[uint]struct{}, len(lines))
	requested := make(map[variantKey]int, len(lines))
	order := make([]variantKey, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == 0 || line.Quantity <= 0 {
			return nil, ErrCartItemInvalid
		}
		key := variantKey{
			productID: line.ProductID,
			size:      strings.TrimSpace(line.Size),
			color:     strings.TrimSpace(line.Color),
		}
		if _, ok := requested[key]; !ok {
			order = append(order, key)
		}
		requested[key] += line.Quantity
		if _, ok := seen[line.ProductID]; !ok {
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}

	products, err := s.productRepo.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	shortages := make([]StockShortage, 0)
	for _, key := range order {
		product := byID[key.productID]
		available := 0
		name := ""
		if product != nil {
			name = product.Name
			if product.IsActive {
				available = AvailableStock(product, key.size, key.color)
			}
		}
		if requested[key] > available {
			shortages = append(shortages, StockShortage{
				ProductID:   key.productID,
				ProductName: name,
				Size:        key.size,
				Color:       key.color,
				Requested:   requested[key],
				Available:   available,
			})
		}
	}
	return shortages, nil
}

// Deduct 在事务内锁定商品并扣减库存
func (s *StockService) Deduct(tx *gorm.DB, productID uint, size, color string, quantity int) error {
	return s.adjustLocked(tx, productID, size, color, -quantity)
}

// Restore 在事务内锁定商品并回补库存
func (s *StockService) Restore(tx *gorm.DB, productID uint, size, color string, quantity int) error {
	return s.adjustLocked(tx, productID, size, color, quantity)
}

// RestoreInOwnTx 在独立事务内回补单个订单项库存
func (s *StockService) RestoreInOwnTx(productID uint, size, color string, quantity int) error {
	return s.productRepo.Transaction(func(tx *gorm.DB) error {
		return s.Restore(tx, productID, size, color, quantity)
	})
}

func (s *StockService) adjustLocked(tx *gorm.DB, productID uint, size, color string, delta int) error {
	repo := s.productRepo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	product, err := repo.GetByIDForUpdate(productID)
	if err != nil {
		return err
	}
	if product == nil {
		return ErrProductNotFound
	}
	if err := adjustStock(product, size, color, delta); err != nil {
		return err
	}
	return repo.SaveStock(product)
}
