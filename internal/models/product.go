package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SizeStock 按尺码的库存
type SizeStock map[string]int

// ColorSizeStock 按颜色+尺码的库存
type ColorSizeStock map[string]map[string]int

// Product 商品表
type Product struct {
	ID               uint                               `gorm:"primarykey" json:"id"`                                      // 主键
	CategoryID       uint                               `gorm:"index;not null" json:"category_id"`                         // 分类ID
	Slug             string                             `gorm:"uniqueIndex;not null" json:"slug"`                          // 唯一标识
	Name             string                             `gorm:"not null" json:"name"`                                      // 商品名称
	SKU              string                             `gorm:"index" json:"sku"`                                          // 货号
	PriceAmount      Money                              `gorm:"type:decimal(20,2);not null;default:0" json:"price_amount"` // 单价
	Images           StringArray                        `gorm:"type:json" json:"images"`                                   // 图片
	Colors           StringArray                        `gorm:"type:json" json:"colors"`                                   // 可选颜色
	Sizes            StringArray                        `gorm:"type:json" json:"sizes"`                                    // 可选尺码
	IsNewArrival     bool                               `gorm:"not null;default:false;index" json:"is_new_arrival"`        // 是否新品
	IsActive         bool                               `gorm:"not null;index" json:"is_active"`                           // 是否上架
	Stock            int                                `gorm:"not null;default:0" json:"stock"`                           // 总库存（无尺码时使用）
	StockBySize      datatypes.JSONType[SizeStock]      `gorm:"type:json" json:"stock_by_size"`                            // 尺码库存
	StockByColorSize datatypes.JSONType[ColorSizeStock] `gorm:"type:json" json:"stock_by_color_size"`                      // 颜色尺码库存
	CreatedAt        time.Time                          `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt        time.Time                          `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt        gorm.DeletedAt                     `gorm:"index" json:"-"`                                            // 软删除时间

	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"` // 分类
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// SizeStockMap 返回尺码库存（可能为 nil）
func (p *Product) SizeStockMap() SizeStock {
	return p.StockBySize.Data()
}

// ColorSizeStockMap 返回颜色尺码库存（可能为 nil）
func (p *Product) ColorSizeStockMap() ColorSizeStock {
	return p.StockByColorSize.Data()
}

// SetSizeStock 写回尺码库存
func (p *Product) SetSizeStock(stock SizeStock) {
	p.StockBySize = datatypes.NewJSONType(stock)
}

// SetColorSizeStock 写回颜色尺码库存
func (p *Product) SetColorSizeStock(stock ColorSizeStock) {
	p.StockByColorSize = datatypes.NewJSONType(stock)
}
