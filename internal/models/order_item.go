package models

import "time"

// OrderItem 订单项快照
type OrderItem struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                     // 主键
	OrderID       uint      `gorm:"index;not null" json:"order_id"`                           // 订单ID
	ProductID     uint      `gorm:"index;not null" json:"product_id"`                         // 商品ID
	Name          string    `gorm:"not null" json:"name"`                                     // 商品名称快照
	Image         string    `gorm:"type:text" json:"image"`                                   // 图片快照
	SKU           string    `json:"sku"`                                                      // 货号快照
	SelectedColor string    `gorm:"type:varchar(64)" json:"selected_color"`                   // 颜色
	SelectedSize  string    `gorm:"type:varchar(32)" json:"selected_size"`                    // 尺码
	Quantity      int       `gorm:"not null" json:"quantity"`                                 // 数量
	UnitPrice     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`  // 单价
	TotalPrice    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // 小计
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                  // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
