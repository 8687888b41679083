package models

import (
	"time"

	"gorm.io/gorm"
)

// Coupon 优惠券
// 无启用规则时按 DiscountType/DiscountValue 对整单小计生效，有规则时忽略简单折扣字段
type Coupon struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                             // 主键
	Code              string         `gorm:"uniqueIndex;not null" json:"code"`                                 // 优惠码（大写存储）
	Description       string         `gorm:"type:text" json:"description"`                                     // 描述
	DiscountType      string         `gorm:"not null;default:'percentage'" json:"discount_type"`               // 简单折扣类型（percentage/fixed）
	DiscountValue     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"discount_value"`      // 简单折扣数值
	MinPurchaseAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"min_purchase_amount"` // 使用门槛（0 表示不限制）
	ValidFrom         *time.Time     `gorm:"index" json:"valid_from"`                                          // 生效时间（含）
	ValidUntil        *time.Time     `gorm:"index" json:"valid_until"`                                         // 失效时间（不含）
	IsActive          bool           `gorm:"not null" json:"is_active"`                                        // 是否启用
	UsedCount         int            `gorm:"not null;default:0" json:"used_count"`                             // 已使用次数
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                                          // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                   // 软删除时间

	Rules []CouponRule `gorm:"foreignKey:CouponID" json:"rules"` // 规则（按优先级升序）
}

// TableName 指定表名
func (Coupon) TableName() string {
	return "coupons"
}

// ActiveRules 返回启用的规则，保持已有顺序
func (c *Coupon) ActiveRules() []CouponRule {
	result := make([]CouponRule, 0, len(c.Rules))
	for _, rule := range c.Rules {
		if rule.IsActive {
			result = append(result, rule)
		}
	}
	return result
}

// CouponRule 优惠券规则（来源条件 + 权益）
type CouponRule struct {
	ID                       uint      `gorm:"primarykey" json:"id"`                                       // 主键
	CouponID                 uint      `gorm:"index;not null" json:"coupon_id"`                            // 优惠券ID
	RulePriority             int       `gorm:"not null;default:0;index" json:"rule_priority"`              // 优先级（越小越先评估）
	IsActive                 bool      `gorm:"not null" json:"is_active"`                                  // 是否启用
	SourceType               string    `gorm:"type:varchar(32);not null;default:'any'" json:"source_type"` // 来源类型
	SourceCategoryID         *uint     `gorm:"index" json:"source_category_id"`                            // 来源分类ID
	SourceNewArrivalRequired bool      `gorm:"not null;default:false" json:"source_new_arrival_required"`  // 是否要求新品
	SourceMinQuantity        int       `gorm:"not null;default:1" json:"source_min_quantity"`              // 最少匹配件数
	SourceMinAmount          *Money    `gorm:"type:decimal(20,2)" json:"source_min_amount"`                // 最少匹配金额
	BenefitType              string    `gorm:"type:varchar(32);not null" json:"benefit_type"`              // 权益类型
	FreeQuantity             *int      `json:"free_quantity"`                                              // 赠送件数
	FreeItemSelection        *string   `gorm:"type:varchar(32)" json:"free_item_selection"`                // 赠品挑选策略
	FreeDiscountPercentage   *Money    `gorm:"type:decimal(6,2)" json:"free_discount_percentage"`          // 赠品折扣百分比（100 为全免）
	DiscountAmount           *Money    `gorm:"type:decimal(20,2)" json:"discount_amount"`                  // 立减金额
	DiscountPercentage       *Money    `gorm:"type:decimal(6,2)" json:"discount_percentage"`               // 折扣百分比
	BundleFixedPrice         *Money    `gorm:"type:decimal(20,2)" json:"bundle_fixed_price"`               // 组合一口价
	CreatedAt                time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt                time.Time `json:"updated_at"`                                                 // 更新时间
}

// TableName 指定表名
func (CouponRule) TableName() string {
	return "coupon_rules"
}
