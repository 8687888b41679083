package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/cache"
	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CouponAdminService 优惠券管理服务
type CouponAdminService struct {
	db         *gorm.DB
	repo       *repository.GormCouponRepository
	categories repository.CategoryRepository
}

// NewCouponAdminService 创建优惠券管理服务
func NewCouponAdminService(db *gorm.DB, repo *repository.GormCouponRepository) *CouponAdminService {
	return &CouponAdminService{db: db, repo: repo}
}

// WithCategories 启用规则来源分类存在性校验
func (s *CouponAdminService) WithCategories(categories repository.CategoryRepository) *CouponAdminService {
	s.categories = categories
	return s
}

// CouponRuleInput 规则输入
type CouponRuleInput struct {
	RulePriority             int           `json:"rule_priority"`
	IsActive                 *bool         `json:"is_active"`
	SourceType               string        `json:"source_type"`
	SourceCategoryID         *uint         `json:"source_category_id"`
	SourceNewArrivalRequired bool          `json:"source_new_arrival_required"`
	SourceMinQuantity        int           `json:"source_min_quantity"`
	SourceMinAmount          *models.Money `json:"source_min_amount"`
	BenefitType              string        `json:"benefit_type"`
	FreeQuantity             *int          `json:"free_quantity"`
	FreeItemSelection        string        `json:"free_item_selection"`
	FreeDiscountPercentage   *models.Money `json:"free_discount_percentage"`
	DiscountAmount           *models.Money `json:"discount_amount"`
	DiscountPercentage       *models.Money `json:"discount_percentage"`
	BundleFixedPrice         *models.Money `json:"bundle_fixed_price"`
}

// CouponInput 创建/更新优惠券输入
type CouponInput struct {
	Code              string            `json:"code"`
	Description       string            `json:"description"`
	DiscountType      string            `json:"discount_type"`
	DiscountValue     models.Money      `json:"discount_value"`
	MinPurchaseAmount models.Money      `json:"min_purchase_amount"`
	ValidFrom         *time.Time        `json:"valid_from"`
	ValidUntil        *time.Time        `json:"valid_until"`
	IsActive          *bool             `json:"is_active"`
	Rules             []CouponRuleInput `json:"rules"`
}

// Get 获取优惠券
func (s *CouponAdminService) Get(id uint) (*models.Coupon, error) {
	coupon, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	return coupon, nil
}

// List 优惠券列表
func (s *CouponAdminService) List(filter repository.CouponListFilter) ([]models.Coupon, int64, error) {
	return s.repo.List(filter)
}

// Create 创建优惠券
func (s *CouponAdminService) Create(input CouponInput) (*models.Coupon, error) {
	coupon, err := buildCoupon(input, nil)
	if err != nil {
		return nil, err
	}
	if err := s.checkRuleCategories(coupon.Rules); err != nil {
		return nil, err
	}
	exist, err := s.repo.GetByCode(coupon.Code)
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, ErrCouponCodeExists
	}
	if err := s.repo.Create(coupon); err != nil {
		return nil, err
	}
	s.invalidate(coupon.Code)
	return coupon, nil
}

// Update 更新优惠券并整体替换规则
func (s *CouponAdminService) Update(id uint, input CouponInput) (*models.Coupon, error) {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrCouponNotFound
	}
	oldCode := existing.Code
	coupon, err := buildCoupon(input, existing)
	if err != nil {
		return nil, err
	}
	if err := s.checkRuleCategories(coupon.Rules); err != nil {
		return nil, err
	}
	if coupon.Code != oldCode {
		dup, err := s.repo.GetByCode(coupon.Code)
		if err != nil {
			return nil, err
		}
		if dup != nil && dup.ID != existing.ID {
			return nil, ErrCouponCodeExists
		}
	}
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Update(coupon)
	}); err != nil {
		return nil, err
	}
	s.invalidate(oldCode)
	s.invalidate(coupon.Code)
	return coupon, nil
}

// Delete 删除优惠券
func (s *CouponAdminService) Delete(id uint) error {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrCouponNotFound
	}
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Delete(id)
	}); err != nil {
		return err
	}
	s.invalidate(existing.Code)
	return nil
}

func (s *CouponAdminService) checkRuleCategories(rules []models.CouponRule) error {
	if s.categories == nil {
		return nil
	}
	ids := make([]uint, 0, len(rules))
	for _, rule := range rules {
		if rule.SourceCategoryID != nil {
			ids = append(ids, *rule.SourceCategoryID)
		}
	}
	missing, err := s.categories.MissingIDs(ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unknown source category %v", ErrCouponInvalid, missing)
	}
	return nil
}

func (s *CouponAdminService) invalidate(code string) {
	if err := cache.DelCoupon(context.Background(), code); err != nil {
		logger.Warnw("coupon_cache_invalidate_failed", "code", code, "error", err)
	}
}

func buildCoupon(input CouponInput, existing *models.Coupon) (*models.Coupon, error) {
	code := repository.NormalizeCouponCode(input.Code)
	if code == "" {
		return nil, ErrCouponInvalid
	}
	discountType := strings.ToLower(strings.TrimSpace(input.DiscountType))
	if discountType == "" {
		discountType = constants.CouponTypePercentage
	}
	if discountType != constants.CouponTypePercentage && discountType != constants.CouponTypeFixed {
		return nil, ErrCouponInvalid
	}
	if input.DiscountValue.IsNegative() || input.MinPurchaseAmount.IsNegative() {
		return nil, ErrCouponInvalid
	}
	if discountType == constants.CouponTypePercentage && input.DiscountValue.GreaterThan(hundred) {
		return nil, ErrCouponInvalid
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && !input.ValidUntil.After(*input.ValidFrom) {
		return nil, ErrCouponInvalid
	}

	rules := make([]models.CouponRule, 0, len(input.Rules))
	for _, ruleInput := range input.Rules {
		rule, err := buildCouponRule(ruleInput)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if len(rules) == 0 && input.DiscountValue.LessThanOrEqual(decimal.Zero) {
		return nil, ErrCouponInvalid
	}

	coupon := &models.Coupon{IsActive: true}
	if existing != nil {
		coupon = existing
	}
	coupon.Code = code
	coupon.Description = strings.TrimSpace(input.Description)
	coupon.DiscountType = discountType
	coupon.DiscountValue = models.NewMoneyFromDecimal(input.DiscountValue.Decimal)
	coupon.MinPurchaseAmount = models.NewMoneyFromDecimal(input.MinPurchaseAmount.Decimal)
	coupon.ValidFrom = input.ValidFrom
	coupon.ValidUntil = input.ValidUntil
	if input.IsActive != nil {
		coupon.IsActive = *input.IsActive
	}
	coupon.Rules = rules
	return coupon, nil
}

// buildCouponRule 校验规则，仅保留所选权益类型的字段
func buildCouponRule(input CouponRuleInput) (models.CouponRule, error) {
	sourceType := strings.TrimSpace(input.SourceType)
	if sourceType == "" {
		sourceType = constants.RuleSourceAny
	}
	switch sourceType {
	case constants.RuleSourceAny, constants.RuleSourceNewArrival:
	case constants.RuleSourceCategory, constants.RuleSourceCategoryNewArrival:
		if input.SourceCategoryID == nil || *input.SourceCategoryID == 0 {
			return models.CouponRule{}, ErrCouponInvalid
		}
	default:
		return models.CouponRule{}, ErrCouponInvalid
	}
	minQuantity := input.SourceMinQuantity
	if minQuantity == 0 {
		minQuantity = 1
	}
	if minQuantity < 1 {
		return models.CouponRule{}, ErrCouponInvalid
	}
	if input.SourceMinAmount != nil && input.SourceMinAmount.IsNegative() {
		return models.CouponRule{}, ErrCouponInvalid
	}

	rule := models.CouponRule{
		RulePriority:             input.RulePriority,
		IsActive:                 true,
		SourceType:               sourceType,
		SourceNewArrivalRequired: input.SourceNewArrivalRequired,
		SourceMinQuantity:        minQuantity,
		SourceMinAmount:          input.SourceMinAmount,
		BenefitType:              strings.TrimSpace(input.BenefitType),
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	if sourceType == constants.RuleSourceCategory || sourceType == constants.RuleSourceCategoryNewArrival {
		rule.SourceCategoryID = input.SourceCategoryID
	}

	switch rule.BenefitType {
	case constants.RuleBenefitFreeItems:
		if input.FreeQuantity == nil || *input.FreeQuantity < 1 {
			return models.CouponRule{}, ErrCouponInvalid
		}
		selection := strings.TrimSpace(input.FreeItemSelection)
		if selection == "" {
			selection = constants.FreeSelectionCheapest
		}
		if selection != constants.FreeSelectionCheapest && selection != constants.FreeSelectionMostExpensive && selection != constants.FreeSelectionAny {
			return models.CouponRule{}, ErrCouponInvalid
		}
		percentage := models.NewMoneyFromInt(100)
		if input.FreeDiscountPercentage != nil {
			percentage = *input.FreeDiscountPercentage
		}
		if !validPercentage(percentage) {
			return models.CouponRule{}, ErrCouponInvalid
		}
		rule.FreeQuantity = input.FreeQuantity
		rule.FreeItemSelection = &selection
		rule.FreeDiscountPercentage = models.MoneyPtr(percentage)
	case constants.RuleBenefitFixedDiscount:
		if input.DiscountAmount == nil || !input.DiscountAmount.IsPositive() {
			return models.CouponRule{}, ErrCouponInvalid
		}
		rule.DiscountAmount = input.DiscountAmount
	case constants.RuleBenefitPercentageDiscount:
		if input.DiscountPercentage == nil || !validPercentage(*input.DiscountPercentage) {
			return models.CouponRule{}, ErrCouponInvalid
		}
		rule.DiscountPercentage = input.DiscountPercentage
	case constants.RuleBenefitBundlePrice:
		if input.BundleFixedPrice == nil || input.BundleFixedPrice.IsNegative() {
			return models.CouponRule{}, ErrCouponInvalid
		}
		rule.BundleFixedPrice = input.BundleFixedPrice
	default:
		return models.CouponRule{}, ErrCouponInvalid
	}
	return rule, nil
}

func validPercentage(value models.Money) bool {
	return !value.IsNegative() && value.LessThanOrEqual(hundred)
}
