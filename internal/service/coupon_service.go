package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/cache"
	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CouponLine 参与优惠计算的购物车行
type CouponLine struct {
	ProductID    uint            `json:"product_id"`
	CategoryID   uint            `json:"category_id"`
	IsNewArrival bool            `json:"is_new_arrival"`
	Size         string          `json:"size,omitempty"`
	Color        string          `json:"color,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	// AvailableStock 已知时，匹配件数按可用库存封顶
	AvailableStock *int `json:"available_stock,omitempty"`
}

// CouponEvaluationInput 优惠券计算入参
type CouponEvaluationInput struct {
	Code     string
	Lines    []CouponLine
	Subtotal *decimal.Decimal // 为空时按行汇总
	Now      time.Time
}

// CouponAffectedLine 命中规则的行
type CouponAffectedLine struct {
	LineIndex       int    `json:"line_index"`
	ProductID       uint   `json:"product_id"`
	Size            string `json:"size,omitempty"`
	Color           string `json:"color,omitempty"`
	MatchedQuantity int    `json:"matched_quantity"`
	BenefitUnits    int    `json:"benefit_units"`
}

// CouponEvaluation 优惠券计算结果
type CouponEvaluation struct {
	Applicable         bool                 `json:"applicable"`
	CouponID           uint                 `json:"coupon_id"`
	Code               string               `json:"code"`
	DiscountAmount     models.Money         `json:"discount_amount"`
	Subtotal           models.Money         `json:"subtotal"`
	RuleID             *uint                `json:"rule_id,omitempty"`
	BenefitType        string               `json:"benefit_type,omitempty"`
	SourceDescription  string               `json:"source_description,omitempty"`
	BenefitDescription string               `json:"benefit_description,omitempty"`
	AffectedLines      []CouponAffectedLine `json:"affected_lines"`
}

// CouponService 优惠券规则引擎
type CouponService struct {
	couponRepo repository.CouponRepository
}

// NewCouponService 创建优惠券服务
func NewCouponService(couponRepo repository.CouponRepository) *CouponService {
	return &CouponService{couponRepo: couponRepo}
}

// Evaluate 计算优惠券对购物车的折扣
// 校验顺序：不存在 → 不在有效期 → 未启用 → 未达门槛；有启用规则时按优先级取第一条满足来源条件的规则
func (s *CouponService) Evaluate(ctx context.Context, input CouponEvaluationInput) (*CouponEvaluation, error) {
	code := repository.NormalizeCouponCode(input.Code)
	if code == "" {
		return nil, ErrCouponCodeRequired
	}
	coupon, err := s.loadCoupon(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	if err := checkCouponWindow(coupon, now); err != nil {
		return nil, err
	}
	if !coupon.IsActive {
		return nil, ErrCouponInactive
	}

	subtotal := sumLines(input.Lines)
	if input.Subtotal != nil {
		subtotal = *input.Subtotal
	}
	if coupon.MinPurchaseAmount.GreaterThan(decimal.Zero) && subtotal.LessThan(coupon.MinPurchaseAmount.Decimal) {
		return nil, ErrCouponMinAmount
	}

	result := &CouponEvaluation{
		CouponID:      coupon.ID,
		Code:          coupon.Code,
		Subtotal:      models.NewMoneyFromDecimal(subtotal),
		AffectedLines: []CouponAffectedLine{},
	}

	rules := sortedActiveRules(coupon)
	if len(rules) == 0 {
		discount := simpleDiscount(coupon, subtotal)
		result.Applicable = true
		result.DiscountAmount = models.NewMoneyFromDecimal(discount)
		for i, line := range input.Lines {
			result.AffectedLines = append(result.AffectedLines, CouponAffectedLine{
				LineIndex:       i,
				ProductID:       line.ProductID,
				Size:            line.Size,
				Color:           line.Color,
				MatchedQuantity: line.Quantity,
			})
		}
		return result, nil
	}

	for i := range rules {
		rule := rules[i]
		matched := matchRuleSource(&rule, input.Lines)
		if !matched.satisfies(&rule) {
			continue
		}
		discount, benefitUnits := applyRuleBenefit(&rule, matched)
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}
		ruleID := rule.ID
		result.Applicable = true
		result.RuleID = &ruleID
		result.BenefitType = rule.BenefitType
		result.DiscountAmount = models.NewMoneyFromDecimal(discount)
		result.SourceDescription = SourceDescription(&rule)
		result.BenefitDescription = BenefitDescription(&rule)
		for _, m := range matched.lines {
			result.AffectedLines = append(result.AffectedLines, CouponAffectedLine{
				LineIndex:       m.index,
				ProductID:       m.line.ProductID,
				Size:            m.line.Size,
				Color:           m.line.Color,
				MatchedQuantity: m.quantity,
				BenefitUnits:    benefitUnits[m.index],
			})
		}
		return result, nil
	}
	return nil, ErrCouponNoRuleMatched
}

func (s *CouponService) loadCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	if coupon, hit, err := cache.GetCoupon(ctx, code); err != nil {
		logger.Warnw("coupon_cache_get_failed", "code", code, "error", err)
	} else if hit {
		return coupon, nil
	}
	coupon, err := s.couponRepo.GetByCode(code)
	if err != nil || coupon == nil {
		return coupon, err
	}
	if err := cache.SetCoupon(ctx, coupon); err != nil {
		logger.Warnw("coupon_cache_set_failed", "code", code, "error", err)
	}
	return coupon, nil
}

// checkCouponWindow 有效期为半开区间 [valid_from, valid_until)
func checkCouponWindow(coupon *models.Coupon, now time.Time) error {
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return ErrCouponNotStarted
	}
	if coupon.ValidUntil != nil && !now.Before(*coupon.ValidUntil) {
		return ErrCouponExpired
	}
	return nil
}

func sumLines(lines []CouponLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func sortedActiveRules(coupon *models.Coupon) []models.CouponRule {
	rules := coupon.ActiveRules()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].RulePriority != rules[j].RulePriority {
			return rules[i].RulePriority < rules[j].RulePriority
		}
		return rules[i].ID < rules[j].ID
	})
	return rules
}

// simpleDiscount 无规则时的整单折扣，不超过小计
func simpleDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	value := models.FloorZero(coupon.DiscountValue.Decimal)
	var discount decimal.Decimal
	switch strings.ToLower(strings.TrimSpace(coupon.DiscountType)) {
	case constants.CouponTypeFixed:
		discount = decimal.Min(value, subtotal)
	default:
		discount = subtotal.Mul(clampPercentage(value)).Div(hundred)
	}
	return decimal.Min(discount, subtotal).Round(2)
}

func clampPercentage(value decimal.Decimal) decimal.Decimal {
	if value.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if value.GreaterThan(hundred) {
		return hundred
	}
	return value
}

type matchedLine struct {
	index    int
	line     CouponLine
	quantity int
}

type matchedSet struct {
	lines    []matchedLine
	quantity int
	amount   decimal.Decimal
}

func (m matchedSet) satisfies(rule *models.CouponRule) bool {
	minQuantity := rule.SourceMinQuantity
	if minQuantity < 1 {
		minQuantity = 1
	}
	if m.quantity < minQuantity {
		return false
	}
	if rule.SourceMinAmount != nil && m.amount.LessThan(rule.SourceMinAmount.Decimal) {
		return false
	}
	return true
}

// matchRuleSource 计算满足规则来源条件的行集合
func matchRuleSource(rule *models.CouponRule, lines []CouponLine) matchedSet {
	sourceType := strings.TrimSpace(rule.SourceType)
	requireCategory := sourceType == constants.RuleSourceCategory || sourceType == constants.RuleSourceCategoryNewArrival
	requireNewArrival := rule.SourceNewArrivalRequired ||
		sourceType == constants.RuleSourceNewArrival || sourceType == constants.RuleSourceCategoryNewArrival

	set := matchedSet{amount: decimal.Zero}
	for i, line := range lines {
		if requireCategory && (rule.SourceCategoryID == nil || line.CategoryID != *rule.SourceCategoryID) {
			continue
		}
		if requireNewArrival && !line.IsNewArrival {
			continue
		}
		quantity := line.Quantity
		if line.AvailableStock != nil && *line.AvailableStock < quantity {
			quantity = *line.AvailableStock
		}
		if quantity <= 0 {
			continue
		}
		set.lines = append(set.lines, matchedLine{index: i, line: line, quantity: quantity})
		set.quantity += quantity
		set.amount = set.amount.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))))
	}
	return set
}

type pricedUnit struct {
	lineIndex int
	price     decimal.Decimal
}

func expandUnits(set matchedSet) []pricedUnit {
	units := make([]pricedUnit, 0, set.quantity)
	for _, m := range set.lines {
		for i := 0; i < m.quantity; i++ {
			units = append(units, pricedUnit{lineIndex: m.index, price: m.line.UnitPrice})
		}
	}
	return units
}

// applyRuleBenefit 仅对匹配行集合计算权益，返回折扣与每行受益件数
func applyRuleBenefit(rule *models.CouponRule, set matchedSet) (decimal.Decimal, map[int]int) {
	benefitUnits := make(map[int]int)
	var discount decimal.Decimal

	switch rule.BenefitType {
	case constants.RuleBenefitFreeItems:
		units := expandUnits(set)
		switch freeSelection(rule) {
		case constants.FreeSelectionCheapest:
			sort.SliceStable(units, func(i, j int) bool { return units[i].price.LessThan(units[j].price) })
		case constants.FreeSelectionMostExpensive:
			sort.SliceStable(units, func(i, j int) bool { return units[i].price.GreaterThan(units[j].price) })
		}
		count := 0
		if rule.FreeQuantity != nil {
			count = *rule.FreeQuantity
		}
		if count > len(units) {
			count = len(units)
		}
		selected := decimal.Zero
		for _, unit := range units[:maxInt(count, 0)] {
			selected = selected.Add(unit.price)
			benefitUnits[unit.lineIndex]++
		}
		percentage := hundred
		if rule.FreeDiscountPercentage != nil {
			percentage = clampPercentage(rule.FreeDiscountPercentage.Decimal)
		}
		discount = selected.Mul(percentage).Div(hundred)

	case constants.RuleBenefitFixedDiscount:
		if rule.DiscountAmount != nil && rule.DiscountAmount.GreaterThan(decimal.Zero) {
			discount = decimal.Min(rule.DiscountAmount.Decimal, set.amount)
		}

	case constants.RuleBenefitPercentageDiscount:
		if rule.DiscountPercentage != nil {
			discount = set.amount.Mul(clampPercentage(rule.DiscountPercentage.Decimal)).Div(hundred)
		}

	case constants.RuleBenefitBundlePrice:
		discount = bundleDiscount(rule, set, benefitUnits)
	}

	return models.FloorZero(discount).Round(2), benefitUnits
}

// bundleDiscount 组合价：每 source_min_quantity 件为一组，按 floor(匹配件数/组大小) 组成组
// 优先把单价高的件数组入组合，剩余件数按原价
func bundleDiscount(rule *models.CouponRule, set matchedSet, benefitUnits map[int]int) decimal.Decimal {
	if rule.BundleFixedPrice == nil {
		return decimal.Zero
	}
	bundleSize := rule.SourceMinQuantity
	if bundleSize < 1 {
		bundleSize = 1
	}
	groups := set.quantity / bundleSize
	if groups == 0 {
		return decimal.Zero
	}
	units := expandUnits(set)
	sort.SliceStable(units, func(i, j int) bool { return units[i].price.GreaterThan(units[j].price) })
	bundled := decimal.Zero
	for _, unit := range units[:groups*bundleSize] {
		bundled = bundled.Add(unit.price)
		benefitUnits[unit.lineIndex]++
	}
	bundlePrice := rule.BundleFixedPrice.Mul(decimal.NewFromInt(int64(groups)))
	return decimal.Max(decimal.Zero, bundled.Sub(bundlePrice))
}

func freeSelection(rule *models.CouponRule) string {
	if rule.FreeItemSelection == nil {
		return constants.FreeSelectionCheapest
	}
	switch strings.TrimSpace(*rule.FreeItemSelection) {
	case constants.FreeSelectionMostExpensive:
		return constants.FreeSelectionMostExpensive
	case constants.FreeSelectionAny:
		return constants.FreeSelectionAny
	default:
		return constants.FreeSelectionCheapest
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
