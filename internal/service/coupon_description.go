package service

import (
	"fmt"
	"strings"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/models"
)

// SourceDescription 生成规则来源条件的展示文案，"Buy N" 中的 N 即 source_min_quantity
func SourceDescription(rule *models.CouponRule) string {
	if rule == nil {
		return ""
	}
	quantity := rule.SourceMinQuantity
	if quantity < 1 {
		quantity = 1
	}
	noun := "item"
	switch strings.TrimSpace(rule.SourceType) {
	case constants.RuleSourceNewArrival:
		noun = "new arrival"
	case constants.RuleSourceCategoryNewArrival:
		noun = "new arrival"
	}
	if rule.SourceNewArrivalRequired {
		noun = "new arrival"
	}
	text := fmt.Sprintf("Buy %d %s", quantity, pluralize(noun, quantity))
	switch strings.TrimSpace(rule.SourceType) {
	case constants.RuleSourceCategory, constants.RuleSourceCategoryNewArrival:
		text += " from the selected category"
	}
	if rule.SourceMinAmount != nil && rule.SourceMinAmount.IsPositive() {
		text += fmt.Sprintf(" worth at least %s", rule.SourceMinAmount.Decimal.String())
	}
	return text
}

// BenefitDescription 生成规则权益的展示文案
func BenefitDescription(rule *models.CouponRule) string {
	if rule == nil {
		return ""
	}
	switch rule.BenefitType {
	case constants.RuleBenefitFreeItems:
		quantity := 0
		if rule.FreeQuantity != nil {
			quantity = *rule.FreeQuantity
		}
		percentage := "100"
		if rule.FreeDiscountPercentage != nil {
			percentage = rule.FreeDiscountPercentage.Decimal.String()
		}
		var text string
		if percentage == "100" {
			text = fmt.Sprintf("Get %d %s free", quantity, pluralize("item", quantity))
		} else {
			text = fmt.Sprintf("Get %d %s at %s%% off", quantity, pluralize("item", quantity), percentage)
		}
		switch freeSelection(rule) {
		case constants.FreeSelectionCheapest:
			text += " (lowest priced)"
		case constants.FreeSelectionMostExpensive:
			text += " (highest priced)"
		}
		return text
	case constants.RuleBenefitFixedDiscount:
		if rule.DiscountAmount == nil {
			return ""
		}
		return fmt.Sprintf("Get %s off", rule.DiscountAmount.Decimal.String())
	case constants.RuleBenefitPercentageDiscount:
		if rule.DiscountPercentage == nil {
			return ""
		}
		return fmt.Sprintf("Get %s%% off", rule.DiscountPercentage.Decimal.String())
	case constants.RuleBenefitBundlePrice:
		if rule.BundleFixedPrice == nil {
			return ""
		}
		size := rule.SourceMinQuantity
		if size < 1 {
			size = 1
		}
		return fmt.Sprintf("%d for %s", size, rule.BundleFixedPrice.Decimal.String())
	}
	return ""
}

func pluralize(noun string, count int) string {
	if count == 1 {
		return noun
	}
	return noun + "s"
}
