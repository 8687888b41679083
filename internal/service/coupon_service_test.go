package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"

	"github.com/shopspring/decimal"
)

func newCouponTestService(t *testing.T) (*CouponService, *repository.GormCouponRepository) {
	t.Helper()
	repo := repository.NewCouponRepository(openServiceTestDB(t))
	return NewCouponService(repo), repo
}

func mustCreateCoupon(t *testing.T, repo *repository.GormCouponRepository, coupon *models.Coupon) *models.Coupon {
	t.Helper()
	if err := repo.Create(coupon); err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	return coupon
}

func moneyPtr(v int64) *models.Money {
	m := models.NewMoneyFromInt(v)
	return &m
}

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }

func stringPtr(v string) *string { return &v }

func line(categoryID uint, price int64, quantity int) CouponLine {
	return CouponLine{
		ProductID:  uint(price),
		CategoryID: categoryID,
		UnitPrice:  decimal.NewFromInt(price),
		Quantity:   quantity,
	}
}

func TestEvaluateSimplePercentageCoupon(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:              "save20",
		DiscountType:      constants.CouponTypePercentage,
		DiscountValue:     models.NewMoneyFromInt(20),
		MinPurchaseAmount: models.NewMoneyFromInt(500),
		IsActive:          true,
	})

	result, err := svc.Evaluate(context.Background(), CouponEvaluationInput{
		Code:  " Save20 ",
		Lines: []CouponLine{line(1, 400, 1), line(1, 600, 1)},
	})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !result.Applicable || !result.DiscountAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected 200 discount, got %+v", result)
	}
	if result.Code != "SAVE20" || len(result.AffectedLines) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestEvaluateMinimumPurchaseBoundary(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:              "MIN500",
		DiscountType:      constants.CouponTypeFixed,
		DiscountValue:     models.NewMoneyFromInt(50),
		MinPurchaseAmount: models.NewMoneyFromInt(500),
		IsActive:          true,
	})

	below := decimal.RequireFromString("499.99")
	if _, err := svc.Evaluate(context.Background(), CouponEvaluationInput{Code: "MIN500", Subtotal: &below}); !errors.Is(err, ErrCouponMinAmount) {
		t.Fatalf("expected minimum not met, got %v", err)
	}
	exact := decimal.NewFromInt(500)
	result, err := svc.Evaluate(context.Background(), CouponEvaluationInput{Code: "MIN500", Subtotal: &exact})
	if err != nil || !result.DiscountAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50 discount at threshold, got %+v err=%v", result, err)
	}
}

func TestEvaluateFixedCouponCappedAtSubtotal(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:          "FLAT999",
		DiscountType:  constants.CouponTypeFixed,
		DiscountValue: models.NewMoneyFromInt(999),
		IsActive:      true,
	})
	result, err := svc.Evaluate(context.Background(), CouponEvaluationInput{
		Code:  "FLAT999",
		Lines: []CouponLine{line(1, 300, 1)},
	})
	if err != nil || !result.DiscountAmount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected discount capped to 300, got %+v err=%v", result, err)
	}
}

func TestEvaluateValidationOrder(t *testing.T) {
	svc, repo := newCouponTestService(t)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	mustCreateCoupon(t, repo, &models.Coupon{Code: "ENDED", DiscountValue: models.NewMoneyFromInt(10), ValidUntil: &past, IsActive: false})
	mustCreateCoupon(t, repo, &models.Coupon{Code: "SOON", DiscountValue: models.NewMoneyFromInt(10), ValidFrom: &future, IsActive: true})
	mustCreateCoupon(t, repo, &models.Coupon{Code: "EXACT", DiscountValue: models.NewMoneyFromInt(10), ValidUntil: &now, IsActive: true})
	mustCreateCoupon(t, repo, &models.Coupon{Code: "OFF", DiscountValue: models.NewMoneyFromInt(10), IsActive: false, MinPurchaseAmount: models.NewMoneyFromInt(5000)})

	cases := []struct {
		code string
		want error
	}{
		{"", ErrCouponCodeRequired},
		{"NOPE", ErrCouponNotFound},
		{"ENDED", ErrCouponExpired},
		{"SOON", ErrCouponNotStarted},
		{"EXACT", ErrCouponExpired},
		{"OFF", ErrCouponInactive},
	}
	for _, tc := range cases {
		_, err := svc.Evaluate(context.Background(), CouponEvaluationInput{
			Code:  tc.code,
			Lines: []CouponLine{line(1, 100, 1)},
			Now:   now,
		})
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %q: expected %v, got %v", tc.code, tc.want, err)
		}
	}
	if !errors.Is(ErrCouponNotStarted, ErrCouponExpired) {
		t.Fatalf("not started should be reported as expired family")
	}
}

func TestEvaluateBuyTwoGetOneCheapestFree(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:     "B2G1",
		IsActive: true,
		Rules: []models.CouponRule{{
			IsActive:               true,
			SourceType:             constants.RuleSourceCategory,
			SourceCategoryID:       uintPtr(5),
			SourceMinQuantity:      2,
			BenefitType:            constants.RuleBenefitFreeItems,
			FreeQuantity:           intPtr(1),
			FreeItemSelection:      stringPtr(constants.FreeSelectionCheapest),
			FreeDiscountPercentage: moneyPtr(100),
		}},
	})

	result, err := svc.Evaluate(context.Background(), CouponEvaluationInput{
		Code:  "B2G1",
		Lines: []CouponLine{line(5, 700, 1), line(5, 300, 1), line(5, 500, 1), line(9, 100, 1)},
	})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !result.DiscountAmount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected 300 discount, got %s", result.DiscountAmount.String())
	}
	if len(result.AffectedLines) != 3 {
		t.Fatalf("only category lines should be affected: %+v", result.AffectedLines)
	}
	for _, affected := range result.AffectedLines {
		wantUnits := 0
		if affected.LineIndex == 1 {
			wantUnits = 1
		}
		if affected.BenefitUnits != wantUnits {
			t.Fatalf("unexpected benefit units: %+v", affected)
		}
	}
	if result.SourceDescription != "Buy 2 items from the selected category" || result.BenefitDescription != "Get 1 item free (lowest priced)" {
		t.Fatalf("unexpected descriptions: %q / %q", result.SourceDescription, result.BenefitDescription)
	}
}

func TestEvaluateRulePriorityFirstMatchWins(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:     "TIERED",
		IsActive: true,
		Rules: []models.CouponRule{
			{RulePriority: 2, IsActive: true, SourceType: constants.RuleSourceAny, SourceMinQuantity: 1,
				BenefitType: constants.RuleBenefitPercentageDiscount, DiscountPercentage: moneyPtr(50)},
			{RulePriority: 1, IsActive: true, SourceType: constants.RuleSourceAny, SourceMinQuantity: 3,
				BenefitType: constants.RuleBenefitFixedDiscount, DiscountAmount: moneyPtr(100)},
			{RulePriority: 0, IsActive: false, SourceType: constants.RuleSourceAny, SourceMinQuantity: 1,
				BenefitType: constants.RuleBenefitFixedDiscount, DiscountAmount: moneyPtr(999)},
		},
	})

	three, err := svc.Evaluate(context.Background(), CouponEvaluationInput{Code: "TIERED", Lines: []CouponLine{line(1, 200, 3)}})
	if err != nil || !three.DiscountAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected priority-1 fixed discount, got %+v err=%v", three, err)
	}
	two, err := svc.Evaluate(context.Background(), CouponEvaluationInput{Code: "TIERED", Lines: []CouponLine{line(1, 200, 2)}})
	if err != nil || !two.DiscountAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected fallthrough to percentage rule, got %+v err=%v", two, err)
	}
}

func TestEvaluateNoRuleMatched(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:     "NEWIN",
		IsActive: true,
		Rules: []models.CouponRule{{
			IsActive: true, SourceType: constants.RuleSourceNewArrival, SourceMinQuantity: 1,
			BenefitType: constants.RuleBenefitPercentageDiscount, DiscountPercentage: moneyPtr(10),
		}},
	})
	_, err := svc.Evaluate(context.Background(), CouponEvaluationInput{Code: "NEWIN", Lines: []CouponLine{line(1, 200, 2)}})
	if !errors.Is(err, ErrCouponNoRuleMatched) {
		t.Fatalf("expected no rule matched, got %v", err)
	}
}

func TestEvaluateMatchCappedByAvailableStock(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:     "BUY3",
		IsActive: true,
		Rules: []models.CouponRule{{
			IsActive: true, SourceType: constants.RuleSourceAny, SourceMinQuantity: 3,
			BenefitType: constants.RuleBenefitFixedDiscount, DiscountAmount: moneyPtr(150),
		}},
	})
	available := 2
	l := line(1, 400, 3)
	l.AvailableStock = &available
	if _, err := svc.Evaluate(context.Background(), CouponEvaluationInput{Code: "BUY3", Lines: []CouponLine{l}}); !errors.Is(err, ErrCouponNoRuleMatched) {
		t.Fatalf("expected stock-capped quantity to miss the rule, got %v", err)
	}
}

func TestEvaluateBundlePrice(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:     "3FOR999",
		IsActive: true,
		Rules: []models.CouponRule{{
			IsActive: true, SourceType: constants.RuleSourceAny, SourceMinQuantity: 3,
			BenefitType: constants.RuleBenefitBundlePrice, BundleFixedPrice: moneyPtr(999),
		}},
	})

	// 4 件：最贵的 3 件 (600+500+400) 组成 1 组，剩余 300 按原价
	result, err := svc.Evaluate(context.Background(), CouponEvaluationInput{
		Code:  "3FOR999",
		Lines: []CouponLine{line(1, 300, 1), line(1, 600, 1), line(1, 500, 1), line(1, 400, 1)},
	})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !result.DiscountAmount.Equal(decimal.NewFromInt(501)) {
		t.Fatalf("expected 501 discount, got %s", result.DiscountAmount.String())
	}
	if result.BenefitDescription != "3 for 999" {
		t.Fatalf("unexpected benefit description: %q", result.BenefitDescription)
	}
}

func TestEvaluateFixedRuleCappedAtMatchedLines(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:     "KURTA500",
		IsActive: true,
		Rules: []models.CouponRule{{
			IsActive: true, SourceType: constants.RuleSourceCategory, SourceCategoryID: uintPtr(2), SourceMinQuantity: 1,
			SourceMinAmount: moneyPtr(250),
			BenefitType:     constants.RuleBenefitFixedDiscount, DiscountAmount: moneyPtr(500),
		}},
	})

	// 仅分类 2 的 300 参与匹配，其余 2000 不计入上限
	result, err := svc.Evaluate(context.Background(), CouponEvaluationInput{
		Code:  "KURTA500",
		Lines: []CouponLine{line(2, 300, 1), line(1, 2000, 1)},
	})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !result.DiscountAmount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected discount capped to matched 300, got %s", result.DiscountAmount.String())
	}
	if result.BenefitDescription != "Get 500 off" {
		t.Fatalf("unexpected benefit description: %q", result.BenefitDescription)
	}
	if result.SourceDescription != "Buy 1 item from the selected category worth at least 250" {
		t.Fatalf("unexpected source description: %q", result.SourceDescription)
	}
}

func TestEvaluatePercentageRuleOnlyOnMatchedLines(t *testing.T) {
	svc, repo := newCouponTestService(t)
	mustCreateCoupon(t, repo, &models.Coupon{
		Code:     "KURTA10",
		IsActive: true,
		Rules: []models.CouponRule{{
			IsActive: true, SourceType: constants.RuleSourceCategory, SourceCategoryID: uintPtr(2), SourceMinQuantity: 1,
			SourceMinAmount: moneyPtr(500),
			BenefitType:     constants.RuleBenefitPercentageDiscount, DiscountPercentage: moneyPtr(10),
		}},
	})
	result, err := svc.Evaluate(context.Background(), CouponEvaluationInput{
		Code:  "KURTA10",
		Lines: []CouponLine{line(2, 250, 2), line(3, 1000, 1)},
	})
	if err != nil || !result.DiscountAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50 discount on category lines only, got %+v err=%v", result, err)
	}
}

func TestCouponAdminRuleValidation(t *testing.T) {
	db := openServiceTestDB(t)
	admin := NewCouponAdminService(db, repository.NewCouponRepository(db))

	_, err := admin.Create(CouponInput{Code: "BAD", Rules: []CouponRuleInput{{
		BenefitType: constants.RuleBenefitPercentageDiscount, DiscountPercentage: moneyPtr(150),
	}}})
	if !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected invalid percentage, got %v", err)
	}
	_, err = admin.Create(CouponInput{Code: "BAD2", Rules: []CouponRuleInput{{
		SourceType: constants.RuleSourceCategory, BenefitType: constants.RuleBenefitFixedDiscount, DiscountAmount: moneyPtr(10),
	}}})
	if !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected missing category to be rejected, got %v", err)
	}

	created, err := admin.Create(CouponInput{Code: "mix", Rules: []CouponRuleInput{{
		BenefitType:        constants.RuleBenefitFixedDiscount,
		DiscountAmount:     moneyPtr(100),
		DiscountPercentage: moneyPtr(20),
		BundleFixedPrice:   moneyPtr(10),
	}}})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	rule := created.Rules[0]
	if created.Code != "MIX" || rule.SourceMinQuantity != 1 || rule.SourceType != constants.RuleSourceAny {
		t.Fatalf("unexpected defaults: %+v", created)
	}
	if rule.DiscountPercentage != nil || rule.BundleFixedPrice != nil {
		t.Fatalf("other benefit fields should be cleared: %+v", rule)
	}
	if _, err := admin.Create(CouponInput{Code: "Mix", DiscountValue: models.NewMoneyFromInt(5)}); !errors.Is(err, ErrCouponCodeExists) {
		t.Fatalf("expected duplicate code, got %v", err)
	}
}

func TestCouponAdminRejectsUnknownCategory(t *testing.T) {
	db := openServiceTestDB(t)
	tops := models.Category{Slug: "tops", Name: "Tops"}
	if err := db.Create(&tops).Error; err != nil {
		t.Fatalf("create category failed: %v", err)
	}
	admin := NewCouponAdminService(db, repository.NewCouponRepository(db)).
		WithCategories(repository.NewCategoryRepository(db))

	ghost := tops.ID + 40
	_, err := admin.Create(CouponInput{Code: "GHOST", Rules: []CouponRuleInput{{
		SourceType: constants.RuleSourceCategory, SourceCategoryID: &ghost,
		BenefitType: constants.RuleBenefitFixedDiscount, DiscountAmount: moneyPtr(10),
	}}})
	if !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("unknown category should be rejected, got %v", err)
	}

	if _, err := admin.Create(CouponInput{Code: "TOPS", Rules: []CouponRuleInput{{
		SourceType: constants.RuleSourceCategory, SourceCategoryID: &tops.ID,
		BenefitType: constants.RuleBenefitFixedDiscount, DiscountAmount: moneyPtr(10),
	}}}); err != nil {
		t.Fatalf("known category should pass: %v", err)
	}
}
