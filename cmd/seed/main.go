package main

import (
	"fmt"
	"os"
	"time"

	"github.com/threadline/storefront/internal/config"
	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	_ = godotenv.Load()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.InitDefaultAdmin(os.Getenv("SF_DEFAULT_ADMIN_USERNAME"), os.Getenv("SF_DEFAULT_ADMIN_PASSWORD")); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	// 添加分类
	categories := []models.Category{
		{Slug: "dresses", Name: "Dresses", SortOrder: 1},
		{Slug: "tops", Name: "Tops", SortOrder: 2},
		{Slug: "accessories", Name: "Accessories", SortOrder: 3},
	}
	categoryIDs := map[string]uint{}
	for _, cat := range categories {
		var existing models.Category
		if err := models.DB.Where("slug = ?", cat.Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&cat).Error; err != nil {
				stdLog.Printf("Failed to create category %s: %v", cat.Slug, err)
				continue
			}
			stdLog.Printf("Created category: %s", cat.Slug)
			categoryIDs[cat.Slug] = cat.ID
		} else {
			stdLog.Printf("Category already exists: %s", cat.Slug)
			categoryIDs[cat.Slug] = existing.ID
		}
	}

	// 添加商品
	products := []models.Product{
		{
			Slug:         "linen-wrap-dress",
			Name:         "Linen Wrap Dress",
			SKU:          "DR-001",
			PriceAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(2499)),
			CategoryID:   categoryIDs["dresses"],
			Sizes:        models.StringArray{"S", "M", "L"},
			IsNewArrival: true,
			IsActive:     true,
		},
		{
			Slug:        "block-print-kurta",
			Name:        "Block Print Kurta",
			SKU:         "TP-014",
			PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(1299)),
			CategoryID:  categoryIDs["tops"],
			Colors:      models.StringArray{"Indigo", "Rust"},
			Sizes:       models.StringArray{"S", "M", "L", "XL"},
			IsActive:    true,
		},
		{
			Slug:        "cotton-tee",
			Name:        "Organic Cotton Tee",
			SKU:         "TP-020",
			PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(699)),
			CategoryID:  categoryIDs["tops"],
			Sizes:       models.StringArray{"S", "M", "L"},
			IsActive:    true,
		},
		{
			Slug:         "jute-tote",
			Name:         "Jute Tote Bag",
			SKU:          "AC-003",
			PriceAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(499)),
			CategoryID:   categoryIDs["accessories"],
			Stock:        40,
			IsNewArrival: true,
			IsActive:     true,
		},
	}
	products[0].SetSizeStock(models.SizeStock{"S": 5, "M": 8, "L": 2})
	products[1].SetColorSizeStock(models.ColorSizeStock{
		"Indigo": {"S": 3, "M": 6, "L": 4, "XL": 0},
		"Rust":   {"S": 2, "M": 2, "L": 1, "XL": 1},
	})
	products[2].SetSizeStock(models.SizeStock{"S": 20, "M": 25, "L": 15})

	for _, product := range products {
		var existing models.Product
		if err := models.DB.Where("slug = ?", product.Slug).First(&existing).Error; err == nil {
			stdLog.Printf("Product already exists: %s", product.Slug)
			continue
		}
		if err := models.DB.Create(&product).Error; err != nil {
			stdLog.Printf("Failed to create product %s: %v", product.Slug, err)
		} else {
			stdLog.Printf("Created product: %s", product.Slug)
		}
	}

	// 添加优惠券
	now := time.Now()
	until := now.AddDate(0, 3, 0)
	topsID := categoryIDs["tops"]
	freeQty := 1
	cheapest := constants.FreeSelectionCheapest
	bundlePrice := models.NewMoneyFromInt(1500)
	fullFree := models.NewMoneyFromInt(100)
	coupons := []models.Coupon{
		{
			Code:              "WELCOME10",
			Description:       "10% off your first order",
			DiscountType:      constants.CouponTypePercentage,
			DiscountValue:     models.NewMoneyFromInt(10),
			MinPurchaseAmount: models.NewMoneyFromInt(999),
			ValidFrom:         &now,
			ValidUntil:        &until,
			IsActive:          true,
		},
		{
			Code:       "TOPS3FOR2",
			ValidFrom:  &now,
			ValidUntil: &until,
			IsActive:   true,
			Rules: []models.CouponRule{{
				RulePriority:           1,
				IsActive:               true,
				SourceType:             constants.RuleSourceCategory,
				SourceCategoryID:       &topsID,
				SourceMinQuantity:      3,
				BenefitType:            constants.RuleBenefitFreeItems,
				FreeQuantity:           &freeQty,
				FreeItemSelection:      &cheapest,
				FreeDiscountPercentage: &fullFree,
			}},
		},
		{
			Code:       "NEWIN2",
			ValidFrom:  &now,
			ValidUntil: &until,
			IsActive:   true,
			Rules: []models.CouponRule{{
				RulePriority:             1,
				IsActive:                 true,
				SourceType:               constants.RuleSourceNewArrival,
				SourceNewArrivalRequired: true,
				SourceMinQuantity:        2,
				BenefitType:              constants.RuleBenefitBundlePrice,
				BundleFixedPrice:         &bundlePrice,
			}},
		},
	}
	for _, coupon := range coupons {
		var existing models.Coupon
		if err := models.DB.Where("code = ?", coupon.Code).First(&existing).Error; err == nil {
			stdLog.Printf("Coupon already exists: %s", coupon.Code)
			continue
		}
		if err := models.DB.Create(&coupon).Error; err != nil {
			stdLog.Printf("Failed to create coupon %s: %v", coupon.Code, err)
		} else {
			stdLog.Printf("Created coupon: %s", coupon.Code)
		}
	}

	fmt.Println("\n✅ Test data created successfully!")
	fmt.Println("Summary:")
	fmt.Printf("- %d Categories\n", len(categories))
	fmt.Printf("- %d Products (size / color-size / flat stock)\n", len(products))
	fmt.Printf("- %d Coupons (simple / free items / bundle price)\n", len(coupons))
}
