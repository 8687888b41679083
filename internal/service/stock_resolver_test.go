package service

import (
	"errors"
	"testing"

	"github.com/threadline/storefront/internal/models"
)

func stockFixtureProduct() *models.Product {
	product := &models.Product{ID: 1, Stock: 9, IsActive: true}
	product.SetSizeStock(models.SizeStock{"S": 3, "M": 0})
	product.SetColorSizeStock(models.ColorSizeStock{
		"black": {"S": 2, "M": 0},
		"white": {"L": 5},
	})
	return product
}

func TestAvailableStockPrecedence(t *testing.T) {
	product := stockFixtureProduct()
	cases := []struct {
		name  string
		size  string
		color string
		want  int
	}{
		{"color_size_hit", "S", "black", 2},
		{"color_size_zero_does_not_fall_back", "M", "black", 0},
		{"color_size_missing_key_is_zero", "S", "white", 0},
		{"unknown_color_is_zero", "S", "green", 0},
		{"size_only", "S", "", 3},
		{"size_only_missing_key_is_zero", "XL", "", 0},
		{"default_size_uses_flat", "default", "black", 9},
		{"empty_size_uses_flat", "", "black", 9},
		{"trimmed_input", " S ", " black ", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AvailableStock(product, tc.size, tc.color); got != tc.want {
				t.Fatalf("AvailableStock(%q,%q) = %d, want %d", tc.size, tc.color, got, tc.want)
			}
		})
	}
}

func TestAvailableStockFallsBackWhenMapsAbsent(t *testing.T) {
	sizeOnly := &models.Product{Stock: 4}
	sizeOnly.SetSizeStock(models.SizeStock{"M": 6})
	if got := AvailableStock(sizeOnly, "M", "red"); got != 6 {
		t.Fatalf("expected size map when color map absent, got %d", got)
	}

	flat := &models.Product{Stock: 4}
	if got := AvailableStock(flat, "M", "red"); got != 4 {
		t.Fatalf("expected flat stock, got %d", got)
	}

	negative := &models.Product{Stock: -2}
	if got := AvailableStock(negative, "", ""); got != 0 {
		t.Fatalf("negative stock should clamp to 0, got %d", got)
	}
	if got := AvailableStock(nil, "M", ""); got != 0 {
		t.Fatalf("nil product should be 0, got %d", got)
	}
}

func TestAdjustStockIsInverseOfResolver(t *testing.T) {
	cases := []struct {
		size  string
		color string
	}{
		{"S", "black"},
		{"S", ""},
		{"", ""},
		{"L", "white"},
	}
	for _, tc := range cases {
		product := stockFixtureProduct()
		before := AvailableStock(product, tc.size, tc.color)
		if err := adjustStock(product, tc.size, tc.color, -1); err != nil {
			t.Fatalf("deduct %q/%q failed: %v", tc.size, tc.color, err)
		}
		if got := AvailableStock(product, tc.size, tc.color); got != before-1 {
			t.Fatalf("deduct %q/%q: expected %d, got %d", tc.size, tc.color, before-1, got)
		}
		if err := adjustStock(product, tc.size, tc.color, 1); err != nil {
			t.Fatalf("restore %q/%q failed: %v", tc.size, tc.color, err)
		}
		if got := AvailableStock(product, tc.size, tc.color); got != before {
			t.Fatalf("restore %q/%q: expected %d, got %d", tc.size, tc.color, before, got)
		}
	}
}

func TestAdjustStockTouchesOnlyGoverningBucket(t *testing.T) {
	product := stockFixtureProduct()
	if err := adjustStock(product, "S", "black", 3); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if product.ColorSizeStockMap()["black"]["S"] != 5 {
		t.Fatalf("color bucket not updated: %+v", product.ColorSizeStockMap())
	}
	if product.SizeStockMap()["S"] != 3 || product.Stock != 9 {
		t.Fatalf("other buckets changed: size=%+v flat=%d", product.SizeStockMap(), product.Stock)
	}

	if err := adjustStock(product, "XS", "green", 2); err != nil {
		t.Fatalf("restore into new key failed: %v", err)
	}
	if product.ColorSizeStockMap()["green"]["XS"] != 2 {
		t.Fatalf("missing key should be created on restore: %+v", product.ColorSizeStockMap())
	}
}

func TestAdjustStockRejectsOversell(t *testing.T) {
	product := stockFixtureProduct()
	if err := adjustStock(product, "M", "black", -1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if product.ColorSizeStockMap()["black"]["M"] != 0 {
		t.Fatalf("failed deduct should not change stock")
	}
}

func TestValidateCartStockAggregatesVariants(t *testing.T) {
	f := newReconciliationFixture(t)
	product := stockFixtureProduct()
	product.ID = 0
	product.Slug = "validate-jacket"
	product.Name = "Jacket"
	f.createProduct(t, product)
	inactive := f.createProduct(t, &models.Product{Slug: "hidden", Stock: 10})
	if err := f.db.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	shortages, err := f.stock.ValidateCartStock([]CartLine{
		{ProductID: product.ID, Size: "S", Color: "black", Quantity: 1},
		{ProductID: product.ID, Size: "S", Color: "black", Quantity: 2},
		{ProductID: product.ID, Size: "S", Quantity: 3},
		{ProductID: inactive.ID, Quantity: 1},
		{ProductID: 9999, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if len(shortages) != 3 {
		t.Fatalf("expected 3 shortages, got %+v", shortages)
	}
	first := shortages[0]
	if first.ProductID != product.ID || first.Requested != 3 || first.Available != 2 || first.ProductName != "Jacket" {
		t.Fatalf("unexpected aggregated shortage: %+v", first)
	}
	if shortages[1].ProductID != inactive.ID || shortages[1].Available != 0 {
		t.Fatalf("inactive product should be unavailable: %+v", shortages[1])
	}
	if shortages[2].ProductID != 9999 {
		t.Fatalf("missing product should be reported: %+v", shortages[2])
	}

	if _, err := f.stock.ValidateCartStock([]CartLine{{ProductID: product.ID, Quantity: 0}}); !errors.Is(err, ErrCartItemInvalid) {
		t.Fatalf("expected invalid cart item, got %v", err)
	}
}
