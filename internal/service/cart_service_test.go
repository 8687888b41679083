package service

import (
	"errors"
	"testing"

	"github.com/threadline/storefront/internal/models"

	"github.com/shopspring/decimal"
)

func TestCartUpsertRejectsBeyondAvailable(t *testing.T) {
	f := newReconciliationFixture(t)
	product := &models.Product{Slug: "silk-saree", PriceAmount: models.NewMoneyFromInt(2500), Stock: 10}
	product.SetSizeStock(models.SizeStock{"free": 3})
	f.createProduct(t, product)
	cart := NewCartService(f.cartRepo, f.stock, "")

	view, err := cart.Upsert(UpsertCartItemInput{UserID: 1, ProductID: product.ID, Size: "free", Quantity: 2})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Available != 3 || view.Currency != "INR" {
		t.Fatalf("unexpected cart view: %+v", view)
	}

	_, err = cart.Upsert(UpsertCartItemInput{UserID: 1, ProductID: product.ID, Size: "free", Quantity: 2, Increment: true})
	var quantityErr *CartQuantityError
	if !errors.As(err, &quantityErr) || quantityErr.Available != 3 {
		t.Fatalf("expected only 3 in stock, got %v", err)
	}
	if !errors.Is(err, ErrInsufficientStock) || err.Error() != "insufficient stock: only 3 in stock" {
		t.Fatalf("unexpected error text: %v", err)
	}

	view, err = cart.Upsert(UpsertCartItemInput{UserID: 1, ProductID: product.ID, Size: "free", Quantity: 1, Increment: true})
	if err != nil || view.Items[0].Quantity != 3 {
		t.Fatalf("increment to limit failed: %+v err=%v", view, err)
	}
}

func TestCartGetReportsStockIssues(t *testing.T) {
	f := newReconciliationFixture(t)
	product := f.createProduct(t, &models.Product{Slug: "denim", PriceAmount: models.NewMoneyFromInt(1200), Stock: 2})
	cart := NewCartService(f.cartRepo, f.stock, "INR")
	if _, err := cart.Upsert(UpsertCartItemInput{UserID: 9, ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := f.db.Model(&models.Product{}).Where("id = ?", product.ID).Update("stock", 1).Error; err != nil {
		t.Fatalf("update stock failed: %v", err)
	}

	view, err := cart.Get(9)
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if !view.Items[0].StockIssue || len(view.Issues) != 1 || view.Issues[0].Available != 1 {
		t.Fatalf("expected stock issue, got %+v", view)
	}
	if !view.Subtotal.Equal(decimal.NewFromInt(2400)) {
		t.Fatalf("unexpected subtotal: %s", view.Subtotal.String())
	}

	view, err = cart.Remove(9, product.ID, "", "")
	if err != nil || len(view.Items) != 0 {
		t.Fatalf("remove failed: %+v err=%v", view, err)
	}
}
