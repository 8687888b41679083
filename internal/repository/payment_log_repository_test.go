package repository

import (
	"testing"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/models"
)

func TestFindLatestOrderIDFromLogs(t *testing.T) {
	repo := NewPaymentLogRepository(openRepositoryTestDB(t))
	first := uint(7)
	second := uint(9)
	logs := []*models.PaymentLog{
		{OrderID: &first, RazorpayOrderID: "order_A", EventType: constants.PaymentEventOrderCreated, Source: constants.PaymentLogSourceCheckout, Verified: true},
		{PaymentID: "pay_A", RazorpayOrderID: "order_A", EventType: constants.PaymentEventCaptured, Source: constants.PaymentLogSourceWebhook},
		{OrderID: &second, PaymentID: "pay_B", EventType: constants.PaymentEventFailed, Source: constants.PaymentLogSourceWebhook},
	}
	for _, log := range logs {
		if err := repo.Create(log); err != nil {
			t.Fatalf("create log failed: %v", err)
		}
	}

	got, err := repo.FindLatestOrderID("pay_A", "order_A")
	if err != nil {
		t.Fatalf("find order id failed: %v", err)
	}
	if got != first {
		t.Fatalf("expected order %d, got %d", first, got)
	}
	got, _ = repo.FindLatestOrderID("pay_B", "")
	if got != second {
		t.Fatalf("expected order %d, got %d", second, got)
	}
	got, _ = repo.FindLatestOrderID("", "")
	if got != 0 {
		t.Fatalf("expected 0 without refs, got %d", got)
	}

	verified := true
	list, total, err := repo.List(PaymentLogListFilter{Verified: &verified, Page: 1, PageSize: 10})
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("expected one verified log, total=%d err=%v", total, err)
	}
}
