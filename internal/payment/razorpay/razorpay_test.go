package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := ComputeSignature("whsec", body)

	if err := VerifySignature("whsec", body, sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := VerifySignature("whsec", body, " "+sig+" "); err != nil {
		t.Fatalf("padded signature rejected: %v", err)
	}
	if err := VerifySignature("other", body, sig); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for wrong secret, got %v", err)
	}
	tampered := []byte(`{"event":"payment.captured" }`)
	if err := VerifySignature("whsec", tampered, sig); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for modified body, got %v", err)
	}
	if err := VerifySignature("whsec", body, ""); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for empty header, got %v", err)
	}
}

func TestClientVerifyWebhookSignatureRequiresSecret(t *testing.T) {
	client := NewClient(Config{KeyID: "rzp_test", KeySecret: "secret"}, nil)
	if err := client.VerifyWebhookSignature([]byte("{}"), "abc"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestParseWebhookEventCaptured(t *testing.T) {
	payload := map[string]interface{}{
		"entity":     "event",
		"account_id": "acc_1",
		"event":      "payment.captured",
		"created_at": 1700000000,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       "pay_123",
					"amount":   129900,
					"currency": "INR",
					"status":   "captured",
					"order_id": "order_abc",
					"captured": true,
					"notes": map[string]interface{}{
						"order_id": 42,
						"order_no": "SF-1",
					},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}

	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse event failed: %v", err)
	}
	if event.Kind != EventPaymentCaptured {
		t.Fatalf("unexpected kind: %s", event.Kind)
	}
	if event.Payment.ID != "pay_123" || event.Payment.OrderID != "order_abc" {
		t.Fatalf("unexpected payment: %+v", event.Payment)
	}
	if got := event.Payment.Notes.Get("order_id"); got != "42" {
		t.Fatalf("numeric note should be stringified, got %q", got)
	}
	if !event.Payment.IsCaptured() {
		t.Fatalf("payment should be captured")
	}
}

func TestParseWebhookEventEmptyNotesArray(t *testing.T) {
	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_9","status":"failed","order_id":"order_9","notes":[]}}}}`)
	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse event failed: %v", err)
	}
	if event.Kind != EventPaymentFailed {
		t.Fatalf("unexpected kind: %s", event.Kind)
	}
	if len(event.Payment.Notes) != 0 {
		t.Fatalf("expected empty notes, got %+v", event.Payment.Notes)
	}
}

func TestParseWebhookEventUnsupported(t *testing.T) {
	event, err := ParseWebhookEvent([]byte(`{"event":"order.paid","payload":{}}`))
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("expected ErrUnsupportedEvent, got %v", err)
	}
	if event == nil || event.Event != "order.paid" {
		t.Fatalf("unsupported event should still carry its name, got %+v", event)
	}
}

func TestParseWebhookEventRejectsMissingPayment(t *testing.T) {
	_, err := ParseWebhookEvent([]byte(`{"event":"payment.captured","payload":{}}`))
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}
	if _, err := ParseWebhookEvent([]byte(`not json`)); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid for malformed body, got %v", err)
	}
}

func TestMinorUnitConversion(t *testing.T) {
	minor, err := ToMinorUnits(decimal.RequireFromString("1299.50"), "INR")
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if minor != 129950 {
		t.Fatalf("expected 129950, got %d", minor)
	}
	if _, err := ToMinorUnits(decimal.RequireFromString("10.005"), "INR"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected precision error, got %v", err)
	}
	if _, err := ToMinorUnits(decimal.Zero, "INR"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected zero amount error, got %v", err)
	}
	if got := FromMinorUnits(129950, "INR"); !got.Equal(decimal.RequireFromString("1299.5")) {
		t.Fatalf("unexpected major amount: %s", got)
	}
	if got := FromMinorUnits(500, "JPY"); !got.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("zero decimal currency should not shift, got %s", got)
	}
}

func TestCreateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test" || pass != "secret" {
			t.Errorf("missing basic auth")
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body failed: %v", err)
		}
		if body["amount"] != float64(249900) || body["currency"] != "INR" || body["receipt"] != "SF-100" {
			t.Errorf("unexpected body: %+v", body)
		}
		_, _ = w.Write([]byte(`{"id":"order_new","entity":"order","amount":249900,"currency":"INR","receipt":"SF-100","status":"created","notes":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{KeyID: "rzp_test", KeySecret: "secret", APIBaseURL: server.URL}, nil)
	order, err := client.CreateOrder(context.Background(), CreateOrderInput{
		Amount:   decimal.RequireFromString("2499"),
		Currency: "inr",
		Receipt:  "SF-100",
		Notes:    map[string]string{"order_id": "100"},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.ID != "order_new" || order.Amount != 249900 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestCreateOrderGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{KeyID: "rzp_test", KeySecret: "secret", APIBaseURL: server.URL}, nil)
	_, err := client.CreateOrder(context.Background(), CreateOrderInput{Amount: decimal.NewFromInt(1), Currency: "INR"})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}

func TestCreateOrderRequiresCredentials(t *testing.T) {
	client := NewClient(Config{}, nil)
	_, err := client.CreateOrder(context.Background(), CreateOrderInput{Amount: decimal.NewFromInt(1), Currency: "INR"})
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestFetchOrderPayments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders/order_abc/payments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"entity":"collection","count":2,"items":[
			{"id":"pay_1","status":"failed","amount":1000,"currency":"INR","order_id":"order_abc","notes":[]},
			{"id":"pay_2","status":"captured","amount":1000,"currency":"INR","order_id":"order_abc","notes":{"order_id":"7"}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(Config{KeyID: "rzp_test", KeySecret: "secret", APIBaseURL: server.URL}, nil)
	payments, err := client.FetchOrderPayments(context.Background(), "order_abc")
	if err != nil {
		t.Fatalf("fetch payments failed: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
	if payments[0].IsCaptured() || !payments[1].IsCaptured() {
		t.Fatalf("unexpected capture flags: %+v", payments)
	}
}

func TestFetchOrderPaymentsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		KeyID:      "rzp_test",
		KeySecret:  "secret",
		APIBaseURL: server.URL,
		Timeout:    20 * time.Millisecond,
	}, nil)
	_, err := client.FetchOrderPayments(context.Background(), "order_slow")
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed on timeout, got %v", err)
	}
}
