package razorpay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EventKind 已识别的 webhook 事件
type EventKind string

const (
	EventPaymentCaptured EventKind = "payment.captured"
	EventPaymentFailed   EventKind = "payment.failed"
	EventPaymentRefunded EventKind = "payment.refunded"
)

// Refund 退款实体
type Refund struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// WebhookEvent 在信任边界上解析后的 webhook 事件
// Kind 决定哪些字段有意义：三种已识别事件均带 Payment，退款事件可能带 Refund
type WebhookEvent struct {
	Kind      EventKind
	Event     string
	AccountID string
	CreatedAt int64
	Payment   Payment
	Refund    *Refund
}

type rawEvent struct {
	Entity    string `json:"entity"`
	AccountID string `json:"account_id"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment *struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity Refund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// PeekEventName 仅读取事件名（用于签名校验失败时记录日志）
func PeekEventName(body []byte) string {
	var head struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return ""
	}
	return strings.TrimSpace(head.Event)
}

// ParseWebhookEvent 把原始请求体解析为带标签的事件
// 未识别的事件返回 ErrUnsupportedEvent，同时返回事件名便于记录
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode event failed", ErrResponseInvalid)
	}
	name := strings.TrimSpace(raw.Event)
	if name == "" {
		return nil, fmt.Errorf("%w: missing event", ErrResponseInvalid)
	}
	event := &WebhookEvent{
		Event:     name,
		AccountID: raw.AccountID,
		CreatedAt: raw.CreatedAt,
	}

	switch EventKind(name) {
	case EventPaymentCaptured, EventPaymentFailed, EventPaymentRefunded:
		if raw.Payload.Payment == nil || strings.TrimSpace(raw.Payload.Payment.Entity.ID) == "" {
			return event, fmt.Errorf("%w: missing payment entity", ErrResponseInvalid)
		}
		event.Kind = EventKind(name)
		event.Payment = raw.Payload.Payment.Entity
		if raw.Payload.Refund != nil {
			refund := raw.Payload.Refund.Entity
			event.Refund = &refund
		}
		return event, nil
	default:
		return event, fmt.Errorf("%w: %s", ErrUnsupportedEvent, name)
	}
}

// Notes 网关 notes 元数据；为空时网关返回 []，数值会被转成字符串
type Notes map[string]string

// UnmarshalJSON 兼容对象、空数组与 null
func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = Notes{}
		return nil
	}
	if trimmed[0] == '[' {
		var list []interface{}
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*n = Notes{}
		return nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for key, value := range raw {
		switch typed := value.(type) {
		case string:
			out[key] = strings.TrimSpace(typed)
		case float64:
			out[key] = strconv.FormatFloat(typed, 'f', -1, 64)
		case bool:
			out[key] = strconv.FormatBool(typed)
		}
	}
	*n = out
	return nil
}

// Get 读取 note 值
func (n Notes) Get(key string) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n[key])
}
