package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("razorpay config invalid")
	ErrRequestFailed    = errors.New("razorpay request failed")
	ErrResponseInvalid  = errors.New("razorpay response invalid")
	ErrSignatureInvalid = errors.New("razorpay signature invalid")
	ErrUnsupportedEvent = errors.New("razorpay event unsupported")
)

const (
	defaultAPIBaseURL = "https://api.razorpay.com"
	defaultTimeout    = 10 * time.Second

	// SignatureHeader webhook 签名头
	SignatureHeader = "X-Razorpay-Signature"
)

// 网关支付状态
const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusFailed     = "failed"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"JPY": {},
	"KRW": {},
	"VND": {},
	"CLP": {},
	"PYG": {},
	"UGX": {},
}

// Config 网关配置
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	APIBaseURL    string
	Timeout       time.Duration
}

func (c *Config) normalize() {
	c.KeyID = strings.TrimSpace(c.KeyID)
	c.KeySecret = strings.TrimSpace(c.KeySecret)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Client 网关客户端，进程内构造一次并注入各服务
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建网关客户端，httpClient 为空时按配置超时创建
func NewClient(cfg Config, httpClient *http.Client) *Client {
	cfg.normalize()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Enabled 是否配置了 API 凭据
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.KeyID != "" && c.cfg.KeySecret != ""
}

// KeyID 返回公开的 key id（前端拉起支付使用）
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.cfg.KeyID
}

// CreateOrderInput 创建网关订单输入
type CreateOrderInput struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order 网关订单
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Notes      Notes  `json:"notes"`
	CreatedAt  int64  `json:"created_at"`
}

// Payment 网关支付实体
type Payment struct {
	ID               string `json:"id"`
	Entity           string `json:"entity"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	Captured         bool   `json:"captured"`
	AmountRefunded   int64  `json:"amount_refunded"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	Notes            Notes  `json:"notes"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	CreatedAt        int64  `json:"created_at"`
}

// IsCaptured 支付是否已捕获
func (p Payment) IsCaptured() bool {
	return strings.EqualFold(p.Status, PaymentStatusCaptured)
}

// CreateOrder 创建网关订单
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: key_id and key_secret are required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}
	minor, err := ToMinorUnits(input.Amount, currency)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"amount":   minor,
		"currency": currency,
		"receipt":  strings.TrimSpace(input.Receipt),
	}
	if len(input.Notes) > 0 {
		payload["notes"] = input.Notes
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request failed", ErrRequestFailed)
	}

	respBody, statusCode, err := c.do(ctx, http.MethodPost, "/v1/orders", body)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(statusCode, respBody, "create order"); err != nil {
		return nil, err
	}
	var order Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("%w: decode order failed", ErrResponseInvalid)
	}
	if strings.TrimSpace(order.ID) == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrResponseInvalid)
	}
	return &order, nil
}

// FetchOrderPayments 按网关订单ID拉取全部支付（绕过 webhook 的主动查询）
func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]Payment, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: key_id and key_secret are required", ErrConfigInvalid)
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrConfigInvalid)
	}
	path := fmt.Sprintf("/v1/orders/%s/payments", url.PathEscape(orderID))
	respBody, statusCode, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(statusCode, respBody, "fetch order payments"); err != nil {
		return nil, err
	}
	var collection struct {
		Count int       `json:"count"`
		Items []Payment `json:"items"`
	}
	if err := json.Unmarshal(respBody, &collection); err != nil {
		return nil, fmt.Errorf("%w: decode payments failed", ErrResponseInvalid)
	}
	if collection.Items == nil {
		collection.Items = []Payment{}
	}
	return collection.Items, nil
}

// VerifyWebhookSignature 校验 webhook 签名（原始请求体的 HMAC-SHA256 十六进制，常量时间比较）
func (c *Client) VerifyWebhookSignature(body []byte, signature string) error {
	if c == nil || c.cfg.WebhookSecret == "" {
		return fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	return VerifySignature(c.cfg.WebhookSecret, body, signature)
}

// VerifySignature 校验签名
func VerifySignature(secret string, body []byte, signature string) error {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return fmt.Errorf("%w: signature header is required", ErrSignatureInvalid)
	}
	expected := ComputeSignature(secret, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}
	return nil
}

// ComputeSignature 计算原始请求体签名
func ComputeSignature(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// ToMinorUnits 主单位金额转最小货币单位
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	minor := amount.Shift(int32(currencyScale(currency)))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount precision is invalid", ErrConfigInvalid)
	}
	return minor.IntPart(), nil
}

// FromMinorUnits 最小货币单位转主单位金额
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(int32(-currencyScale(currency)))
}

func currencyScale(currency string) int {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return respBody, resp.StatusCode, nil
}

func checkStatus(statusCode int, body []byte, action string) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	var apiErr struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Description != "" {
		return fmt.Errorf("%w: %s status %d: %s (%s)", ErrRequestFailed, action, statusCode, apiErr.Error.Description, apiErr.Error.Code)
	}
	return fmt.Errorf("%w: %s status %d", ErrRequestFailed, action, statusCode)
}
