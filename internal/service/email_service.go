package service

import (
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/threadline/storefront/internal/config"
	"github.com/threadline/storefront/internal/i18n"
	"github.com/threadline/storefront/internal/models"

	"github.com/google/uuid"
)

const smtpDialTimeout = 10 * time.Second

// smtpEnvelope 一次投递所需的全部信息
type smtpEnvelope struct {
	Addr     string
	Host     string
	Auth     smtp.Auth
	From     string
	To       []string
	Message  []byte
	Implicit bool // 465 端口直接 TLS
	StartTLS bool
}

// EmailService 交易邮件（支付确认、订单状态）
type EmailService struct {
	cfg  *config.EmailConfig
	send func(env smtpEnvelope) error
	now  func() time.Time
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg, send: deliverSMTP, now: time.Now}
}

// PaymentConfirmationEmailInput 支付确认邮件输入
type PaymentConfirmationEmailInput struct {
	OrderNo  string
	Amount   models.Money
	Currency string
}

// SendPaymentConfirmation 发送支付确认邮件
func (s *EmailService) SendPaymentConfirmation(toEmail string, input PaymentConfirmationEmailInput, locale string) error {
	subject, body := buildPaymentConfirmationContent(input, locale)
	return s.sendTextEmail(toEmail, subject, body)
}

// OrderStatusEmailInput 订单状态邮件输入
type OrderStatusEmailInput struct {
	OrderNo string
	Status  string
}

// SendOrderStatusEmail 发送订单状态通知
func (s *EmailService) SendOrderStatusEmail(toEmail string, input OrderStatusEmailInput, locale string) error {
	subject, body := buildOrderStatusContent(input, locale)
	return s.sendTextEmail(toEmail, subject, body)
}

func (s *EmailService) sendTextEmail(toEmail, subject, body string) error {
	if s == nil || s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	cfg := s.cfg
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return ErrEmailRecipientEmpty
	}
	recipient, err := mail.ParseAddress(toEmail)
	if err != nil {
		return ErrInvalidEmail
	}

	env := smtpEnvelope{
		Addr:     net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Host:     cfg.Host,
		From:     cfg.From,
		To:       []string{recipient.Address},
		Implicit: cfg.UseSSL,
		StartTLS: cfg.UseTLS && !cfg.UseSSL,
	}
	if cfg.Username != "" || cfg.Password != "" {
		env.Auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	env.Message = s.composeMessage(recipient.Address, subject, body)

	send := s.send
	if send == nil {
		send = deliverSMTP
	}
	return classifySMTPError(send(env))
}

func (s *EmailService) composeMessage(to, subject, body string) []byte {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	from := s.cfg.From
	if name := strings.TrimSpace(s.cfg.FromName); name != "" {
		from = (&mail.Address{Name: name, Address: s.cfg.From}).String()
	}
	domain := s.cfg.Host
	if at := strings.LastIndex(s.cfg.From, "@"); at >= 0 {
		domain = s.cfg.From[at+1:]
	}

	var b strings.Builder
	header := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("UTF-8", subject))
	header("Date", now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func buildPaymentConfirmationContent(input PaymentConfirmationEmailInput, locale string) (string, string) {
	locale = i18n.NormalizeLocale(locale)
	currency := strings.TrimSpace(input.Currency)
	if currency == "" {
		currency = "INR"
	}
	subject := i18n.Sprintf(locale, "email.payment_confirmed.subject", input.OrderNo)
	body := i18n.Sprintf(locale, "email.payment_confirmed.body", currency, input.Amount.String(), input.OrderNo)
	return subject, body
}

func buildOrderStatusContent(input OrderStatusEmailInput, locale string) (string, string) {
	locale = i18n.NormalizeLocale(locale)
	statusLabel := i18n.T(locale, "order.status."+strings.TrimSpace(input.Status))
	subject := i18n.Sprintf(locale, "email.order_status.subject", input.OrderNo, statusLabel)
	body := i18n.Sprintf(locale, "email.order_status.body", input.OrderNo, statusLabel)
	return subject, body
}

// deliverSMTP 建立连接（直连 TLS / STARTTLS / 明文）并投递一封邮件
func deliverSMTP(env smtpEnvelope) error {
	dialer := &net.Dialer{Timeout: smtpDialTimeout}
	var conn net.Conn
	var err error
	if env.Implicit {
		conn, err = tls.DialWithDialer(dialer, "tcp", env.Addr, &tls.Config{ServerName: env.Host})
	} else {
		conn, err = dialer.Dial("tcp", env.Addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", env.Addr, err)
	}
	client, err := smtp.NewClient(conn, env.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if env.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: env.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if env.Auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(env.Auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := client.Mail(env.From); err != nil {
		return err
	}
	for _, rcpt := range env.To {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(env.Message); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// rejectedRecipientHints 无结构化响应码时按文本识别收件人被拒
var rejectedRecipientHints = []string{
	"no such recipient",
	"no such user",
	"recipient not found",
	"recipient address rejected",
	"invalid recipient",
	"user unknown",
	"unknown mailbox",
	"mailbox unavailable",
}

// classifySMTPError 收件人永久失败（550/551/553）归为 ErrEmailRecipientRejected，worker 不再重试
func classifySMTPError(err error) error {
	if err == nil {
		return nil
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 550, 551, 553:
			return fmt.Errorf("%w: %s", ErrEmailRecipientRejected, protoErr.Msg)
		}
		return err
	}
	message := strings.ToLower(err.Error())
	for _, hint := range rejectedRecipientHints {
		if strings.Contains(message, hint) {
			return fmt.Errorf("%w: %s", ErrEmailRecipientRejected, err.Error())
		}
	}
	return err
}
