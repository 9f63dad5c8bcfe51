package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/kube-rca/todo/internal/config"
	"github.com/kube-rca/todo/internal/model"
)

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg model.MailMessage) error
}

// NewMailer picks SMTP when EMAIL_HOST is set, then the webhook, and
// falls back to logging the message.
func NewMailer(cfg config.MailConfig) Mailer {
	switch {
	case cfg.Host != "":
		return NewSMTPMailer(cfg)
	case cfg.WebhookURL != "":
		return NewWebhookMailer(cfg.WebhookURL)
	default:
		return LogMailer{}
	}
}

// SMTPMailer 구조체 정의
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	m := &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, cfg.Port),
		from: cfg.From,
		send: smtp.SendMail,
	}
	if cfg.User != "" {
		m.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, msg model.MailMessage) error {
	if err := m.send(m.addr, m.auth, m.from, []string{msg.To}, buildMessage(m.from, msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	slog.InfoContext(ctx, "email sent", "component", "mail", "to", msg.To, "subject", msg.Subject)
	return nil
}

func buildMessage(from string, msg model.MailMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: \"No Reply\" <%s>\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Text, "\n", "\r\n"))
	return []byte(b.String())
}

// WebhookMailer - 메일 대신 JSON으로 webhook에 전달
type WebhookMailer struct {
	url        string
	httpClient *http.Client
}

func NewWebhookMailer(url string) *WebhookMailer {
	return &WebhookMailer{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (m *WebhookMailer) Send(ctx context.Context, msg model.MailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail webhook returned status: %d", resp.StatusCode)
	}
	slog.InfoContext(ctx, "email delivered to webhook", "component", "mail", "to", msg.To, "subject", msg.Subject)
	return nil
}

// LogMailer only logs. Used when no transport is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg model.MailMessage) error {
	slog.InfoContext(ctx, "email not sent: no transport configured", "component", "mail",
		"to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}
