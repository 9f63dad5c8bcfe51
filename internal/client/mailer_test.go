package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/kube-rca/todo/internal/config"
	"github.com/kube-rca/todo/internal/model"
)

func TestNewMailer_Selection(t *testing.T) {
	if _, ok := NewMailer(config.MailConfig{Host: "smtp.test", Port: "587"}).(*SMTPMailer); !ok {
		t.Fatalf("expected SMTP mailer")
	}
	if _, ok := NewMailer(config.MailConfig{WebhookURL: "http://hook.test"}).(*WebhookMailer); !ok {
		t.Fatalf("expected webhook mailer")
	}
	if _, ok := NewMailer(config.MailConfig{}).(LogMailer); !ok {
		t.Fatalf("expected log mailer")
	}
}

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "smtp.test", Port: "2525", User: "u", Password: "p", From: "noreply@test.com"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		if a == nil {
			t.Errorf("expected auth when user is set")
		}
		return nil
	}

	err := m.Send(context.Background(), model.MailMessage{To: "a@test.com", Subject: "Hi", Text: "line1\nline2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddr != "smtp.test:2525" || gotFrom != "noreply@test.com" || len(gotTo) != 1 || gotTo[0] != "a@test.com" {
		t.Fatalf("unexpected envelope %s %s %v", gotAddr, gotFrom, gotTo)
	}
	msg := string(gotMsg)
	for _, want := range []string{"Subject: Hi\r\n", "To: a@test.com\r\n", "\r\n\r\nline1\r\nline2"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestWebhookMailer_Send(t *testing.T) {
	var got model.MailMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	msg := model.MailMessage{To: "a@test.com", Subject: "Verify", Text: "click"}
	if err := NewWebhookMailer(srv.URL).Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != msg {
		t.Fatalf("unexpected payload %+v", got)
	}

	fail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer fail.Close()
	if err := NewWebhookMailer(fail.URL).Send(context.Background(), msg); err == nil {
		t.Fatalf("expected error on 500")
	}
}
