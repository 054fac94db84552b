package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func newTestSender(t *testing.T) (*SMTPSender, *capturedMail) {
	t.Helper()
	sender, err := NewSMTPSender(Config{Host: "mail.test", Port: 2525, From: "no-reply@test"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	captured := &capturedMail{}
	sender.transport = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return nil
	}
	return sender, captured
}

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func TestSendCodeRendersTemplate(t *testing.T) {
	sender, captured := newTestSender(t)

	expires := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	if err := sender.SendCode(context.Background(), "a@x.com", "123456", expires); err != nil {
		t.Fatalf("send code: %v", err)
	}

	if captured.addr != "mail.test:2525" {
		t.Fatalf("addr = %q", captured.addr)
	}
	if len(captured.to) != 1 || captured.to[0] != "a@x.com" {
		t.Fatalf("to = %v", captured.to)
	}
	if !strings.Contains(captured.msg, "123456") {
		t.Fatalf("message missing code: %q", captured.msg)
	}
	if !strings.Contains(captured.msg, "Subject: Your Web Museum sign-in code") {
		t.Fatalf("message missing subject: %q", captured.msg)
	}
}

func TestSendLinkRendersURL(t *testing.T) {
	sender, captured := newTestSender(t)

	expires := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	if err := sender.SendLink(context.Background(), "a@x.com", "https://webmuseum.world/auth/link?token=t1", expires); err != nil {
		t.Fatalf("send link: %v", err)
	}

	if !strings.Contains(captured.msg, "https://webmuseum.world/auth/link?token=t1") {
		t.Fatalf("message missing link: %q", captured.msg)
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	sender, _ := newTestSender(t)
	if err := sender.SendCode(context.Background(), "  ", "123456", time.Now()); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestNewSMTPSenderRequiresHost(t *testing.T) {
	if _, err := NewSMTPSender(Config{}); err == nil {
		t.Fatal("expected error for missing host")
	}
}
