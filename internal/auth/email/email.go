// Package email delivers sign-in messages for the code and link channels.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/branding"
	"github.com/pistolinkr/webmuseum.world-sub000/internal/platform/config"
)

//go:embed templates/*.html
var templateFS embed.FS

// Sender delivers sign-in email. A nil Sender means email delivery is not
// configured and the channels that need it must fail fast.
type Sender interface {
	SendCode(ctx context.Context, to string, code string, expiresAt time.Time) error
	SendLink(ctx context.Context, to string, linkURL string, expiresAt time.Time) error
}

// Config controls SMTP delivery.
type Config struct {
	Host     string `env:"WEBMUSEUM_AUTH_SMTP_HOST"`
	Port     int    `env:"WEBMUSEUM_AUTH_SMTP_PORT"     envDefault:"587"`
	Username string `env:"WEBMUSEUM_AUTH_SMTP_USERNAME"`
	Password string `env:"WEBMUSEUM_AUTH_SMTP_PASSWORD"`
	From     string `env:"WEBMUSEUM_AUTH_SMTP_FROM"     envDefault:"no-reply@webmuseum.world"`
}

// LoadConfigFromEnv loads SMTP configuration and applies defensive defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = "no-reply@webmuseum.world"
	}
	return cfg
}

// Configured reports whether the config carries enough to reach a relay.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Host) != ""
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	addr      string
	auth      smtp.Auth
	from      string
	codeTmpl  *template.Template
	linkTmpl  *template.Template
	transport func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender builds a sender from SMTP configuration.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("smtp host is required")
	}
	codeTmpl, err := template.ParseFS(templateFS, "templates/code.html")
	if err != nil {
		return nil, fmt.Errorf("parse code template: %w", err)
	}
	linkTmpl, err := template.ParseFS(templateFS, "templates/link.html")
	if err != nil {
		return nil, fmt.Errorf("parse link template: %w", err)
	}

	sender := &SMTPSender{
		addr:      fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from:      cfg.From,
		codeTmpl:  codeTmpl,
		linkTmpl:  linkTmpl,
		transport: smtp.SendMail,
	}
	if cfg.Username != "" {
		sender.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return sender, nil
}

// SendCode delivers a one-time code email.
func (s *SMTPSender) SendCode(ctx context.Context, to string, code string, expiresAt time.Time) error {
	body, err := renderTemplate(s.codeTmpl, map[string]any{
		"Code":    code,
		"Expires": expiresAt.UTC().Format(time.Kitchen),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, fmt.Sprintf("Your %s sign-in code", branding.AppName), body)
}

// SendLink delivers a single-use sign-in link email.
func (s *SMTPSender) SendLink(ctx context.Context, to string, linkURL string, expiresAt time.Time) error {
	body, err := renderTemplate(s.linkTmpl, map[string]any{
		"LinkURL": linkURL,
		"Expires": expiresAt.UTC().Format(time.Kitchen),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, fmt.Sprintf("Sign in to %s", branding.AppName), body)
}

func (s *SMTPSender) send(ctx context.Context, to string, subject string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("recipient is required")
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(body)

	if err := s.transport(s.addr, s.auth, s.from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func renderTemplate(tmpl *template.Template, data map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}
	return buf.Bytes(), nil
}
