package auth

import (
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/maestro-ai/maestro/pkg/config"
)

// Sender delivers verification emails.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender delivers over SMTP with PLAIN auth.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one message.
func (s *SMTPSender) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.cfg.From, to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// LogSender writes the message to the log instead of sending it. Active when
// no SMTP host is configured; the verification code is readable from the
// server log in development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "mail")}
}

// Send logs the message.
func (l *LogSender) Send(to, subject, body string) error {
	l.logger.Info("Email delivery skipped (no SMTP host configured)",
		"to", to, "subject", subject, "body", body)
	return nil
}
