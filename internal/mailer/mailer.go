// Package mailer sends plain-text notification email over SMTP.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/investoscope/investoscope-backend/internal/config"
)

// Mailer sends email through a configured SMTP relay. A Mailer with no host
// configured silently refuses to send, so email stays optional.
type Mailer struct {
	cfg config.SMTPConfig
}

// New creates a Mailer from SMTP configuration.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Enabled reports whether an SMTP relay is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// Send delivers one plain-text message to the recipients.
func (m *Mailer) Send(to []string, subject, body string) error {
	if !m.Enabled() {
		return fmt.Errorf("SMTP relay not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
