package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/balkly/backend/config"
)

// Mailer sends transactional email.
type Mailer interface {
	Send(to, subject, bodyHTML string) error
}

// SMTPMailer sends email over plain SMTP with optional auth.
type SMTPMailer struct {
	cfg    config.EmailConfig
	logger *zap.Logger
}

// NewSMTPMailer creates an SMTP mailer from config.
func NewSMTPMailer(cfg config.EmailConfig, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Send delivers a single HTML email.
func (m *SMTPMailer) Send(to, subject, bodyHTML string) error {
	if m.cfg.SMTPHost == "" {
		return fmt.Errorf("smtp not configured")
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	from := m.cfg.FromAddress

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", m.cfg.FromName, from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(bodyHTML)

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
