// Package notify delivers templated email messages over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/benefits-cafeteria/internal/config"
)

// ErrNotConfigured is returned when SMTP settings are missing.
var ErrNotConfigured = errors.New("email config missing")

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
}

// EmailNotifier sends messages through an SMTP relay.
type EmailNotifier struct {
	cfg    config.EmailConfig
	logger *zap.Logger
	dial   func(m *gomail.Message) error
}

// NewEmailNotifier creates a notifier for the given SMTP settings.
func NewEmailNotifier(cfg config.EmailConfig, logger *zap.Logger) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg, logger: logger}
	n.dial = func(m *gomail.Message) error {
		d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
		return d.DialAndSend(m)
	}
	return n
}

// Send delivers msg to every recipient in one message.
func (n *EmailNotifier) Send(ctx context.Context, to []string, msg Message) error {
	if n.cfg.SMTPHost == "" || n.cfg.FromEmail == "" {
		return ErrNotConfigured
	}
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		n.logger.Warn("email recipient empty, skip notification", zap.String("subject", msg.Subject))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := n.dial(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	n.logger.Info("email sent", zap.Strings("to", recipients), zap.String("subject", msg.Subject))
	return nil
}
