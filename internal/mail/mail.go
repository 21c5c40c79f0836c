// Package mail sends transactional email over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"

	"circle/internal/config"
	"circle/internal/resilience"

	"github.com/sony/gobreaker"
	"gopkg.in/gomail.v2"
)

// Sender delivers a plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dialer is the subset of *gomail.Dialer used to deliver messages.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends through a gomail dialer guarded by a circuit breaker.
type SMTPSender struct {
	from    string
	dialer  Dialer
	breaker *gobreaker.CircuitBreaker
}

// NewSMTPSender builds a sender from the SMTP_* settings.
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return NewSender(cfg.SMTPFrom, gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword))
}

// NewSender wraps an arbitrary dialer.
func NewSender(from string, dialer Dialer) *SMTPSender {
	return &SMTPSender{
		from:    from,
		dialer:  dialer,
		breaker: resilience.NewBreaker("smtp"),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return errors.New("mail: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := resilience.Run(s.breaker, func() error { return s.dialer.DialAndSend(m) }); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}
