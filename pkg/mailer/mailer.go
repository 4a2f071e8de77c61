// Package mailer sends transactional email for ticket lifecycle notifications.
package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

// Sender delivers a single email. Implementations must be safe for concurrent use.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPConfig holds connection settings for the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

type smtpSender struct {
	cfg    SMTPConfig
	logger zerolog.Logger
}

// NewSMTP constructs an SMTP-backed sender.
func NewSMTP(cfg SMTPConfig, logger zerolog.Logger) (Sender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and from address must be provided")
	}

	return &smtpSender{
		cfg:    cfg,
		logger: logger.With().Str("component", "smtp_sender").Logger(),
	}, nil
}

func (s *smtpSender) Send(to, subject, body string) error {
	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", s.cfg.From, to, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}

	s.logger.Debug().Str("to", to).Str("subject", subject).Msg("email dispatched")
	return nil
}

type nopSender struct{}

// NewNop returns a sender that discards all mail. Used when SMTP is not configured.
func NewNop() Sender {
	return nopSender{}
}

func (nopSender) Send(string, string, string) error { return nil }
