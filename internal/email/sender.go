package email

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/sadaltman/hackiiit-bsr/internal/config"
)

// Sender delivers a fully formatted email message (headers included).
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// SMTPSender implements Sender using Go's net/smtp package.
type SMTPSender struct {
	cfg  *config.Config
	auth smtp.Auth
	addr string
}

// NewSMTPSender creates a Sender. Falls back to a logging sender when no SMTP
// host is configured, so local development works without a mail server.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("SMTP host not configured, using logging email sender.")
		return &LoggingSender{cfg: cfg}
	}

	auth := smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	addr := fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort)

	return &SMTPSender{cfg: cfg, auth: auth, addr: addr}
}

// Send delivers the raw message via SMTP.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := smtp.SendMail(s.addr, s.auth, s.cfg.SmtpFromAddress, to, rawMessage); err != nil {
		log.Printf("Failed to send email via SMTP to %v: %v", to, err)
		return fmt.Errorf("smtp error: %w", err)
	}
	log.Printf("Email sent via SMTP to %v (Subject: %s)", to, subject)
	return nil
}

// LoggingSender logs email details instead of sending them.
type LoggingSender struct {
	cfg *config.Config
}

// Send logs the message.
func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	log.Printf("--- Email (logged, not sent) ---")
	log.Printf("To: %v", to)
	log.Printf("From: %s", s.cfg.SmtpFromAddress)
	log.Printf("Subject: %s", subject)
	log.Println(string(rawMessage))
	log.Println("--- End email ---")
	return nil
}
