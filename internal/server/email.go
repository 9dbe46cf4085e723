// email.go - SMTP delivery of verification links.
package server

import (
	"fmt"
	"log"
	"net/smtp"
	"net/url"
)

// EmailConfig holds SMTP settings. When Enabled is false the service logs
// instead of sending, which keeps local development working without a
// mail server.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FromEmail    string
	Enabled      bool
}

// EmailService sends account emails.
type EmailService struct {
	config EmailConfig
}

func NewEmailService(cfg EmailConfig) *EmailService {
	if cfg.SMTPPort == "" {
		cfg.SMTPPort = "587"
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.SMTPUser
	}
	return &EmailService{config: cfg}
}

// SendVerificationEmail mails a verify-email link for the account.
func (s *EmailService) SendVerificationEmail(to, baseURL string) error {
	verifyURL := fmt.Sprintf("%s/verify-email?email=%s", baseURL, url.QueryEscape(to))

	subject := "Verify your email"
	body := fmt.Sprintf(
		"<p>Welcome! Verify your email address to enable downloads:</p>"+
			"<p><a href=%q>%s</a></p>",
		verifyURL, verifyURL,
	)

	return s.send(to, subject, body)
}

func (s *EmailService) send(to, subject, body string) error {
	if !s.config.Enabled {
		log.Printf("service=email enabled=false to=%s subject=%q", to, subject)
		return nil
	}

	if s.config.SMTPHost == "" || s.config.SMTPUser == "" || s.config.SMTPPassword == "" {
		return fmt.Errorf("smtp not configured")
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.config.FromEmail, to, subject, body,
	))

	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPassword, s.config.SMTPHost)
	addr := s.config.SMTPHost + ":" + s.config.SMTPPort
	if err := smtp.SendMail(addr, auth, s.config.FromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	log.Printf("service=email sent to=%s subject=%q", to, subject)
	return nil
}
