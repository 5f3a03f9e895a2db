// Package mailer wraps outbound email delivery. The rest of the system only
// depends on the Sender capability; delivery failures are the caller's to log
// and swallow.
package mailer

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Sender delivers a single email
type Sender interface {
	Send(toEmail, toName, subject, htmlBody, textBody string) error
}

// SendGrid is the sendgrid-backed Sender used in production
type SendGrid struct {
	APIKey      string
	FromAddress string
	FromName    string
}

// NewSendGrid creates a sendgrid-backed Sender
func NewSendGrid(apiKey, fromAddress, fromName string) *SendGrid {
	return &SendGrid{APIKey: apiKey, FromAddress: fromAddress, FromName: fromName}
}

// Send delivers one email through sendgrid
func (s *SendGrid) Send(toEmail, toName, subject, htmlBody, textBody string) error {
	if s.APIKey == "" {
		return fmt.Errorf("sendgrid api key not set")
	}

	from := mail.NewEmail(s.FromName, s.FromAddress)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, textBody, htmlBody)

	client := sendgrid.NewSendClient(s.APIKey)
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid status %d", response.StatusCode)
	}
	return nil
}
