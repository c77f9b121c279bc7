package notifications

import (
	"fmt"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer sends transactional email
type Mailer interface {
	Send(toEmail, subject, plainText, htmlContent string) error
}

// SendGridMailer sends email through the SendGrid API. The API key is read
// from SENDGRID_API_KEY on every send so a missing key degrades to a logged
// skip instead of a startup failure.
type SendGridMailer struct {
	FromName    string
	FromAddress string
}

// NewSendGridMailer returns a mailer with the MetroFound sender identity
func NewSendGridMailer() *SendGridMailer {
	return &SendGridMailer{
		FromName:    "MetroFound Lost and Found",
		FromAddress: "no-reply@metrofound.example",
	}
}

// Send delivers a single email
func (m *SendGridMailer) Send(toEmail, subject, plainText, htmlContent string) error {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	if apiKey == "" {
		zap.S().Errorw("SENDGRID_API_KEY not set, cannot send email", "email", toEmail)
		return fmt.Errorf("sendgrid api key not configured")
	}

	from := mail.NewEmail(m.FromName, m.FromAddress)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)

	client := sendgrid.NewSendClient(apiKey)
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send email", "email", toEmail, "error", err)
		return err
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		zap.S().Infow("email sent", "email", toEmail, "statusCode", response.StatusCode)
		return nil
	}
	zap.S().Warnw("email sent with non-2xx status", "email", toEmail, "statusCode", response.StatusCode, "body", response.Body)
	return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
}
