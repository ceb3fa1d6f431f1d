package utils

import (
	"fmt"
	"html"
	"strings"
	"wildlife-licensing-backend/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer delivers prepared messages. *gomail.Dialer satisfies it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Initialize the SMTP mailer once and store it in a global variable
var mailer *gomail.Dialer

// InitializeMailer sets up the SMTP dialer used by the email worker.
func InitializeMailer(host string, port int, username, password string) *gomail.Dialer {
	mailer = gomail.NewDialer(host, port, username, password)
	config.Logger.Info("Mailer initialized successfully", zap.String("host", host), zap.Int("port", port))
	return mailer
}

// GetMailer returns the initialized mailer
func GetMailer() *gomail.Dialer {
	return mailer
}

// SendEmail sends a plain text message with an HTML alternative.
func SendEmail(m Mailer, from, to, subject, body string) error {
	if m == nil {
		err := fmt.Errorf("mailer is not initialized")
		config.Logger.Error("Email send failed: mailer is not initialized",
			zap.String("to_email", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	msg.AddAlternative("text/html", htmlBody(subject, body))

	if err := m.DialAndSend(msg); err != nil {
		config.Logger.Error("Failed to send email via SMTP",
			zap.String("to_email", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	config.Logger.Info("Email sent successfully",
		zap.String("to_email", to),
		zap.String("subject", subject),
	)
	return nil
}

func htmlBody(title, body string) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head><body>")
	for _, paragraph := range strings.Split(body, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(paragraph))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
