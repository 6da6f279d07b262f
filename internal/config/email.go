package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/resend/resend-go/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer sends a single HTML email. Both transports satisfy it; callers treat
// delivery as best-effort and never fail a request on a send error.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// NewMailer picks the transport from EMAIL_PROVIDER: "resend" for the Resend
// HTTP API, anything else (including unset) for plain SMTP.
func NewMailer(lc fx.Lifecycle, logger *zap.Logger) (Mailer, error) {
	provider := os.Getenv("EMAIL_PROVIDER")

	var mailer Mailer
	var err error
	if provider == "resend" {
		mailer, err = NewResendMailer(logger)
	} else {
		mailer, err = NewSMTPMailer(logger)
	}
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("email service initialized", zap.String("provider", provider))
			return nil
		},
	})
	return mailer, nil
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

func NewSMTPMailer(logger *zap.Logger) (*SMTPMailer, error) {
	host := os.Getenv("EMAIL_HOST")
	portStr := os.Getenv("EMAIL_PORT")
	user := os.Getenv("EMAIL_USER")
	pass := os.Getenv("EMAIL_PASS")
	from := os.Getenv("EMAIL_FROM")
	if host == "" || portStr == "" || from == "" {
		return nil, fmt.Errorf("smtp mailer: EMAIL_HOST, EMAIL_PORT and EMAIL_FROM must be set")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("smtp mailer: invalid EMAIL_PORT %q: %w", portStr, err)
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
		logger: logger,
	}, nil
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	m.logger.Debug("email sent", zap.String("to", to))
	return nil
}

type ResendMailer struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

func NewResendMailer(logger *zap.Logger) (*ResendMailer, error) {
	apiKey := os.Getenv("RESEND_API_KEY")
	from := os.Getenv("EMAIL_FROM")
	if apiKey == "" || from == "" {
		return nil, fmt.Errorf("resend mailer: RESEND_API_KEY and EMAIL_FROM must be set")
	}
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}, nil
}

func (m *ResendMailer) Send(to, subject, htmlBody string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}
	if _, err := m.client.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	m.logger.Debug("email sent", zap.String("to", to))
	return nil
}
