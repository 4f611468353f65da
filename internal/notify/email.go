package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridEndpoint = "/v3/mail/send"

// EmailMessage письмо в виде простого текста
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// SendGridConfig настройки SendGrid
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string // Пусто - https://api.sendgrid.com
}

// SendGridSender отправляет письма через SendGrid API
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    Logger
}

// NewSendGridSender создает отправителя SendGrid, без API ключа возвращает nil
func NewSendGridSender(cfg SendGridConfig, logger Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + sendGridEndpoint
	}
	return &SendGridSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send отправляет письмо через SendGrid
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return ErrNotConfigured
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, plainTextHTML(msg.Body))

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", response.StatusCode, response.Body)
	}

	s.logger.Info("SendGrid: email sent to=%s, subject=%q, status=%d", msg.To, msg.Subject, response.StatusCode)
	return nil
}

// plainTextHTML HTML-версия текстового письма: данные клиента экранируются, переносы строк сохраняются
func plainTextHTML(body string) string {
	return "<pre>" + html.EscapeString(body) + "</pre>"
}

// SESConfig настройки AWS SES
type SESConfig struct {
	FromEmail string
	FromName  string
}

// SESSender отправляет письма через AWS SES
type SESSender struct {
	client    SESAPI
	fromEmail string
	fromName  string
	logger    Logger
}

// NewSESSender создает отправителя SES, без клиента возвращает nil
func NewSESSender(client SESAPI, cfg SESConfig, logger Logger) *SESSender {
	if client == nil {
		return nil
	}
	return &SESSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send отправляет письмо через SES
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return ErrNotConfigured
	}

	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	output, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses: %w", err)
	}

	s.logger.Info("SES: email sent to=%s, subject=%q, messageId=%s", msg.To, msg.Subject, aws.ToString(output.MessageId))
	return nil
}

// StubEmailSender только логирует письма (локальная разработка)
type StubEmailSender struct {
	logger Logger
}

// NewStubEmailSender создает заглушку отправителя
func NewStubEmailSender(logger Logger) *StubEmailSender {
	return &StubEmailSender{logger: logger}
}

// Send логирует письмо вместо отправки
func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("StubEmailSender: would send email to=%s, subject=%q", msg.To, msg.Subject)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*SESSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
