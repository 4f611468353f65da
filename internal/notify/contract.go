package notify

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

// EmailSender отправляет одно письмо. Реализации: SendGrid, SES, заглушка
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SESAPI часть клиента sesv2, нужная отправителю
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Metrics счетчики отправки уведомлений
type Metrics interface {
	ObserveNotification(kind string, err error)
}

// TimeProvider интерфейс для получения текущего времени
type TimeProvider interface {
	Now() time.Time
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
