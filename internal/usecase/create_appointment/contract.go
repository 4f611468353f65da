package create_appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/AppointmentService/internal/domain"
	"github.com/m04kA/AppointmentService/internal/integrations/catalog"
)

// AppointmentRepository интерфейс репозитория записей
type AppointmentRepository interface {
	Find(ctx context.Context, filter domain.AppointmentFilter) ([]*domain.Appointment, error)
	Create(ctx context.Context, appt *domain.Appointment) error
	MarkNotificationSent(ctx context.Context, id uuid.UUID, kind domain.NotificationKind, at time.Time) (bool, error)
}

// CatalogClient интерфейс клиента каталога услуг
type CatalogClient interface {
	GetService(ctx context.Context, serviceID int64) (*catalog.Service, error)
}

// Notifier отправляет письма о новой записи
type Notifier interface {
	SendConfirmation(ctx context.Context, appt *domain.Appointment) error
	SendAdminNewAppointmentAlert(ctx context.Context, appt *domain.Appointment) error
}

// Dispatcher выполняет отправку уведомлений в фоне, не блокируя запрос
type Dispatcher interface {
	Dispatch(kind string, fn func(ctx context.Context) error) bool
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics счетчики исходов бронирования
type Metrics interface {
	ObserveBooking(outcome string)
}

// TimeProvider интерфейс для получения текущего времени (для тестирования)
type TimeProvider interface {
	Now() time.Time
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// RealTimeProvider реальный провайдер времени для production
type RealTimeProvider struct{}

// Now возвращает текущее время
func (p *RealTimeProvider) Now() time.Time {
	return time.Now()
}
