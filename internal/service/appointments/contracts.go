package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/AppointmentService/internal/domain"
)

// AppointmentRepository интерфейс репозитория записей
type AppointmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	Find(ctx context.Context, filter domain.AppointmentFilter) ([]*domain.Appointment, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, change domain.StatusChange, allowedFrom []domain.AppointmentStatus) (*domain.Appointment, error)
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier отправляет письмо администратору об отмене
type Notifier interface {
	SendCancellationAlert(ctx context.Context, appt *domain.Appointment) error
}

// Dispatcher выполняет отправку уведомлений в фоне
type Dispatcher interface {
	Dispatch(kind string, fn func(ctx context.Context) error) bool
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
