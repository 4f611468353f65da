package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/AppointmentService/internal/domain"
	"github.com/m04kA/AppointmentService/pkg/joblock"
)

// AppointmentRepository выборка записей и отметка уведомлений
type AppointmentRepository interface {
	Find(ctx context.Context, filter domain.AppointmentFilter) ([]*domain.Appointment, error)
	MarkNotificationSent(ctx context.Context, id uuid.UUID, kind domain.NotificationKind, at time.Time) (bool, error)
}

// Notifier письма, которые отправляют задачи планировщика
type Notifier interface {
	SendReminder(ctx context.Context, appt *domain.Appointment) error
	SendFollowUp(ctx context.Context, appt *domain.Appointment) error
	SendDailySummary(ctx context.Context, date time.Time, appointments []*domain.Appointment) error
}

// StatusService переводит запись в no_show через общий путь смены статуса
type StatusService interface {
	MarkNoShow(ctx context.Context, id uuid.UUID) error
}

// Metrics метрики запусков задач
type Metrics interface {
	ObserveJobRun(job string, processed, failed int, duration time.Duration, err error)
	ObserveJobSkipped(job string)
}

// Locker распределённая блокировка запусков
type Locker = joblock.Locker

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
