package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m04kA/AppointmentService/internal/domain"
	"github.com/m04kA/AppointmentService/internal/service/appointments"
)

// Имена задач (метки метрик, ключи блокировок)
const (
	JobReminder     = "reminder_24h"
	JobFollowUp     = "follow_up"
	JobDailySummary = "daily_summary"
	JobNoShow       = "no_show_sweep"
)

// ReminderJob напоминание за сутки клиентам, записанным на завтра
type ReminderJob struct {
	repo     AppointmentRepository
	notifier Notifier
	loc      *time.Location
	logger   Logger
}

// NewReminderJob создает задачу напоминаний
func NewReminderJob(repo AppointmentRepository, notifier Notifier, loc *time.Location, logger Logger) *ReminderJob {
	return &ReminderJob{repo: repo, notifier: notifier, loc: loc, logger: logger}
}

func (j *ReminderJob) Name() string { return JobReminder }

func (j *ReminderJob) Run(ctx context.Context, now time.Time) (Result, error) {
	tomorrow := domain.DateOf(now, j.loc).AddDate(0, 0, 1)

	appts, err := j.repo.Find(ctx, domain.AppointmentFilter{
		From:               &tomorrow,
		To:                 &tomorrow,
		Statuses:           domain.UpcomingStatuses,
		UnsentNotification: domain.NotificationReminder24h,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrLoadAppointments, JobReminder, err)
	}

	var result Result
	for _, appt := range appts {
		if !appt.Client.EmailReminders {
			continue
		}
		if err := notifyOnce(ctx, j.repo, appt, domain.NotificationReminder24h, now, j.notifier.SendReminder); err != nil {
			j.logger.Error("ReminderJob: appointment %s: %v", appt.ID, err)
			result.Failed++
			continue
		}
		result.Processed++
	}
	return result, nil
}

// FollowUpJob письмо клиентам, у которых вчера состоялась консультация
type FollowUpJob struct {
	repo     AppointmentRepository
	notifier Notifier
	loc      *time.Location
	logger   Logger
}

// NewFollowUpJob создает задачу follow-up писем
func NewFollowUpJob(repo AppointmentRepository, notifier Notifier, loc *time.Location, logger Logger) *FollowUpJob {
	return &FollowUpJob{repo: repo, notifier: notifier, loc: loc, logger: logger}
}

func (j *FollowUpJob) Name() string { return JobFollowUp }

func (j *FollowUpJob) Run(ctx context.Context, now time.Time) (Result, error) {
	yesterday := domain.DateOf(now, j.loc).AddDate(0, 0, -1)

	appts, err := j.repo.Find(ctx, domain.AppointmentFilter{
		From:               &yesterday,
		To:                 &yesterday,
		Statuses:           []domain.AppointmentStatus{domain.StatusCompleted},
		UnsentNotification: domain.NotificationFollowUp,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrLoadAppointments, JobFollowUp, err)
	}

	var result Result
	for _, appt := range appts {
		if err := notifyOnce(ctx, j.repo, appt, domain.NotificationFollowUp, now, j.notifier.SendFollowUp); err != nil {
			j.logger.Error("FollowUpJob: appointment %s: %v", appt.ID, err)
			result.Failed++
			continue
		}
		result.Processed++
	}
	return result, nil
}

// notifyOnce отправляет письмо и ставит флаг. Флаг ставится только после успешной отправки
func notifyOnce(
	ctx context.Context,
	repo AppointmentRepository,
	appt *domain.Appointment,
	kind domain.NotificationKind,
	now time.Time,
	send func(ctx context.Context, appt *domain.Appointment) error,
) error {
	if err := send(ctx, appt); err != nil {
		return err
	}
	if _, err := repo.MarkNotificationSent(ctx, appt.ID, kind, now); err != nil {
		return fmt.Errorf("sent but failed to mark %s: %w", kind, err)
	}
	return nil
}

// DailySummaryJob сводка записей на сегодня для администратора
type DailySummaryJob struct {
	repo     AppointmentRepository
	notifier Notifier
	loc      *time.Location
	logger   Logger
}

// NewDailySummaryJob создает задачу ежедневной сводки
func NewDailySummaryJob(repo AppointmentRepository, notifier Notifier, loc *time.Location, logger Logger) *DailySummaryJob {
	return &DailySummaryJob{repo: repo, notifier: notifier, loc: loc, logger: logger}
}

func (j *DailySummaryJob) Name() string { return JobDailySummary }

func (j *DailySummaryJob) Run(ctx context.Context, now time.Time) (Result, error) {
	today := domain.DateOf(now, j.loc)

	appts, err := j.repo.Find(ctx, domain.AppointmentFilter{From: &today, To: &today})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrLoadAppointments, JobDailySummary, err)
	}
	if len(appts) == 0 {
		j.logger.Info("DailySummaryJob: no appointments on %s, nothing to send", today.Format(domain.DateFormat))
		return Result{}, nil
	}

	if err := j.notifier.SendDailySummary(ctx, today, appts); err != nil {
		return Result{Failed: 1}, fmt.Errorf("%w: %v", ErrSendSummary, err)
	}
	return Result{Processed: 1}, nil
}

// NoShowJob переводит в no_show записи, которые закончились больше grace назад и так и не были отмечены
type NoShowJob struct {
	repo    AppointmentRepository
	service StatusService
	loc     *time.Location
	grace   time.Duration
	logger  Logger
}

// NewNoShowJob создает задачу отметки неявок
func NewNoShowJob(repo AppointmentRepository, service StatusService, loc *time.Location, grace time.Duration, logger Logger) *NoShowJob {
	return &NoShowJob{repo: repo, service: service, loc: loc, grace: grace, logger: logger}
}

func (j *NoShowJob) Name() string { return JobNoShow }

func (j *NoShowJob) Run(ctx context.Context, now time.Time) (Result, error) {
	today := domain.DateOf(now, j.loc)

	appts, err := j.repo.Find(ctx, domain.AppointmentFilter{
		To:       &today,
		Statuses: domain.UpcomingStatuses,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrLoadAppointments, JobNoShow, err)
	}

	var result Result
	for _, appt := range appts {
		if !appt.EndsAt(j.loc).Add(j.grace).Before(now) {
			continue
		}

		err := j.service.MarkNoShow(ctx, appt.ID)
		switch {
		case err == nil:
			result.Processed++
		case errors.Is(err, appointments.ErrStatusConflict):
			// статус уже сменили вручную
			j.logger.Info("NoShowJob: appointment %s changed concurrently, skipped", appt.ID)
		default:
			j.logger.Error("NoShowJob: appointment %s: %v", appt.ID, err)
			result.Failed++
		}
	}
	return result, nil
}
