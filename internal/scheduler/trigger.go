package scheduler

import (
	"time"

	"github.com/m04kA/AppointmentService/internal/domain"
	"github.com/m04kA/AppointmentService/pkg/types"
)

// Trigger вычисляет момент следующего запуска строго после now.
// Для одного и того же now все экземпляры сервиса получают один и тот же момент,
// на этом держится ключ блокировки.
type Trigger interface {
	Next(now time.Time) time.Time
	String() string
}

type dailyTrigger struct {
	at  types.TimeString
	loc *time.Location
}

// DailyAt запуск раз в сутки в заданное время по часовому поясу бизнеса
func DailyAt(at types.TimeString, loc *time.Location) Trigger {
	if loc == nil {
		loc = time.UTC
	}
	return dailyTrigger{at: at, loc: loc}
}

func (t dailyTrigger) Next(now time.Time) time.Time {
	today := domain.DateOf(now, t.loc)
	next := t.at.On(today, t.loc)
	if !next.After(now) {
		next = t.at.On(today.AddDate(0, 0, 1), t.loc)
	}
	return next
}

func (t dailyTrigger) String() string {
	return "daily at " + t.at.String() + " " + t.loc.String()
}

type intervalTrigger struct {
	every time.Duration
}

// Every запуск с фиксированным интервалом, выровненным по границам интервала
func Every(d time.Duration) Trigger {
	if d <= 0 {
		d = time.Hour
	}
	return intervalTrigger{every: d}
}

func (t intervalTrigger) Next(now time.Time) time.Time {
	return now.Truncate(t.every).Add(t.every)
}

func (t intervalTrigger) String() string {
	return "every " + t.every.String()
}
