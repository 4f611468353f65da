package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/m04kA/AppointmentService/internal/domain"
)

// Виды уведомлений (метки метрик и логов)
const (
	KindConfirmation      = "confirmation"
	KindReminder          = "reminder_24h"
	KindFollowUp          = "follow_up"
	KindDailySummary      = "daily_summary"
	KindAdminNew          = "admin_new_appointment"
	KindAdminCancellation = "admin_cancellation"
)

var templates = template.Must(template.New("notify").Parse(`
{{define "confirmation.subject"}}Your appointment on {{.Date}} at {{.Time}}{{end}}
{{define "confirmation.body"}}Hello {{.ClientName}},

Your appointment is booked for {{.Date}} at {{.Time}} ({{.DurationMinutes}} minutes).
Price: {{.Price}} {{.Currency}}
Reference: {{.ID}}

To cancel, use the reference above together with this email address.
{{end}}

{{define "reminder.subject"}}Reminder: appointment tomorrow at {{.Time}}{{end}}
{{define "reminder.body"}}Hello {{.ClientName}},

This is a reminder of your appointment tomorrow, {{.Date}} at {{.Time}} ({{.DurationMinutes}} minutes).
Reference: {{.ID}}
{{end}}

{{define "followup.subject"}}How was your consultation?{{end}}
{{define "followup.body"}}Hello {{.ClientName}},

Thank you for visiting us on {{.Date}}. We would be glad to hear how you are doing
and to help you plan the next step.
{{end}}

{{define "admin_new.subject"}}New appointment: {{.Date}} {{.Time}}{{end}}
{{define "admin_new.body"}}New appointment {{.ID}}
Service: {{.ServiceID}}
When: {{.Date}} {{.Time}} ({{.DurationMinutes}} minutes)
Client: {{.ClientName}} <{{.ClientEmail}}>, {{.ClientPhone}}
{{- if .Problem}}
Problem: {{.Problem}}{{end}}
{{end}}

{{define "admin_cancel.subject"}}Appointment cancelled: {{.Date}} {{.Time}}{{end}}
{{define "admin_cancel.body"}}Appointment {{.ID}} was cancelled{{if .CancelledBy}} by {{.CancelledBy}}{{end}}.
When: {{.Date}} {{.Time}}
Client: {{.ClientName}} <{{.ClientEmail}}>, {{.ClientPhone}}
{{- if .Reason}}
Reason: {{.Reason}}{{end}}
{{end}}

{{define "summary.subject"}}Appointments for {{.Date}}: {{len .Items}}{{end}}
{{define "summary.body"}}Appointments for {{.Date}}:
{{range .Items}}
{{.Time}}  {{.ClientName}} ({{.ClientPhone}})  {{.DurationMinutes}} min  [{{.Status}}]{{end}}
{{end}}
`))

// appointmentView данные записи для шаблонов
type appointmentView struct {
	ID              string
	ServiceID       int64
	Date            string
	Time            string
	DurationMinutes int
	Price           string
	Currency        string
	Status          string
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	Problem         string
	Reason          string
	CancelledBy     string
}

type summaryView struct {
	Date  string
	Items []appointmentView
}

func newAppointmentView(a *domain.Appointment) appointmentView {
	view := appointmentView{
		ID:              a.ID.String(),
		ServiceID:       a.ServiceID,
		Date:            a.Date.Format(domain.DateFormat),
		Time:            a.Time.String(),
		DurationMinutes: a.DurationMinutes(),
		Price:           fmt.Sprintf("%.2f", a.Snapshot.Price()),
		Currency:        a.Snapshot.Currency(),
		Status:          string(a.Status),
		ClientName:      a.Client.Name,
		ClientEmail:     a.Client.Email,
		ClientPhone:     a.Client.Phone,
	}
	if a.Client.Problem != nil {
		view.Problem = *a.Client.Problem
	}
	if a.CancellationReason != nil {
		view.Reason = *a.CancellationReason
	}
	if a.CancelledBy != nil {
		view.CancelledBy = string(*a.CancelledBy)
	}
	return view
}

// EmailNotifier формирует письма о записях и отправляет их через EmailSender
type EmailNotifier struct {
	sender     EmailSender
	adminEmail string
	metrics    Metrics
	logger     Logger
}

// NewEmailNotifier создает notifier. adminEmail получает сводки и оповещения
func NewEmailNotifier(sender EmailSender, adminEmail string, metrics Metrics, logger Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:     sender,
		adminEmail: adminEmail,
		metrics:    metrics,
		logger:     logger,
	}
}

// SendConfirmation письмо клиенту о созданной записи
func (n *EmailNotifier) SendConfirmation(ctx context.Context, a *domain.Appointment) error {
	return n.send(ctx, KindConfirmation, a.Client.Email, a.Client.Name, "confirmation", newAppointmentView(a))
}

// SendReminder напоминание клиенту за сутки
func (n *EmailNotifier) SendReminder(ctx context.Context, a *domain.Appointment) error {
	return n.send(ctx, KindReminder, a.Client.Email, a.Client.Name, "reminder", newAppointmentView(a))
}

// SendFollowUp письмо клиенту на следующий день после консультации
func (n *EmailNotifier) SendFollowUp(ctx context.Context, a *domain.Appointment) error {
	return n.send(ctx, KindFollowUp, a.Client.Email, a.Client.Name, "followup", newAppointmentView(a))
}

// SendDailySummary сводка записей на день для администратора
func (n *EmailNotifier) SendDailySummary(ctx context.Context, date time.Time, appointments []*domain.Appointment) error {
	view := summaryView{Date: date.Format(domain.DateFormat)}
	for _, a := range appointments {
		view.Items = append(view.Items, newAppointmentView(a))
	}
	return n.send(ctx, KindDailySummary, n.adminEmail, "", "summary", view)
}

// SendAdminNewAppointmentAlert оповещение администратора о новой записи
func (n *EmailNotifier) SendAdminNewAppointmentAlert(ctx context.Context, a *domain.Appointment) error {
	return n.send(ctx, KindAdminNew, n.adminEmail, "", "admin_new", newAppointmentView(a))
}

// SendCancellationAlert оповещение администратора об отмене
func (n *EmailNotifier) SendCancellationAlert(ctx context.Context, a *domain.Appointment) error {
	return n.send(ctx, KindAdminCancellation, n.adminEmail, "", "admin_cancel", newAppointmentView(a))
}

func (n *EmailNotifier) send(ctx context.Context, kind, to, toName, tmpl string, data interface{}) (err error) {
	defer func() {
		if n.metrics != nil {
			n.metrics.ObserveNotification(kind, err)
		}
	}()

	if to == "" {
		return fmt.Errorf("%w: %s: %v", ErrDeliveryFailed, kind, ErrNoRecipient)
	}

	subject, err := render(tmpl+".subject", data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeliveryFailed, kind, err)
	}
	body, err := render(tmpl+".body", data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeliveryFailed, kind, err)
	}

	if err := n.sender.Send(ctx, EmailMessage{To: to, ToName: toName, Subject: subject, Body: body}); err != nil {
		n.logger.Error("Notifier: %s to %s failed: %v", kind, to, err)
		return fmt.Errorf("%w: %s: %v", ErrDeliveryFailed, kind, err)
	}

	return nil
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRender, name, err)
	}
	return buf.String(), nil
}
