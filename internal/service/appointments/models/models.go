package models

import (
	"time"

	"github.com/m04kA/AppointmentService/internal/domain"
)

// Request модели

// CancelRequest запрос клиента на отмену записи
type CancelRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// ChangeStatusRequest запрос администратора на смену статуса
type ChangeStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
	Actor  string  `json:"-"` // Заполняется из контекста авторизации
}

// ListRequest запрос на список записей
type ListRequest struct {
	From     *time.Time // Включительно (опционально)
	To       *time.Time // Включительно (опционально)
	Statuses []string   // Пусто - любые статусы
	Limit    uint64
}

// ToDomainFilter конвертирует request в domain фильтр
func (r *ListRequest) ToDomainFilter() (domain.AppointmentFilter, error) {
	filter := domain.AppointmentFilter{
		From:  r.From,
		To:    r.To,
		Limit: r.Limit,
	}

	for _, raw := range r.Statuses {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	return filter, nil
}

// Response модели

// AppointmentResponse ответ с данными записи
type AppointmentResponse struct {
	ID              string  `json:"id"`
	ServiceID       int64   `json:"serviceId"`
	AppointmentDate string  `json:"appointmentDate"` // "2025-10-15"
	AppointmentTime string  `json:"appointmentTime"` // "10:00"
	DurationMinutes int     `json:"durationMinutes"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	PaymentStatus   string  `json:"paymentStatus"`
	Status          string  `json:"status"`

	ClientInfo        ClientInfo           `json:"clientInfo"`
	StatusHistory     []StatusHistoryEntry `json:"statusHistory,omitempty"`
	NotificationsSent NotificationsSent    `json:"notificationsSent"`

	TermsAccepted   bool      `json:"termsAccepted"`
	TermsAcceptedAt time.Time `json:"termsAcceptedAt"`

	CancellationReason *string    `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancelledBy        *string    `json:"cancelledBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClientInfo контактные данные клиента
type ClientInfo struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Age            *int    `json:"age,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	Problem        *string `json:"problem,omitempty"`
	ReferralSource *string `json:"referralSource,omitempty"`
	EmailReminders bool    `json:"emailReminders"`
	SMSReminders   bool    `json:"smsReminders"`
}

// StatusHistoryEntry запись истории статусов
type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
	Actor     string    `json:"actor"`
	Notes     *string   `json:"notes,omitempty"`
}

// NotificationFlag флаг отправки уведомления
type NotificationFlag struct {
	Sent   bool       `json:"sent"`
	SentAt *time.Time `json:"sentAt,omitempty"`
}

// NotificationsSent флаги всех уведомлений
type NotificationsSent struct {
	ConfirmationEmail NotificationFlag `json:"confirmationEmail"`
	Reminder24h       NotificationFlag `json:"reminder24h"`
	ReminderSMS       NotificationFlag `json:"reminderSms"`
	FollowUp          NotificationFlag `json:"followUp"`
}

// AppointmentListResponse ответ со списком записей
type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

// Методы конвертации

// FromDomainAppointment конвертирует domain модель в DTO
func FromDomainAppointment(a *domain.Appointment) *AppointmentResponse {
	if a == nil {
		return nil
	}

	resp := &AppointmentResponse{
		ID:              a.ID.String(),
		ServiceID:       a.ServiceID,
		AppointmentDate: a.Date.Format(domain.DateFormat),
		AppointmentTime: a.Time.String(),
		DurationMinutes: a.DurationMinutes(),
		Price:           a.Snapshot.Price(),
		Currency:        a.Snapshot.Currency(),
		PaymentStatus:   string(a.PaymentStatus),
		Status:          string(a.Status),
		ClientInfo: ClientInfo{
			Name:           a.Client.Name,
			Email:          a.Client.Email,
			Phone:          a.Client.Phone,
			Age:            a.Client.Age,
			Gender:         a.Client.Gender,
			Problem:        a.Client.Problem,
			ReferralSource: a.Client.ReferralSource,
			EmailReminders: a.Client.EmailReminders,
			SMSReminders:   a.Client.SMSReminders,
		},
		NotificationsSent: NotificationsSent{
			ConfirmationEmail: fromFlag(a.Notifications.ConfirmationEmail),
			Reminder24h:       fromFlag(a.Notifications.Reminder24h),
			ReminderSMS:       fromFlag(a.Notifications.ReminderSMS),
			FollowUp:          fromFlag(a.Notifications.FollowUp),
		},
		TermsAccepted:      a.TermsAccepted,
		TermsAcceptedAt:    a.TermsAcceptedAt,
		CancellationReason: a.CancellationReason,
		CancelledAt:        a.CancelledAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}

	if a.CancelledBy != nil {
		by := string(*a.CancelledBy)
		resp.CancelledBy = &by
	}

	for _, entry := range a.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, StatusHistoryEntry{
			Status:    string(entry.Status),
			ChangedAt: entry.ChangedAt,
			Actor:     entry.Actor,
			Notes:     entry.Notes,
		})
	}

	return resp
}

// FromDomainAppointmentList конвертирует список domain моделей в DTO
func FromDomainAppointmentList(appointments []*domain.Appointment) *AppointmentListResponse {
	resp := &AppointmentListResponse{
		Appointments: make([]AppointmentResponse, 0, len(appointments)),
	}

	for _, a := range appointments {
		if item := FromDomainAppointment(a); item != nil {
			resp.Appointments = append(resp.Appointments, *item)
		}
	}

	return resp
}

func fromFlag(f domain.NotificationFlag) NotificationFlag {
	return NotificationFlag{Sent: f.Sent, SentAt: f.SentAt}
}
