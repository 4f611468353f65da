package create_appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/AppointmentService/pkg/types"
)

// Request модель запроса на создание записи.
// Дата и время приходят строками, чтобы ошибки формата попадали в общий список полей.
type Request struct {
	ServiceID     int64
	Date          string // YYYY-MM-DD
	Time          string // HH:MM
	Client        ClientInput
	TermsAccepted bool
}

// ClientInput контактные данные клиента
type ClientInput struct {
	Name           string
	Email          string
	Phone          string
	Age            *int
	Gender         *string
	Problem        *string
	ReferralSource *string
	EmailReminders *bool // По умолчанию true
	SMSReminders   *bool // По умолчанию false
}

// Response краткая информация о созданной записи
type Response struct {
	ID              uuid.UUID
	ServiceID       int64
	Date            time.Time
	Time            types.TimeString
	DurationMinutes int
	Price           float64
	Currency        string
	Status          string
	ClientName      string
	ClientEmail     string
	CreatedAt       time.Time
}
