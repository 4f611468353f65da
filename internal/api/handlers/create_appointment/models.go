package create_appointment

import (
	"time"

	"github.com/m04kA/AppointmentService/internal/domain"
	createAppointment "github.com/m04kA/AppointmentService/internal/usecase/create_appointment"
)

// CreateAppointmentRequest HTTP request model
type CreateAppointmentRequest struct {
	ServiceID       int64             `json:"serviceId"`
	AppointmentDate string            `json:"appointmentDate"` // "2025-10-15"
	AppointmentTime string            `json:"appointmentTime"` // "10:00"
	ClientInfo      ClientInfoRequest `json:"clientInfo"`
	TermsAccepted   bool              `json:"termsAccepted"`
}

// ClientInfoRequest контактные данные клиента
type ClientInfoRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Age            *int    `json:"age,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	Problem        *string `json:"problem,omitempty"`
	ReferralSource *string `json:"referralSource,omitempty"`
	EmailReminders *bool   `json:"emailReminders,omitempty"`
	SMSReminders   *bool   `json:"smsReminders,omitempty"`
}

// AppointmentResponse HTTP response model
type AppointmentResponse struct {
	ID              string  `json:"id"`
	ServiceID       int64   `json:"serviceId"`
	AppointmentDate string  `json:"appointmentDate"`
	AppointmentTime string  `json:"appointmentTime"`
	DurationMinutes int     `json:"durationMinutes"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	ClientName      string  `json:"clientName"`
	ClientEmail     string  `json:"clientEmail"`
	CreatedAt       string  `json:"createdAt"`
}

// ToUseCaseRequest конвертирует HTTP запрос в модель use case.
// Формат даты и времени проверяет use case, чтобы все ошибки полей вернулись одним списком
func (r *CreateAppointmentRequest) ToUseCaseRequest() *createAppointment.Request {
	return &createAppointment.Request{
		ServiceID: r.ServiceID,
		Date:      r.AppointmentDate,
		Time:      r.AppointmentTime,
		Client: createAppointment.ClientInput{
			Name:           r.ClientInfo.Name,
			Email:          r.ClientInfo.Email,
			Phone:          r.ClientInfo.Phone,
			Age:            r.ClientInfo.Age,
			Gender:         r.ClientInfo.Gender,
			Problem:        r.ClientInfo.Problem,
			ReferralSource: r.ClientInfo.ReferralSource,
			EmailReminders: r.ClientInfo.EmailReminders,
			SMSReminders:   r.ClientInfo.SMSReminders,
		},
		TermsAccepted: r.TermsAccepted,
	}
}

// FromUseCaseResponse конвертирует ответ use case в HTTP response
func FromUseCaseResponse(resp *createAppointment.Response) *AppointmentResponse {
	return &AppointmentResponse{
		ID:              resp.ID.String(),
		ServiceID:       resp.ServiceID,
		AppointmentDate: resp.Date.Format(domain.DateFormat),
		AppointmentTime: resp.Time.String(),
		DurationMinutes: resp.DurationMinutes,
		Price:           resp.Price,
		Currency:        resp.Currency,
		Status:          resp.Status,
		ClientName:      resp.ClientName,
		ClientEmail:     resp.ClientEmail,
		CreatedAt:       resp.CreatedAt.Format(time.RFC3339),
	}
}
