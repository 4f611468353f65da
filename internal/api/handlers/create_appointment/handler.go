package create_appointment

import (
	"errors"
	"net/http"

	"github.com/m04kA/AppointmentService/internal/api/handlers"
	createAppointment "github.com/m04kA/AppointmentService/internal/usecase/create_appointment"
)

const (
	msgInvalidRequestBody  = "некорректное тело запроса"
	msgValidationFailed    = "некорректные данные записи"
	msgSlotNotAvailable    = "выбранное время недоступно, обновите список слотов"
	msgServiceNotAvailable = "услуга недоступна для записи"
)

type Handler struct {
	useCase CreateAppointmentUseCase
	logger  Logger
}

func NewHandler(useCase CreateAppointmentUseCase, logger Logger) *Handler {
	return &Handler{
		useCase: useCase,
		logger:  logger,
	}
}

// Handle POST /api/v1/appointments
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("POST /appointments - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	result, err := h.useCase.Execute(r.Context(), req.ToUseCaseRequest())
	if err != nil {
		var validationErr *createAppointment.ValidationError
		switch {
		case errors.As(err, &validationErr):
			h.logger.Warn("POST /appointments - Validation failed: service_id=%d, error=%v", req.ServiceID, err)
			handlers.RespondErrorWithDetails(w, http.StatusBadRequest, msgValidationFailed, validationErr.Fields)

		case errors.Is(err, createAppointment.ErrSlotUnavailable):
			h.logger.Warn("POST /appointments - Slot unavailable: service_id=%d, date=%s, time=%s",
				req.ServiceID, req.AppointmentDate, req.AppointmentTime)
			handlers.RespondConflict(w, msgSlotNotAvailable)

		case errors.Is(err, createAppointment.ErrServiceUnavailable):
			h.logger.Warn("POST /appointments - Service unavailable: service_id=%d", req.ServiceID)
			handlers.RespondError(w, http.StatusUnprocessableEntity, msgServiceNotAvailable)

		default:
			h.logger.Error("POST /appointments - Failed to create appointment: service_id=%d, error=%v", req.ServiceID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /appointments - Appointment created successfully: appointment_id=%s, service_id=%d, date=%s, time=%s",
		result.ID, result.ServiceID, req.AppointmentDate, result.Time)
	handlers.RespondJSON(w, http.StatusCreated, FromUseCaseResponse(result))
}
