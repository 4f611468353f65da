package update_appointment_status

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/m04kA/AppointmentService/internal/api/handlers"
	"github.com/m04kA/AppointmentService/internal/api/middleware"
	"github.com/m04kA/AppointmentService/internal/service/appointments"
	"github.com/m04kA/AppointmentService/internal/service/appointments/models"
)

const (
	msgInvalidAppointmentID = "некорректный ID записи"
	msgInvalidRequestBody   = "некорректное тело запроса"
	msgMissingActor         = "отсутствует ID администратора"
	msgInvalidInput         = "некорректный статус или комментарий"
	msgNotFound             = "запись не найдена"
	msgStatusConflict       = "статус записи изменился, повторите запрос"
	msgSlotConflict         = "время записи уже занято другой активной записью"
)

type Handler struct {
	service AppointmentService
	logger  Logger
}

func NewHandler(service AppointmentService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle PATCH /api/v1/appointments/{id}/status
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.logger.Warn("PATCH /appointments/{id}/status - Invalid appointment ID: %v", err)
		handlers.RespondBadRequest(w, msgInvalidAppointmentID)
		return
	}

	// Актор кладётся в контекст middleware AdminAuth
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		h.logger.Warn("PATCH /appointments/{id}/status - Missing actor")
		handlers.RespondUnauthorized(w, msgMissingActor)
		return
	}

	var req models.ChangeStatusRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("PATCH /appointments/{id}/status - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}
	req.Actor = actor

	result, err := h.service.ChangeStatus(r.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, appointments.ErrInvalidInput):
			h.logger.Warn("PATCH /appointments/{id}/status - Invalid input: appointment_id=%s, error=%v", id, err)
			handlers.RespondBadRequest(w, msgInvalidInput)

		case errors.Is(err, appointments.ErrAppointmentNotFound):
			h.logger.Warn("PATCH /appointments/{id}/status - Appointment not found: appointment_id=%s", id)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, appointments.ErrStatusConflict):
			handlers.RespondConflict(w, msgStatusConflict)

		case errors.Is(err, appointments.ErrSlotConflict):
			h.logger.Warn("PATCH /appointments/{id}/status - Slot conflict: appointment_id=%s, status=%s", id, req.Status)
			handlers.RespondConflict(w, msgSlotConflict)

		default:
			h.logger.Error("PATCH /appointments/{id}/status - Failed to change status: appointment_id=%s, error=%v", id, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("PATCH /appointments/{id}/status - Status changed successfully: appointment_id=%s, status=%s, actor=%s",
		id, result.Status, actor)
	handlers.RespondJSON(w, http.StatusOK, result)
}
