package update_appointment_status

import (
	"context"

	"github.com/google/uuid"

	"github.com/m04kA/AppointmentService/internal/service/appointments/models"
)

type AppointmentService interface {
	ChangeStatus(ctx context.Context, id uuid.UUID, req *models.ChangeStatusRequest) (*models.AppointmentResponse, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
