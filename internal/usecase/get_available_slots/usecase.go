package get_available_slots

import (
	"context"
	"errors"
	"fmt"

	"github.com/m04kA/AppointmentService/internal/domain"
	catalogClient "github.com/m04kA/AppointmentService/internal/integrations/catalog"
)

// UseCase use case для получения слотов на дату
type UseCase struct {
	appointmentRepo AppointmentRepository
	catalog         CatalogClient
	hours           domain.BusinessHours
	timeProvider    TimeProvider
	logger          Logger
}

// NewUseCase создает новый экземпляр use case
func NewUseCase(
	appointmentRepo AppointmentRepository,
	catalog CatalogClient,
	hours domain.BusinessHours,
	logger Logger,
) *UseCase {
	return &UseCase{
		appointmentRepo: appointmentRepo,
		catalog:         catalog,
		hours:           hours,
		timeProvider:    &RealTimeProvider{},
		logger:          logger,
	}
}

// WithTimeProvider подменяет источник времени
func (uc *UseCase) WithTimeProvider(tp TimeProvider) *UseCase {
	uc.timeProvider = tp
	return uc
}

// Execute возвращает все слоты дня с признаком доступности.
// В выходные возвращается пустой список, слоты сегодняшнего дня, время которых уже прошло, недоступны.
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req.ServiceID <= 0 {
		return nil, fmt.Errorf("%w: serviceId must be positive", ErrInvalidInput)
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}

	now := uc.timeProvider.Now()
	date := domain.DateOf(req.Date, req.Date.Location())
	today := uc.hours.Today(now)

	uc.logger.Info("GetAvailableSlots: service=%d, date=%s", req.ServiceID, date.Format(domain.DateFormat))

	if date.Before(today) {
		uc.logger.Warn("GetAvailableSlots: date %s is in the past", date.Format(domain.DateFormat))
		return nil, ErrInvalidDate
	}

	service, err := uc.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, catalogClient.ErrServiceNotFound) {
			uc.logger.Warn("GetAvailableSlots: service id=%d not found", req.ServiceID)
			return nil, ErrServiceUnavailable
		}
		uc.logger.Error("GetAvailableSlots: failed to get service id=%d: %v", req.ServiceID, err)
		return nil, fmt.Errorf("%w: failed to get service: %v", ErrInternal, err)
	}
	if !service.Bookable {
		uc.logger.Warn("GetAvailableSlots: service id=%d is not bookable", req.ServiceID)
		return nil, ErrServiceUnavailable
	}

	response := &Response{
		Date:            date,
		ServiceID:       service.ID,
		DurationMinutes: service.DurationMinutes,
		Slots:           []Slot{},
	}

	if uc.hours.IsClosedOn(date) {
		response.Closed = true
		return response, nil
	}

	existing, err := uc.appointmentRepo.Find(ctx, domain.AppointmentFilter{
		From:     &date,
		To:       &date,
		Statuses: domain.ActiveStatuses,
	})
	if err != nil {
		uc.logger.Error("GetAvailableSlots: failed to get appointments: %v", err)
		return nil, fmt.Errorf("%w: failed to get appointments: %v", ErrInternal, err)
	}

	isToday := date.Equal(today)
	for _, slot := range domain.CalculateSlots(uc.hours, service.DurationMinutes, existing) {
		available := slot.Available
		if isToday && !slot.Time.On(date, uc.hours.Loc()).After(now) {
			available = false
		}
		response.Slots = append(response.Slots, Slot{Time: slot.Time, Available: available})
	}

	return response, nil
}
