package create_appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/AppointmentService/internal/domain"
	appointmentRepo "github.com/m04kA/AppointmentService/internal/infra/storage/appointment"
	catalogClient "github.com/m04kA/AppointmentService/internal/integrations/catalog"
	"github.com/m04kA/AppointmentService/pkg/ptr"
	"github.com/m04kA/AppointmentService/pkg/txmanager"
)

// Исходы бронирования для метрик
const (
	outcomeCreated            = "created"
	outcomeValidationError    = "validation_error"
	outcomeServiceUnavailable = "service_unavailable"
	outcomeSlotUnavailable    = "slot_unavailable"
	outcomeError              = "error"
)

// UseCase use case для создания записи
type UseCase struct {
	appointmentRepo AppointmentRepository
	catalog         CatalogClient
	notifier        Notifier
	dispatcher      Dispatcher
	txManager       TransactionManager
	metrics         Metrics
	hours           domain.BusinessHours
	timeProvider    TimeProvider
	logger          Logger
}

// NewUseCase создает новый экземпляр use case
func NewUseCase(
	appointmentRepo AppointmentRepository,
	catalog CatalogClient,
	notifier Notifier,
	dispatcher Dispatcher,
	txManager TransactionManager,
	metrics Metrics,
	hours domain.BusinessHours,
	logger Logger,
) *UseCase {
	return &UseCase{
		appointmentRepo: appointmentRepo,
		catalog:         catalog,
		notifier:        notifier,
		dispatcher:      dispatcher,
		txManager:       txManager,
		metrics:         metrics,
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

// Execute выполняет use case создания записи.
// Проверка слота и вставка выполняются в сериализуемой транзакции,
// письма отправляются асинхронно и не влияют на результат.
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*Response, error) {
	appt, err := uc.create(ctx, req)
	uc.metrics.ObserveBooking(outcome(err))
	if err != nil {
		return nil, err
	}

	uc.dispatchNotifications(appt)

	return &Response{
		ID:              appt.ID,
		ServiceID:       appt.ServiceID,
		Date:            appt.Date,
		Time:            appt.Time,
		DurationMinutes: appt.DurationMinutes(),
		Price:           appt.Snapshot.Price(),
		Currency:        appt.Snapshot.Currency(),
		Status:          string(appt.Status),
		ClientName:      appt.Client.Name,
		ClientEmail:     appt.Client.Email,
		CreatedAt:       appt.CreatedAt,
	}, nil
}

func (uc *UseCase) create(ctx context.Context, req *Request) (*domain.Appointment, error) {
	uc.logger.Info("CreateAppointment: service=%d, date=%s, time=%s", req.ServiceID, req.Date, req.Time)

	// 1. Валидация всех полей
	input, err := validateRequest(req)
	if err != nil {
		uc.logger.Warn("CreateAppointment: validation failed: %v", err)
		return nil, err
	}

	now := uc.timeProvider.Now()
	today := uc.hours.Today(now)

	// 2. Дата в прошлом - ошибка ввода, а не занятый слот
	if input.date.Before(today) {
		verr := &ValidationError{}
		verr.add("appointmentDate", "must not be in the past")
		uc.logger.Warn("CreateAppointment: date %s is in the past", req.Date)
		return nil, verr
	}

	// 3. Выходной или уже прошедшее сегодня время
	if uc.hours.IsClosedOn(input.date) {
		uc.logger.Warn("CreateAppointment: business is closed on %s", req.Date)
		return nil, fmt.Errorf("%w: closed on %s", ErrSlotUnavailable, input.date.Weekday())
	}
	if !input.time.On(input.date, uc.hours.Loc()).After(now) {
		uc.logger.Warn("CreateAppointment: slot %s %s already started", req.Date, input.time)
		return nil, fmt.Errorf("%w: slot is in the past", ErrSlotUnavailable)
	}

	// 4. Услуга из каталога
	service, err := uc.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, catalogClient.ErrServiceNotFound) {
			uc.logger.Warn("CreateAppointment: service id=%d not found", req.ServiceID)
			return nil, ErrServiceUnavailable
		}
		uc.logger.Error("CreateAppointment: failed to get service id=%d: %v", req.ServiceID, err)
		return nil, fmt.Errorf("%w: failed to get service: %v", ErrInternal, err)
	}
	if !service.Bookable {
		uc.logger.Warn("CreateAppointment: service id=%d is not bookable", req.ServiceID)
		return nil, ErrServiceUnavailable
	}

	appt := uc.newAppointment(req, input, service, now)

	// 5. Повторная проверка слота и вставка в сериализуемой транзакции
	err = uc.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		existing, err := uc.appointmentRepo.Find(txCtx, domain.AppointmentFilter{
			From:     &input.date,
			To:       &input.date,
			Statuses: domain.ActiveStatuses,
		})
		if err != nil {
			return fmt.Errorf("%w: failed to get appointments: %v", ErrInternal, err)
		}

		slots := domain.CalculateSlots(uc.hours, service.DurationMinutes, existing)
		slot, ok := domain.FindSlot(slots, input.time)
		if !ok || !slot.Available {
			return ErrSlotUnavailable
		}

		return uc.appointmentRepo.Create(txCtx, appt)
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, appointmentRepo.ErrSlotConflict),
		errors.Is(err, txmanager.ErrSerializationFailure):
		uc.logger.Warn("CreateAppointment: slot %s %s is not available: %v", req.Date, input.time, err)
		return nil, ErrSlotUnavailable
	case errors.Is(err, ErrInternal):
		uc.logger.Error("CreateAppointment: %v", err)
		return nil, err
	default:
		uc.logger.Error("CreateAppointment: failed to create appointment: %v", err)
		return nil, fmt.Errorf("%w: failed to create appointment: %v", ErrInternal, err)
	}

	uc.logger.Info("CreateAppointment: successfully created appointment id=%s", appt.ID)
	return appt, nil
}

// newAppointment собирает запись со снимком условий услуги и первой записью истории
func (uc *UseCase) newAppointment(req *Request, input *validatedRequest, service *catalogClient.Service, now time.Time) *domain.Appointment {
	currency := service.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	appt := &domain.Appointment{
		ID:        uuid.New(),
		ServiceID: service.ID,
		Date:      input.date,
		Time:      input.time,
		Snapshot:  domain.NewSnapshot(service.DurationMinutes, service.Price, currency),
		Client: domain.ClientInfo{
			Name:           strings.TrimSpace(req.Client.Name),
			Email:          strings.TrimSpace(req.Client.Email),
			Phone:          strings.TrimSpace(req.Client.Phone),
			Age:            req.Client.Age,
			Gender:         req.Client.Gender,
			Problem:        req.Client.Problem,
			ReferralSource: req.Client.ReferralSource,
			EmailReminders: ptr.ValueOr(req.Client.EmailReminders, true),
			SMSReminders:   ptr.ValueOr(req.Client.SMSReminders, false),
		},
		PaymentStatus:   domain.PaymentPending,
		TermsAccepted:   true,
		TermsAcceptedAt: now,
		CreatedAt:       now,
	}
	appt.ApplyStatus(domain.StatusChange{
		Status: domain.StatusNew,
		Actor:  domain.ClientActor,
		At:     now,
	})

	return appt
}

// dispatchNotifications ставит письма в очередь, ошибки только логируются
func (uc *UseCase) dispatchNotifications(appt *domain.Appointment) {
	uc.dispatcher.Dispatch(string(domain.NotificationConfirmationEmail), func(ctx context.Context) error {
		if err := uc.notifier.SendConfirmation(ctx, appt); err != nil {
			return err
		}
		if _, err := uc.appointmentRepo.MarkNotificationSent(ctx, appt.ID, domain.NotificationConfirmationEmail, uc.timeProvider.Now()); err != nil {
			uc.logger.Error("CreateAppointment: failed to mark confirmation sent for id=%s: %v", appt.ID, err)
		}
		return nil
	})

	uc.dispatcher.Dispatch("admin_new_appointment", func(ctx context.Context) error {
		return uc.notifier.SendAdminNewAppointmentAlert(ctx, appt)
	})
}

func outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return outcomeCreated
	case errors.As(err, &verr):
		return outcomeValidationError
	case errors.Is(err, ErrServiceUnavailable):
		return outcomeServiceUnavailable
	case errors.Is(err, ErrSlotUnavailable):
		return outcomeSlotUnavailable
	default:
		return outcomeError
	}
}
