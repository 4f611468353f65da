package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/m04kA/AppointmentService/internal/domain"
	appointmentRepo "github.com/m04kA/AppointmentService/internal/infra/storage/appointment"
	"github.com/m04kA/AppointmentService/internal/service/appointments/models"
	"github.com/m04kA/AppointmentService/pkg/ptr"
)

// Service сервис жизненного цикла записей: смена статуса, отмена, просмотр
type Service struct {
	appointmentRepo AppointmentRepository
	txManager       TransactionManager
	notifier        Notifier
	dispatcher      Dispatcher
	loc             *time.Location
	timeProvider    TimeProvider
	logger          Logger
}

// NewService создает новый экземпляр сервиса
func NewService(
	appointmentRepo AppointmentRepository,
	txManager TransactionManager,
	notifier Notifier,
	dispatcher Dispatcher,
	loc *time.Location,
	logger Logger,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		appointmentRepo: appointmentRepo,
		txManager:       txManager,
		notifier:        notifier,
		dispatcher:      dispatcher,
		loc:             loc,
		timeProvider:    &RealTimeProvider{},
		logger:          logger,
	}
}

// WithTimeProvider подменяет источник времени
func (s *Service) WithTimeProvider(tp TimeProvider) *Service {
	s.timeProvider = tp
	return s
}

// GetByID получает запись по ID вместе с историей статусов
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.AppointmentResponse, error) {
	s.logger.Info("GetByID: fetching appointment id=%s", id)

	appt, err := s.appointmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError("GetByID", id, err)
	}

	return models.FromDomainAppointment(appt), nil
}

// List получает записи по фильтру (период и набор статусов)
func (s *Service) List(ctx context.Context, req *models.ListRequest) (*models.AppointmentListResponse, error) {
	filter, err := req.ToDomainFilter()
	if err != nil {
		s.logger.Warn("List: invalid filter: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, fmt.Errorf("%w: from must not be after to", ErrInvalidInput)
	}

	appointments, err := s.appointmentRepo.Find(ctx, filter)
	if err != nil {
		s.logger.Error("List: repository error: %v", err)
		return nil, fmt.Errorf("%w: List - repository error: %v", ErrInternal, err)
	}

	s.logger.Info("List: fetched %d appointments", len(appointments))
	return models.FromDomainAppointmentList(appointments), nil
}

// ChangeStatus меняет статус по запросу администратора.
// Разрешён любой переход, включая выход из терминальных статусов.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, req *models.ChangeStatusRequest) (*models.AppointmentResponse, error) {
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		s.logger.Warn("ChangeStatus: invalid status=%q for appointment id=%s", req.Status, id)
		return nil, fmt.Errorf("%w: invalid status", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Actor) == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}
	if req.Notes != nil && utf8.RuneCountInString(*req.Notes) > domain.MaxNotesLength {
		return nil, fmt.Errorf("%w: notes are too long", ErrInvalidInput)
	}

	s.logger.Info("ChangeStatus: appointment id=%s to status=%s by %s", id, status, req.Actor)

	change := domain.StatusChange{
		Status: status,
		Actor:  req.Actor,
		Notes:  req.Notes,
		At:     s.timeProvider.Now(),
	}
	if status == domain.StatusCancelled {
		change.CancelledBy = ptr.Ptr(domain.CancelledByAdmin)
	}

	appt, err := s.changeStatus(ctx, id, change, nil)
	if err != nil {
		return nil, err
	}

	return models.FromDomainAppointment(appt), nil
}

// Cancel отменяет запись по запросу клиента.
// Email должен совпадать с email клиента без учёта регистра, прошедшие и уже отменённые записи не отменяются.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, req *models.CancelRequest) (*models.AppointmentResponse, error) {
	s.logger.Info("Cancel: cancelling appointment id=%s", id)

	reason := strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(reason) > domain.MaxCancellationReasonLength {
		return nil, fmt.Errorf("%w: reason is too long", ErrInvalidInput)
	}

	var cancelled *domain.Appointment
	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		appt, err := s.appointmentRepo.GetByID(txCtx, id)
		if err != nil {
			return s.mapRepoError("Cancel", id, err)
		}

		if !strings.EqualFold(strings.TrimSpace(req.Email), strings.TrimSpace(appt.Client.Email)) {
			s.logger.Warn("Cancel: email mismatch for appointment id=%s", id)
			return ErrAccessDenied
		}
		if appt.Status == domain.StatusCancelled {
			s.logger.Warn("Cancel: appointment id=%s is already cancelled", id)
			return fmt.Errorf("%w: already cancelled", ErrCannotCancel)
		}

		now := s.timeProvider.Now()
		if !appt.StartsAt(s.loc).After(now) {
			s.logger.Warn("Cancel: appointment id=%s is in the past", id)
			return fmt.Errorf("%w: appointment is in the past", ErrCannotCancel)
		}

		change := domain.StatusChange{
			Status:      domain.StatusCancelled,
			Actor:       domain.ClientActor,
			At:          now,
			CancelledBy: ptr.Ptr(domain.CancelledByClient),
		}
		if reason != "" {
			change.CancellationReason = &reason
			change.Notes = &reason
		}

		// Статус проверяется повторно в UPDATE, чтобы не отменить запись дважды при гонке
		cancelled, err = s.changeStatus(txCtx, id, change, cancellableStatuses())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch("cancellation_alert", func(ctx context.Context) error {
		return s.notifier.SendCancellationAlert(ctx, cancelled)
	})

	s.logger.Info("Cancel: successfully cancelled appointment id=%s", id)
	return models.FromDomainAppointment(cancelled), nil
}

// MarkNoShow переводит запись в no_show от имени планировщика.
// Переход возможен только из new и confirmed.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) error {
	_, err := s.changeStatus(ctx, id, domain.StatusChange{
		Status: domain.StatusNoShow,
		Actor:  domain.SystemActor,
		Notes:  ptr.Ptr("automatically marked after grace period"),
		At:     s.timeProvider.Now(),
	}, domain.UpcomingStatuses)
	return err
}

// changeStatus общий путь смены статуса: история дописывается в той же транзакции
func (s *Service) changeStatus(ctx context.Context, id uuid.UUID, change domain.StatusChange, allowedFrom []domain.AppointmentStatus) (*domain.Appointment, error) {
	var updated *domain.Appointment
	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		appt, err := s.appointmentRepo.ChangeStatus(txCtx, id, change, allowedFrom)
		if err != nil {
			return err
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, s.mapRepoError("changeStatus", id, err)
	}
	return updated, nil
}

// mapRepoError переводит ошибки репозитория в ошибки сервиса
func (s *Service) mapRepoError(op string, id uuid.UUID, err error) error {
	switch {
	case errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrCannotCancel),
		errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrStatusConflict),
		errors.Is(err, ErrSlotConflict),
		errors.Is(err, ErrInternal):
		return err
	case errors.Is(err, appointmentRepo.ErrAppointmentNotFound):
		s.logger.Warn("%s: appointment id=%s not found", op, id)
		return ErrAppointmentNotFound
	case errors.Is(err, appointmentRepo.ErrStatusConflict):
		s.logger.Warn("%s: status conflict for appointment id=%s: %v", op, id, err)
		return ErrStatusConflict
	case errors.Is(err, appointmentRepo.ErrSlotConflict):
		s.logger.Warn("%s: slot conflict for appointment id=%s", op, id)
		return ErrSlotConflict
	default:
		s.logger.Error("%s: repository error for appointment id=%s: %v", op, id, err)
		return fmt.Errorf("%w: %s - repository error: %v", ErrInternal, op, err)
	}
}

func cancellableStatuses() []domain.AppointmentStatus {
	out := make([]domain.AppointmentStatus, 0, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		if s != domain.StatusCancelled {
			out = append(out, s)
		}
	}
	return out
}
