package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/m04kA/AppointmentService/internal/domain"
	"github.com/m04kA/AppointmentService/pkg/dbmetrics"
	"github.com/m04kA/AppointmentService/pkg/psqlbuilder"
)

const (
	appointmentsTable = "appointments"
	historyTable      = "appointment_status_history"

	// SQLSTATE кодов, означающих конфликт слотов
	pqExclusionViolation   = "23P01"
	pqSerializationFailure = "40001"
)

var appointmentColumns = []string{
	"id",
	"service_id",
	"appointment_date",
	"appointment_time",
	"duration_minutes",
	"price",
	"currency",
	"payment_status",
	"client_name",
	"client_email",
	"client_phone",
	"client_age",
	"client_gender",
	"client_problem",
	"client_referral_source",
	"email_reminders",
	"sms_reminders",
	"status",
	"terms_accepted",
	"terms_accepted_at",
	"confirmation_email_sent",
	"confirmation_email_sent_at",
	"reminder_24h_sent",
	"reminder_24h_sent_at",
	"reminder_sms_sent",
	"reminder_sms_sent_at",
	"follow_up_sent",
	"follow_up_sent_at",
	"cancellation_reason",
	"cancelled_at",
	"cancelled_by",
	"created_at",
	"updated_at",
}

// Repository репозиторий для работы с записями на консультации
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// Create сохраняет новую запись вместе с её историей статусов.
// Должен вызываться внутри транзакции: запись и история пишутся атомарно.
//
// Пересечение с другой активной записью ловится exclusion constraint
// appointments_no_overlap и возвращается как ErrSlotConflict.
func (r *Repository) Create(ctx context.Context, appt *domain.Appointment) error {
	if !dbmetrics.IsInTransaction(ctx) {
		return fmt.Errorf("%w: Create", ErrTransactionRequired)
	}
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert(appointmentsTable).
		Columns(
			"id",
			"service_id",
			"appointment_date",
			"appointment_time",
			"duration_minutes",
			"price",
			"currency",
			"payment_status",
			"client_name",
			"client_email",
			"client_phone",
			"client_age",
			"client_gender",
			"client_problem",
			"client_referral_source",
			"email_reminders",
			"sms_reminders",
			"status",
			"terms_accepted",
			"terms_accepted_at",
			"created_at",
			"updated_at",
		).
		Values(
			appt.ID,
			appt.ServiceID,
			appt.Date,
			appt.Time,
			appt.Snapshot.DurationMinutes(),
			appt.Snapshot.Price(),
			appt.Snapshot.Currency(),
			appt.PaymentStatus,
			appt.Client.Name,
			appt.Client.Email,
			appt.Client.Phone,
			appt.Client.Age,
			appt.Client.Gender,
			appt.Client.Problem,
			appt.Client.ReferralSource,
			appt.Client.EmailReminders,
			appt.Client.SMSReminders,
			appt.Status,
			appt.TermsAccepted,
			appt.TermsAcceptedAt,
			appt.CreatedAt,
			appt.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		if conflict := mapConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}

	for _, entry := range appt.StatusHistory {
		if err := r.insertHistory(ctx, executor, appt.ID, entry); err != nil {
			return err
		}
	}

	return nil
}

// GetByID получает запись по ID вместе с полной историей статусов
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	return r.getByID(ctx, "GetByID", id, false)
}

// getByID с forUpdate блокирует строку записи до конца транзакции
func (r *Repository) getByID(ctx context.Context, op string, id uuid.UUID, forUpdate bool) (*domain.Appointment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(squirrel.Eq{"id": id})
	if forUpdate {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %v", ErrBuildQuery, op, err)
	}

	appt, err := scanAppointment(executor.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s - scan appointment: %v", ErrScanRow, op, err)
	}

	history, err := r.loadHistory(ctx, executor, appt.ID)
	if err != nil {
		return nil, err
	}
	appt.StatusHistory = history

	return appt, nil
}

// Find возвращает записи по фильтру, отсортированные по дате и времени начала.
// История статусов не загружается.
//
// Если в контексте есть транзакция и фильтр указывает ровно один день,
// строки блокируются через FOR UPDATE (используется при создании записи).
func (r *Repository) Find(ctx context.Context, filter domain.AppointmentFilter) ([]*domain.Appointment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(appointmentColumns...).
		From(appointmentsTable).
		OrderBy("appointment_date ASC", "appointment_time ASC")

	if filter.From != nil {
		selectBuilder = selectBuilder.Where(squirrel.GtOrEq{"appointment_date": *filter.From})
	}
	if filter.To != nil {
		selectBuilder = selectBuilder.Where(squirrel.LtOrEq{"appointment_date": *filter.To})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		selectBuilder = selectBuilder.Where(squirrel.Eq{"status": statuses})
	}
	if filter.UnsentNotification != "" {
		if !filter.UnsentNotification.IsValid() {
			return nil, fmt.Errorf("%w: Find - %q", ErrInvalidNotification, filter.UnsentNotification)
		}
		selectBuilder = selectBuilder.Where(squirrel.Eq{sentColumn(filter.UnsentNotification): false})
	}
	if filter.Limit > 0 {
		selectBuilder = selectBuilder.Limit(filter.Limit)
	}

	if dbmetrics.IsInTransaction(ctx) && filter.IsSingleDay() {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: Find - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: Find - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	appointments := make([]*domain.Appointment, 0)
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: Find - scan row: %v", ErrScanRow, err)
		}
		appointments = append(appointments, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: Find - rows error: %v", ErrScanRow, err)
	}

	return appointments, nil
}

// ChangeStatus переводит запись в новый статус и дописывает историю.
// Должен вызываться внутри транзакции.
//
// allowedFrom ограничивает исходные статусы: если текущий статус в него не входит,
// возвращается ErrStatusConflict. Пустой allowedFrom разрешает переход из любого статуса.
func (r *Repository) ChangeStatus(ctx context.Context, id uuid.UUID, change domain.StatusChange, allowedFrom []domain.AppointmentStatus) (*domain.Appointment, error) {
	if !dbmetrics.IsInTransaction(ctx) {
		return nil, fmt.Errorf("%w: ChangeStatus", ErrTransactionRequired)
	}
	executor := dbmetrics.GetExecutor(ctx, r.db)

	// Строка блокируется до чтения истории: параллельная смена статуса дождётся коммита
	// и увидит актуальные статус и историю
	current, err := r.getByID(ctx, "ChangeStatus", id, true)
	if err != nil {
		return nil, err
	}
	if len(allowedFrom) > 0 && !containsStatus(allowedFrom, current.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrStatusConflict, current.Status, change.Status)
	}

	entry := current.ApplyStatus(change)

	updateBuilder := psqlbuilder.Update(appointmentsTable).
		Set("status", current.Status).
		Set("updated_at", current.UpdatedAt).
		Set("cancelled_at", current.CancelledAt).
		Set("cancelled_by", current.CancelledBy).
		Set("cancellation_reason", current.CancellationReason).
		Where(squirrel.Eq{"id": id})

	if len(allowedFrom) > 0 {
		statuses := make([]string, len(allowedFrom))
		for i, s := range allowedFrom {
			statuses[i] = string(s)
		}
		updateBuilder = updateBuilder.Where(squirrel.Eq{"status": statuses})
	}

	query, args, err := updateBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: ChangeStatus - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		if conflict := mapConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("%w: ChangeStatus - execute update: %v", ErrExecQuery, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: ChangeStatus - get rows affected: %v", ErrExecQuery, err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: ChangeStatus - status changed concurrently", ErrStatusConflict)
	}

	if err := r.insertHistory(ctx, executor, id, entry); err != nil {
		return nil, err
	}

	return current, nil
}

// MarkNotificationSent выставляет флаг уведомления.
// Возвращает false, если флаг уже был выставлен (или записи нет): повторная отправка не нужна.
func (r *Repository) MarkNotificationSent(ctx context.Context, id uuid.UUID, kind domain.NotificationKind, at time.Time) (bool, error) {
	if !kind.IsValid() {
		return false, fmt.Errorf("%w: MarkNotificationSent - %q", ErrInvalidNotification, kind)
	}
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update(appointmentsTable).
		Set(sentColumn(kind), true).
		Set(sentColumn(kind)+"_at", at).
		Where(squirrel.Eq{"id": id, sentColumn(kind): false}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: MarkNotificationSent - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: MarkNotificationSent - execute update: %v", ErrExecQuery, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: MarkNotificationSent - get rows affected: %v", ErrExecQuery, err)
	}

	return rowsAffected > 0, nil
}

func (r *Repository) insertHistory(ctx context.Context, executor DBExecutor, appointmentID uuid.UUID, entry domain.StatusHistoryEntry) error {
	query, args, err := psqlbuilder.Insert(historyTable).
		Columns("id", "appointment_id", "status", "changed_at", "actor", "notes").
		Values(entry.ID, appointmentID, entry.Status, entry.ChangedAt, entry.Actor, entry.Notes).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: insertHistory - build insert query: %v", ErrBuildQuery, err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: insertHistory - execute insert: %v", ErrExecQuery, err)
	}
	return nil
}

func (r *Repository) loadHistory(ctx context.Context, executor DBExecutor, appointmentID uuid.UUID) ([]domain.StatusHistoryEntry, error) {
	query, args, err := psqlbuilder.Select("id", "status", "changed_at", "actor", "notes").
		From(historyTable).
		Where(squirrel.Eq{"appointment_id": appointmentID}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: loadHistory - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: loadHistory - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	history := make([]domain.StatusHistoryEntry, 0)
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.Status, &entry.ChangedAt, &entry.Actor, &entry.Notes); err != nil {
			return nil, fmt.Errorf("%w: loadHistory - scan row: %v", ErrScanRow, err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: loadHistory - rows error: %v", ErrScanRow, err)
	}

	return history, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAppointment сканирует строку в порядке appointmentColumns
func scanAppointment(row rowScanner) (*domain.Appointment, error) {
	var (
		appt     domain.Appointment
		date     time.Time
		duration int
		price    float64
		currency string
		n        = &appt.Notifications
	)

	err := row.Scan(
		&appt.ID,
		&appt.ServiceID,
		&date,
		&appt.Time,
		&duration,
		&price,
		&currency,
		&appt.PaymentStatus,
		&appt.Client.Name,
		&appt.Client.Email,
		&appt.Client.Phone,
		&appt.Client.Age,
		&appt.Client.Gender,
		&appt.Client.Problem,
		&appt.Client.ReferralSource,
		&appt.Client.EmailReminders,
		&appt.Client.SMSReminders,
		&appt.Status,
		&appt.TermsAccepted,
		&appt.TermsAcceptedAt,
		&n.ConfirmationEmail.Sent,
		&n.ConfirmationEmail.SentAt,
		&n.Reminder24h.Sent,
		&n.Reminder24h.SentAt,
		&n.ReminderSMS.Sent,
		&n.ReminderSMS.SentAt,
		&n.FollowUp.Sent,
		&n.FollowUp.SentAt,
		&appt.CancellationReason,
		&appt.CancelledAt,
		&appt.CancelledBy,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// DATE приходит с произвольной зоной драйвера, храним как полночь UTC
	appt.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	appt.Snapshot = domain.NewSnapshot(duration, price, currency)

	return &appt, nil
}

// mapConflict переводит ошибки PostgreSQL о пересечении слотов в ErrSlotConflict
func mapConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch pqErr.Code {
	case pqExclusionViolation, pqSerializationFailure:
		return fmt.Errorf("%w: %s", ErrSlotConflict, pqErr.Message)
	}
	return nil
}

func sentColumn(kind domain.NotificationKind) string {
	return string(kind) + "_sent"
}

func containsStatus(statuses []domain.AppointmentStatus, s domain.AppointmentStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
