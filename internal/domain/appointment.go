package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m04kA/AppointmentService/pkg/types"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusNew       AppointmentStatus = "new"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusWaiting   AppointmentStatus = "waiting"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// ParseStatus converts a raw value into a known status
func ParseStatus(s string) (AppointmentStatus, error) {
	status := AppointmentStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range AllStatuses {
		if status == valid {
			return status, nil
		}
	}
	return "", ErrInvalidStatus
}

// IsTerminal returns true for statuses the scheduler never moves out of
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// IsActive returns true if an appointment in this status occupies its slot
func (s AppointmentStatus) IsActive() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// PaymentStatus represents the payment state of an appointment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// CancelledBy identifies who cancelled an appointment
type CancelledBy string

const (
	CancelledByClient CancelledBy = "client"
	CancelledByAdmin  CancelledBy = "admin"
)

// ClientInfo is the free-form contact data supplied by the client
type ClientInfo struct {
	Name           string
	Email          string
	Phone          string
	Age            *int
	Gender         *string
	Problem        *string
	ReferralSource *string

	EmailReminders bool
	SMSReminders   bool
}

// Snapshot holds the service terms copied at booking time.
// Later catalog edits never change an existing appointment.
type Snapshot struct {
	durationMinutes int
	price           float64
	currency        string
}

// NewSnapshot creates an immutable service snapshot
func NewSnapshot(durationMinutes int, price float64, currency string) Snapshot {
	return Snapshot{durationMinutes: durationMinutes, price: price, currency: currency}
}

func (s Snapshot) DurationMinutes() int { return s.durationMinutes }
func (s Snapshot) Price() float64 { return s.price }
func (s Snapshot) Currency() string { return s.currency }

// StatusHistoryEntry is one record of the append-only audit trail
type StatusHistoryEntry struct {
	ID        uuid.UUID
	Status    AppointmentStatus
	ChangedAt time.Time
	Actor     string
	Notes     *string
}

// StatusChange describes a transition to be applied to an appointment
type StatusChange struct {
	Status AppointmentStatus
	Actor  string
	Notes  *string
	At     time.Time

	// Set only for cancellations
	CancelledBy        *CancelledBy
	CancellationReason *string
}

// Appointment represents a booked consultation
type Appointment struct {
	ID        uuid.UUID
	ServiceID int64

	// Date is a calendar date (midnight UTC), Time is the wall-clock start in the business timezone
	Date time.Time
	Time types.TimeString

	Snapshot      Snapshot
	Client        ClientInfo
	Status        AppointmentStatus
	StatusHistory []StatusHistoryEntry
	PaymentStatus PaymentStatus
	Notifications Notifications

	TermsAccepted   bool
	TermsAcceptedAt time.Time

	CancellationReason *string
	CancelledAt        *time.Time
	CancelledBy        *CancelledBy

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DurationMinutes returns the snapshotted duration
func (a *Appointment) DurationMinutes() int {
	return a.Snapshot.DurationMinutes()
}

// IsActive returns true if the appointment occupies its slot
func (a *Appointment) IsActive() bool {
	return a.Status.IsActive()
}

// StartsAt returns the start instant in the given business timezone
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Time.On(a.Date, loc)
}

// EndsAt returns the end instant in the given business timezone
func (a *Appointment) EndsAt(loc *time.Location) time.Time {
	return a.StartsAt(loc).Add(time.Duration(a.DurationMinutes()) * time.Minute)
}

// Overlaps reports whether [start, start+duration) intersects this appointment's interval
func (a *Appointment) Overlaps(start types.TimeString, durationMinutes int) bool {
	existingStart := a.Time.Minutes()
	existingEnd := existingStart + a.DurationMinutes()
	candidateStart := start.Minutes()
	candidateEnd := candidateStart + durationMinutes
	return candidateStart < existingEnd && candidateEnd > existingStart
}

// ApplyStatus appends a history entry and moves the appointment to the new status.
// The last history entry always equals Status.
func (a *Appointment) ApplyStatus(change StatusChange) StatusHistoryEntry {
	// История не должна идти назад во времени даже при рассинхроне часов
	if n := len(a.StatusHistory); n > 0 && change.At.Before(a.StatusHistory[n-1].ChangedAt) {
		change.At = a.StatusHistory[n-1].ChangedAt
	}

	entry := StatusHistoryEntry{
		ID:        uuid.New(),
		Status:    change.Status,
		ChangedAt: change.At,
		Actor:     change.Actor,
		Notes:     change.Notes,
	}
	alreadyCancelled := a.Status == StatusCancelled

	a.StatusHistory = append(a.StatusHistory, entry)
	a.Status = change.Status
	a.UpdatedAt = change.At

	if change.Status == StatusCancelled {
		if a.CancelledAt == nil {
			at := change.At
			a.CancelledAt = &at
		}
		// Повторная отмена не переписывает, кто и почему отменил запись
		if !alreadyCancelled {
			if change.CancelledBy != nil {
				a.CancelledBy = change.CancelledBy
			}
			if change.CancellationReason != nil {
				a.CancellationReason = change.CancellationReason
			}
		}
	}

	return entry
}

// AppointmentFilter filter for appointment queries
type AppointmentFilter struct {
	From     *time.Time          // Inclusive start date (optional)
	To       *time.Time          // Inclusive end date (optional)
	Statuses []AppointmentStatus // Empty means any status

	// UnsentNotification keeps only appointments whose flag of this kind is not set yet
	UnsentNotification NotificationKind

	Limit uint64 // 0 = unlimited
}

// IsSingleDay returns true if the filter targets exactly one date
func (f AppointmentFilter) IsSingleDay() bool {
	return f.From != nil && f.To != nil && f.From.Equal(*f.To)
}
