package domain

// Default business calendar
const (
	DefaultOpenTime    = "09:00"
	DefaultCloseTime   = "18:00"
	DefaultStepMinutes = 30
)

// Business validation constants
const (
	MaxNameLength               = 255
	MaxEmailLength              = 255
	MaxPhoneLength              = 32
	MaxGenderLength             = 32
	MaxReferralSourceLength     = 255
	MaxNotesLength              = 500
	MaxProblemLength            = 2000
	MaxCancellationReasonLength = 500
	MinClientAge                = 0
	MaxClientAge                = 130
)

// Time format constants
const (
	TimeFormat = "15:04"      // HH:MM
	DateFormat = "2006-01-02" // YYYY-MM-DD
)

// Actors recorded in status history
const (
	// SystemActor marks transitions made by background jobs
	SystemActor = "system:scheduler"

	// ClientActor marks transitions made by the client through the public API
	ClientActor = "client"

	// AdminActorPrefix is prepended to the admin id
	AdminActorPrefix = "admin:"
)

// DefaultCurrency is used when the catalog does not report one
const DefaultCurrency = "RON"

// AllStatuses lists every known appointment status
var AllStatuses = []AppointmentStatus{
	StatusNew,
	StatusConfirmed,
	StatusWaiting,
	StatusCancelled,
	StatusCompleted,
	StatusNoShow,
}

// InactiveStatuses statuses that free the slot for rebooking
var InactiveStatuses = []AppointmentStatus{
	StatusCancelled,
	StatusNoShow,
}

// ActiveStatuses statuses that occupy the slot
var ActiveStatuses = []AppointmentStatus{
	StatusNew,
	StatusConfirmed,
	StatusWaiting,
	StatusCompleted,
}

// UpcomingStatuses statuses of appointments that are still expected to take place
var UpcomingStatuses = []AppointmentStatus{
	StatusNew,
	StatusConfirmed,
}
