package domain

import (
	"time"

	"github.com/m04kA/AppointmentService/pkg/types"
)

// BusinessHours is the daily window in which slots are generated.
// The same hours apply every open day.
type BusinessHours struct {
	Open        types.TimeString
	Close       types.TimeString
	StepMinutes int
	ClosedDays  []time.Weekday
	Location    *time.Location
}

// DefaultBusinessHours returns 09:00-18:00 with a 30 minute step, closed on weekends
func DefaultBusinessHours(loc *time.Location) BusinessHours {
	return BusinessHours{
		Open:        types.MustTimeString(DefaultOpenTime),
		Close:       types.MustTimeString(DefaultCloseTime),
		StepMinutes: DefaultStepMinutes,
		ClosedDays:  []time.Weekday{time.Saturday, time.Sunday},
		Location:    loc,
	}
}

// IsClosedOn returns true if the business does not operate on the date's weekday
func (h BusinessHours) IsClosedOn(date time.Time) bool {
	weekday := date.Weekday()
	for _, d := range h.ClosedDays {
		if d == weekday {
			return true
		}
	}
	return false
}

// WindowMinutes returns the length of the daily window
func (h BusinessHours) WindowMinutes() int {
	return h.Close.Minutes() - h.Open.Minutes()
}

// Loc returns the business timezone (UTC when unset)
func (h BusinessHours) Loc() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// Today returns the current calendar date in the business timezone
func (h BusinessHours) Today(now time.Time) time.Time {
	return DateOf(now, h.Loc())
}

// DateOf returns the calendar date of t in loc as midnight UTC.
// Appointment dates are stored and compared in this form.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
