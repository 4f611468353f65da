package domain

import "github.com/m04kA/AppointmentService/pkg/types"

// Slot represents a candidate start time for a booking
type Slot struct {
	Time      types.TimeString
	Available bool
}

// CalculateSlots returns every candidate start time within the business hours for a
// service of the given duration, in chronological order.
//
// Candidates start at Open and advance by StepMinutes; a candidate whose end would run
// past Close is not generated. A candidate is unavailable when [start, start+duration)
// overlaps any active existing appointment. Inactive appointments (cancelled, no_show)
// are ignored. The result is empty when the duration does not fit the window.
func CalculateSlots(hours BusinessHours, durationMinutes int, existing []*Appointment) []Slot {
	slots := make([]Slot, 0)
	if durationMinutes <= 0 || hours.StepMinutes <= 0 {
		return slots
	}

	open := hours.Open.Minutes()
	closing := hours.Close.Minutes()
	if open < 0 || closing < 0 {
		return slots
	}

	for start := open; start+durationMinutes <= closing; start += hours.StepMinutes {
		candidate, err := hours.Open.AddMinutes(start - open)
		if err != nil {
			break
		}
		slots = append(slots, Slot{
			Time:      candidate,
			Available: !overlapsAny(candidate, durationMinutes, existing),
		})
	}

	return slots
}

// FindSlot returns the slot starting at t, if it was generated
func FindSlot(slots []Slot, t types.TimeString) (Slot, bool) {
	for _, s := range slots {
		if s.Time == t {
			return s, true
		}
	}
	return Slot{}, false
}

func overlapsAny(start types.TimeString, durationMinutes int, existing []*Appointment) bool {
	for _, a := range existing {
		if a == nil || !a.IsActive() {
			continue
		}
		if a.Overlaps(start, durationMinutes) {
			return true
		}
	}
	return false
}
