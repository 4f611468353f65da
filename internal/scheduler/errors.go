package scheduler

import "errors"

var (
	ErrLoadAppointments = errors.New("scheduler: failed to load appointments")
	ErrSendSummary      = errors.New("scheduler: failed to send daily summary")
)
