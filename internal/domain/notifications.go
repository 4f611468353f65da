package domain

import "time"

// NotificationKind identifies one of the per-appointment notification flags
type NotificationKind string

const (
	NotificationConfirmationEmail NotificationKind = "confirmation_email"
	NotificationReminder24h       NotificationKind = "reminder_24h"
	NotificationReminderSMS       NotificationKind = "reminder_sms"
	NotificationFollowUp          NotificationKind = "follow_up"
)

// IsValid returns true for a known kind
func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationConfirmationEmail, NotificationReminder24h, NotificationReminderSMS, NotificationFollowUp:
		return true
	}
	return false
}

// NotificationFlag records whether a notification has been sent
type NotificationFlag struct {
	Sent   bool
	SentAt *time.Time
}

// Notifications flags flip from false to true at most once
type Notifications struct {
	ConfirmationEmail NotificationFlag
	Reminder24h       NotificationFlag
	ReminderSMS       NotificationFlag
	FollowUp          NotificationFlag
}

// Get returns the flag for the given kind
func (n *Notifications) Get(kind NotificationKind) NotificationFlag {
	if f := n.flag(kind); f != nil {
		return *f
	}
	return NotificationFlag{}
}

// MarkSent sets the flag and returns true, or returns false if it was already set
func (n *Notifications) MarkSent(kind NotificationKind, at time.Time) bool {
	f := n.flag(kind)
	if f == nil || f.Sent {
		return false
	}
	f.Sent = true
	f.SentAt = &at
	return true
}

func (n *Notifications) flag(kind NotificationKind) *NotificationFlag {
	switch kind {
	case NotificationConfirmationEmail:
		return &n.ConfirmationEmail
	case NotificationReminder24h:
		return &n.Reminder24h
	case NotificationReminderSMS:
		return &n.ReminderSMS
	case NotificationFollowUp:
		return &n.FollowUp
	}
	return nil
}
