package notifier

import (
	"context"
	"errors"
)

// EventKind selects the message template.
type EventKind string

const (
	EventReminderInitial  EventKind = "reminder_initial"
	EventReminderUrgent   EventKind = "reminder_urgent"
	EventReminderCritical EventKind = "reminder_critical"
	EventWelcome          EventKind = "welcome"
	EventTest             EventKind = "test"
)

var ErrUnknownEventKind = errors.New("unknown event kind")

func (k EventKind) Valid() bool {
	switch k {
	case EventReminderInitial, EventReminderUrgent, EventReminderCritical, EventWelcome, EventTest:
		return true
	}
	return false
}

// Recipient identifies who a notification is addressed to.
type Recipient struct {
	Email    string
	Name     string
	MemberID int64
}

// Variables are the template values supplied with an event.
type Variables map[string]string

// Template variable names.
const (
	VarMemberName      = "member_name"
	VarAssociateNumber = "associate_number"
	VarAmount          = "amount"
	VarDueDate         = "due_date"
	VarDaysOverdue     = "days_overdue"
	VarDaysUntilDue    = "days_until_due"
	VarPlanName        = "plan_name"
	VarBillingDay      = "billing_day" // welcome only
)

// Notifier delivers a templated message for an event over some channel (email today).
type Notifier interface {
	Send(ctx context.Context, kind EventKind, to Recipient, vars Variables) error
	// IsEnabled is false when the transport is not configured; nothing can be sent.
	IsEnabled() bool
}
