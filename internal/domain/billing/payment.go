package billing

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one billable item for a member. For monthly fees a Payment is one due cycle.
type Payment struct {
	ID               int64
	MemberID         int64
	PlanID           int64
	Type             PaymentType
	Amount           decimal.Decimal
	DueDate          time.Time
	PaymentDate      sql.NullTime // Set only when Status becomes CONFIRMED
	Status           PaymentStatus
	ReminderAttempts int          // Reminders sent for this cycle
	LastReminderAt   sql.NullTime // When the last reminder for this cycle went out
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsOpen reports whether the payment still awaits confirmation.
func (p *Payment) IsOpen() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusOverdue
}

func (p *Payment) IsConfirmed() bool {
	return p.Status == PaymentStatusConfirmed
}

// IsPersisted is false for cycles synthesized by the engine that have not been stored yet.
func (p *Payment) IsPersisted() bool {
	return p.ID != 0
}

// RecordReminder bumps the attempt counter for the current cycle.
func (p *Payment) RecordReminder(at time.Time) {
	p.ReminderAttempts++
	p.LastReminderAt = sql.NullTime{Time: at, Valid: true}
}
