package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinBillingDay = 1
	MaxBillingDay = 28 // Every month has a day 28, so due dates never need clamping
)

var ErrInvalidBillingDay = errors.New("billing day must be between 1 and 28")

// Plan is a subscription tier defining the monthly fee and the fixed billing day.
type Plan struct {
	ID         int64
	Name       string
	MonthlyFee decimal.Decimal
	BillingDay int
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the plan invariants the due-date arithmetic relies on.
func (p *Plan) Validate() error {
	if p.BillingDay < MinBillingDay || p.BillingDay > MaxBillingDay {
		return fmt.Errorf("plan %d: %w (got %d)", p.ID, ErrInvalidBillingDay, p.BillingDay)
	}
	if p.MonthlyFee.IsNegative() {
		return fmt.Errorf("plan %d: monthly fee must not be negative", p.ID)
	}
	return nil
}
