package billing

import (
	"fmt"
	"time"

	"cooperative_billing/internal/domain/member"
)

// NextDueDate computes when a member's next monthly fee falls due.
//
// With confirmed monthly-fee history, the due date is the plan's billing day in the month after the
// most recent payment date, pushed one more month if that is already behind now. Without history it
// starts from the enrollment date and advances month by month until it is on or after now.
// The result is a calendar date (UTC midnight). It is pure: now is always supplied by the caller.
func NextDueDate(m *member.Member, plan *Plan, priorPayments []*Payment, now time.Time) (time.Time, error) {
	if plan.BillingDay < MinBillingDay || plan.BillingDay > MaxBillingDay {
		return time.Time{}, fmt.Errorf("plan %d: %w (got %d)", plan.ID, ErrInvalidBillingDay, plan.BillingDay)
	}
	today := DateOf(now)

	if last := LatestConfirmedMonthlyFee(priorPayments); last != nil {
		paid := DateOf(last.PaymentDate.Time)
		due := Date(paid.Year(), paid.Month()+1, plan.BillingDay)
		if due.Before(today) {
			due = addMonths(due, 1)
		}
		return due, nil
	}

	enrolled := DateOf(m.EnrolledAt)
	due := Date(enrolled.Year(), enrolled.Month(), plan.BillingDay)
	if enrolled.Day() > plan.BillingDay {
		due = addMonths(due, 1)
	}
	for due.Before(today) {
		due = addMonths(due, 1)
	}
	return due, nil
}

// NextCycleDueDate is NextDueDate moved past any month that already has a monthly-fee payment, so a
// cycle billed or paid ahead of time is never proposed again.
func NextCycleDueDate(m *member.Member, plan *Plan, payments []*Payment, now time.Time) (time.Time, error) {
	due, err := NextDueDate(m, plan, payments, now)
	if err != nil {
		return time.Time{}, err
	}
	for hasMonthlyFeeDueOn(payments, due) {
		due = addMonths(due, 1)
	}
	return due, nil
}

func hasMonthlyFeeDueOn(payments []*Payment, due time.Time) bool {
	for _, p := range payments {
		if p.Type == PaymentTypeMonthlyFee && DateOf(p.DueDate).Equal(due) {
			return true
		}
	}
	return false
}

// LatestConfirmedMonthlyFee returns the confirmed monthly-fee payment with the latest payment date,
// or nil if there is none.
func LatestConfirmedMonthlyFee(payments []*Payment) *Payment {
	var latest *Payment
	for _, p := range payments {
		if p.Type != PaymentTypeMonthlyFee || !p.IsConfirmed() || !p.PaymentDate.Valid {
			continue
		}
		if latest == nil || p.PaymentDate.Time.After(latest.PaymentDate.Time) {
			latest = p
		}
	}
	return latest
}
