package billing

import (
	"context"
	"errors"
)

// ErrDuplicateCycle is returned by CreatePayment when the member already has a monthly fee for that due date.
var ErrDuplicateCycle = errors.New("a monthly fee for this member and due date already exists")

// Repository defines operations for Plans and Payments.
type Repository interface {
	// Plan methods
	GetPlanByID(ctx context.Context, id int64) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)

	// Payment methods
	GetPaymentByID(ctx context.Context, id int64) (*Payment, error)
	ListPaymentsByMembers(ctx context.Context, memberIDs []int64) ([]*Payment, error)
	CreatePayment(ctx context.Context, p *Payment) error
	// UpdatePayment persists status, payment date and reminder state.
	UpdatePayment(ctx context.Context, p *Payment) error
}
