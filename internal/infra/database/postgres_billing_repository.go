package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cooperative_billing/internal/domain/billing"

	"github.com/lib/pq" // For pq.Array
)

var ErrPlanNotFound = errors.New("plan not found")
var ErrPaymentNotFound = errors.New("payment not found")
var ErrDuplicateCycle = billing.ErrDuplicateCycle

const (
	planColumns    = `id, name, monthly_fee, billing_day, is_active, created_at, updated_at`
	paymentColumns = `id, member_id, plan_id, payment_type, amount, due_date, payment_date, status, reminder_attempts, last_reminder_at, created_at, updated_at`
)

type PostgresBillingRepository struct {
	db *sql.DB
}

func NewPostgresBillingRepository(db *sql.DB) *PostgresBillingRepository {
	return &PostgresBillingRepository{db: db}
}

// --- Plan Methods ---

func scanPlan(row interface{ Scan(dest ...any) error }) (*billing.Plan, error) {
	p := &billing.Plan{}
	err := row.Scan(&p.ID, &p.Name, &p.MonthlyFee, &p.BillingDay, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PostgresBillingRepository) GetPlanByID(ctx context.Context, id int64) (*billing.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	p, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("error getting plan by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresBillingRepository) ListPlans(ctx context.Context) ([]*billing.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing plans: %w", err)
	}
	defer rows.Close()

	plans := make([]*billing.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}
	return plans, nil
}

// --- Payment Methods ---

func scanPayment(row interface{ Scan(dest ...any) error }) (*billing.Payment, error) {
	p := &billing.Payment{}
	err := row.Scan(
		&p.ID, &p.MemberID, &p.PlanID, &p.Type, &p.Amount, &p.DueDate, &p.PaymentDate,
		&p.Status, &p.ReminderAttempts, &p.LastReminderAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// Helper to scan multiple rows
func scanPayments(rows *sql.Rows) ([]*billing.Payment, error) {
	payments := make([]*billing.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return payments, nil
}

func (r *PostgresBillingRepository) GetPaymentByID(ctx context.Context, id int64) (*billing.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error getting payment by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresBillingRepository) ListPaymentsByMembers(ctx context.Context, memberIDs []int64) ([]*billing.Payment, error) {
	if len(memberIDs) == 0 {
		return []*billing.Payment{}, nil
	}
	query := `SELECT ` + paymentColumns + ` FROM payments
               WHERE member_id = ANY($1::bigint[])
               ORDER BY member_id, due_date`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(memberIDs))
	if err != nil {
		return nil, fmt.Errorf("error querying payments by members: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *PostgresBillingRepository) CreatePayment(ctx context.Context, p *billing.Payment) error {
	query := `INSERT INTO payments (member_id, plan_id, payment_type, amount, due_date, payment_date, status, reminder_attempts, last_reminder_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.MemberID, p.PlanID, p.Type, p.Amount, p.DueDate, p.PaymentDate, p.Status, p.ReminderAttempts, p.LastReminderAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return ErrDuplicateCycle
		}
		return fmt.Errorf("error creating payment: %w", err)
	}
	return nil
}

func (r *PostgresBillingRepository) UpdatePayment(ctx context.Context, p *billing.Payment) error {
	query := `UPDATE payments
               SET status = $1, payment_date = $2, reminder_attempts = $3, last_reminder_at = $4, updated_at = NOW()
               WHERE id = $5
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, p.Status, p.PaymentDate, p.ReminderAttempts, p.LastReminderAt, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("error updating payment: %w", err)
	}
	return nil
}
