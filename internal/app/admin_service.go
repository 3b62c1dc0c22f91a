package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cooperative_billing/internal/domain/billing"
	"cooperative_billing/internal/domain/member"
	"cooperative_billing/internal/domain/notifier"

	"github.com/sirupsen/logrus"
)

var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")
var ErrPaymentAlreadyConfirmed = errors.New("payment is already confirmed")
var ErrPaymentBeforeEnrollment = errors.New("payment date is before the member's enrollment date")

type AdminService struct {
	memberRepo      member.Repository
	billingRepo     billing.Repository
	engine          *BillingEngine
	notifier        notifier.Notifier
	clock           billing.Clock
	adminTelegramID int64
	logger          *logrus.Entry
}

func NewAdminService(mr member.Repository, br billing.Repository, engine *BillingEngine, n notifier.Notifier, clock billing.Clock, adminID int64, logger *logrus.Entry) *AdminService {
	if clock == nil {
		clock = billing.SystemClock{}
	}
	return &AdminService{
		memberRepo:      mr,
		billingRepo:     br,
		engine:          engine,
		notifier:        n,
		clock:           clock,
		adminTelegramID: adminID,
		logger:          logger.WithField("component", "admin_service"),
	}
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if performingAdminID != s.adminTelegramID {
		s.logger.WithField("telegram_id", performingAdminID).Warn("Unauthorized admin action attempt")
		return ErrAdminNotAuthorized
	}
	return nil
}

// ConfirmPayment records that a payment was received on paidOn (today when zero).
func (s *AdminService) ConfirmPayment(ctx context.Context, performingAdminID, paymentID int64, paidOn time.Time) (*billing.Payment, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}

	p, err := s.billingRepo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %d: %w", paymentID, err)
	}
	if p.IsConfirmed() {
		return p, ErrPaymentAlreadyConfirmed
	}

	m, err := s.memberRepo.GetByID(ctx, p.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member %d for payment %d: %w", p.MemberID, paymentID, err)
	}

	if paidOn.IsZero() {
		paidOn = s.clock.Now()
	}
	paid := billing.DateOf(paidOn)
	if paid.Before(billing.DateOf(m.EnrolledAt)) {
		return nil, ErrPaymentBeforeEnrollment
	}

	prevStatus := p.Status
	p.Status = billing.PaymentStatusConfirmed
	p.PaymentDate.Time, p.PaymentDate.Valid = paid, true
	if err := s.billingRepo.UpdatePayment(ctx, p); err != nil {
		p.Status = prevStatus
		p.PaymentDate.Valid = false
		return nil, fmt.Errorf("failed to confirm payment %d: %w", paymentID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":   p.ID,
		"member_id":    p.MemberID,
		"payment_date": paid.Format(time.DateOnly),
	}).Info("Payment confirmed")
	return p, nil
}

// ListDelinquents returns the current OVERDUE and DUE_SOON records. Cycles seen for the first time are
// stored so each record has a payment ID to confirm.
func (s *AdminService) ListDelinquents(ctx context.Context, performingAdminID int64) ([]DelinquencyRecord, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	snap, err := s.engine.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	records := s.engine.ComputeDelinquencyReport(snap, s.clock.Now())
	if _, err := s.engine.OpenNewCycles(ctx, records); err != nil {
		s.logger.WithError(err).Warn("Some billing cycles could not be stored while listing delinquents")
	}
	return records, nil
}

// RunDunning triggers an ad hoc dunning pass.
func (s *AdminService) RunDunning(ctx context.Context, performingAdminID int64) (*CycleSummary, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	s.logger.WithField("telegram_id", performingAdminID).Info("Ad hoc dunning run requested")
	return s.engine.RunDunningCycle(ctx)
}

// SendTestNotification checks the notifier end to end by sending a test event to email.
func (s *AdminService) SendTestNotification(ctx context.Context, performingAdminID int64, email string) error {
	if err := s.authorize(performingAdminID); err != nil {
		return err
	}
	if s.notifier == nil || !s.notifier.IsEnabled() {
		return &ConfigurationError{Err: ErrNotifierUnavailable}
	}
	to := notifier.Recipient{Email: email, Name: email}
	vars := notifier.Variables{notifier.VarDueDate: s.clock.Now().Format(time.DateOnly)}
	if err := s.notifier.Send(ctx, notifier.EventTest, to, vars); err != nil {
		return fmt.Errorf("failed to send test notification to %s: %w", email, err)
	}
	return nil
}

// SendWelcome sends the welcome message to a member.
func (s *AdminService) SendWelcome(ctx context.Context, performingAdminID, memberID int64) (*member.Member, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if s.notifier == nil || !s.notifier.IsEnabled() {
		return nil, &ConfigurationError{Err: ErrNotifierUnavailable}
	}

	m, err := s.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member %d: %w", memberID, err)
	}
	vars := notifier.Variables{
		notifier.VarMemberName:      m.Name,
		notifier.VarAssociateNumber: m.AssociateNumber,
	}
	if m.PlanID.Valid {
		plan, err := s.billingRepo.GetPlanByID(ctx, m.PlanID.Int64)
		if err != nil {
			return nil, fmt.Errorf("failed to get plan %d for member %d: %w", m.PlanID.Int64, m.ID, err)
		}
		vars[notifier.VarPlanName] = plan.Name
		vars[notifier.VarAmount] = plan.MonthlyFee.StringFixed(2)
		vars[notifier.VarBillingDay] = strconv.Itoa(plan.BillingDay)
	}

	to := notifier.Recipient{Email: m.Email, Name: m.Name, MemberID: m.ID}
	if err := s.notifier.Send(ctx, notifier.EventWelcome, to, vars); err != nil {
		return nil, fmt.Errorf("failed to send welcome to member %d: %w", m.ID, err)
	}
	return m, nil
}
