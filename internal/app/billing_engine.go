package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cooperative_billing/internal/domain/billing"
	"cooperative_billing/internal/domain/member"
	"cooperative_billing/internal/domain/notifier"
	"cooperative_billing/internal/infra/metrics"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"
	"golang.org/x/time/rate"
)

const (
	DefaultSuspensionThresholdDays = 30
	DefaultNotifierTimeout         = 15 * time.Second
)

// EngineConfig holds the tunables of the dunning engine.
type EngineConfig struct {
	SuspensionThresholdDays int
	// ReminderInterval is the minimum spacing between two notifier calls. Zero disables pacing.
	ReminderInterval time.Duration
	NotifierTimeout  time.Duration
}

// Snapshot is the repository data a report is computed from.
type Snapshot struct {
	Members  []*member.Member
	Plans    []*billing.Plan
	Payments []*billing.Payment
}

// DelinquencyRecord is one member's current due cycle and its classification.
type DelinquencyRecord struct {
	Member         *member.Member
	Plan           *billing.Plan
	Payment        *billing.Payment // ID 0 until OpenNewCycles stores it
	DueDate        time.Time
	Classification billing.Classification
	// AsOf is the instant the record was classified at.
	AsOf time.Time
}

func (r DelinquencyRecord) Tier() billing.Tier {
	return r.Classification.Tier()
}

// BillingEngine orchestrates due-date computation, classification and reminder dispatch.
type BillingEngine struct {
	memberRepo  member.Repository
	billingRepo billing.Repository
	notifier    notifier.Notifier
	cadence     billing.CadencePolicy
	clock       billing.Clock
	limiter     *rate.Limiter
	cfg         EngineConfig
	metrics     *metrics.DunningMetrics
	logger      *logrus.Entry
}

func NewBillingEngine(
	mr member.Repository,
	br billing.Repository,
	n notifier.Notifier,
	cadence billing.CadencePolicy,
	clock billing.Clock,
	cfg EngineConfig,
	m *metrics.DunningMetrics,
	logger *logrus.Entry,
) *BillingEngine {
	if cadence == nil {
		cadence = billing.DefaultCadence()
	}
	if clock == nil {
		clock = billing.SystemClock{}
	}
	if cfg.SuspensionThresholdDays <= 0 {
		cfg.SuspensionThresholdDays = DefaultSuspensionThresholdDays
	}
	if cfg.NotifierTimeout <= 0 {
		cfg.NotifierTimeout = DefaultNotifierTimeout
	}
	limit := rate.Inf
	if cfg.ReminderInterval > 0 {
		limit = rate.Every(cfg.ReminderInterval)
	}
	return &BillingEngine{
		memberRepo:  mr,
		billingRepo: br,
		notifier:    n,
		cadence:     cadence,
		clock:       clock,
		limiter:     rate.NewLimiter(limit, 1),
		cfg:         cfg,
		metrics:     m,
		logger:      logger.WithField("component", "billing_engine"),
	}
}

// LoadSnapshot reads members, plans and the payments of members that carry a plan.
func (e *BillingEngine) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	members, err := e.memberRepo.ListAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to list members: %w", err)
	}
	plans, err := e.billingRepo.ListPlans(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to list plans: %w", err)
	}

	memberIDs := lo.FilterMap(members, func(m *member.Member, _ int) (int64, bool) {
		return m.ID, m.PlanID.Valid && (m.IsActive() || m.IsSuspended())
	})
	payments, err := e.billingRepo.ListPaymentsByMembers(ctx, memberIDs)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to list payments: %w", err)
	}
	return Snapshot{Members: members, Plans: plans, Payments: payments}, nil
}

type evaluation struct {
	record  *DelinquencyRecord
	dataErr *DataError
}

// ComputeDelinquencyReport classifies every active member with an active plan and returns the
// OVERDUE and DUE_SOON records: OVERDUE first, each group by descending days.
func (e *BillingEngine) ComputeDelinquencyReport(snap Snapshot, now time.Time) []DelinquencyRecord {
	plansByID := lo.KeyBy(snap.Plans, func(p *billing.Plan) int64 { return p.ID })
	paymentsByMember := lo.GroupBy(snap.Payments, func(p *billing.Payment) int64 { return p.MemberID })
	candidates := lo.Filter(snap.Members, func(m *member.Member, _ int) bool {
		return m.IsActive() && m.PlanID.Valid
	})

	evaluations := iter.Map(candidates, func(m **member.Member) evaluation {
		return evaluateMember(*m, plansByID, paymentsByMember[(*m).ID], now)
	})

	records := make([]DelinquencyRecord, 0, len(evaluations))
	bySeverity := map[string]int{}
	for _, ev := range evaluations {
		if ev.dataErr != nil {
			e.metrics.IncSkippedRecords()
			e.logger.WithFields(logrus.Fields{
				"member_id": ev.dataErr.MemberID,
				"reason":    ev.dataErr.Reason,
			}).Warn("Member skipped from delinquency report")
			continue
		}
		if ev.record.Classification.State == billing.StateOnTime {
			continue
		}
		bySeverity[ev.record.Classification.Severity()]++
		records = append(records, *ev.record)
	}
	e.metrics.SetDelinquent(bySeverity)

	sortRecords(records)
	e.logger.WithFields(logrus.Fields{
		"members":   len(candidates),
		"reported":  len(records),
		"report_at": now.Format(time.DateOnly),
	}).Info("Delinquency report computed")
	return records
}

func evaluateMember(m *member.Member, plansByID map[int64]*billing.Plan, payments []*billing.Payment, now time.Time) evaluation {
	plan, ok := plansByID[m.PlanID.Int64]
	if !ok {
		return evaluation{dataErr: &DataError{MemberID: m.ID, Reason: fmt.Sprintf("plan %d not found", m.PlanID.Int64)}}
	}
	if !plan.IsActive {
		return evaluation{dataErr: &DataError{MemberID: m.ID, Reason: fmt.Sprintf("plan %d is inactive", plan.ID)}}
	}
	if err := plan.Validate(); err != nil {
		return evaluation{dataErr: &DataError{MemberID: m.ID, Reason: err.Error()}}
	}

	payment := oldestOpenMonthlyFee(payments)
	if payment == nil {
		due, err := billing.NextCycleDueDate(m, plan, payments, now)
		if err != nil {
			return evaluation{dataErr: &DataError{MemberID: m.ID, Reason: err.Error()}}
		}
		payment = &billing.Payment{
			MemberID: m.ID,
			PlanID:   plan.ID,
			Type:     billing.PaymentTypeMonthlyFee,
			Amount:   plan.MonthlyFee,
			DueDate:  due,
			Status:   billing.PaymentStatusPending,
		}
	}

	due := billing.DateOf(payment.DueDate)
	return evaluation{record: &DelinquencyRecord{
		Member:         m,
		Plan:           plan,
		Payment:        payment,
		DueDate:        due,
		Classification: billing.Classify(now, due),
		AsOf:           now,
	}}
}

// oldestOpenMonthlyFee is the earliest unpaid cycle; reminders always chase the oldest debt.
func oldestOpenMonthlyFee(payments []*billing.Payment) *billing.Payment {
	var oldest *billing.Payment
	for _, p := range payments {
		if p.Type != billing.PaymentTypeMonthlyFee || !p.IsOpen() {
			continue
		}
		if oldest == nil || p.DueDate.Before(oldest.DueDate) {
			oldest = p
		}
	}
	return oldest
}

func sortRecords(records []DelinquencyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Classification, records[j].Classification
		aOverdue, bOverdue := a.State == billing.StateOverdue, b.State == billing.StateOverdue
		if aOverdue != bOverdue {
			return aOverdue
		}
		if a.Days != b.Days {
			return a.Days > b.Days
		}
		return records[i].Member.ID < records[j].Member.ID
	})
}

// OpenNewCycles stores the cycles the report synthesized, so every reported record carries a payment
// ID an administrator can confirm. A cycle that already exists is left for the next report to pick up.
func (e *BillingEngine) OpenNewCycles(ctx context.Context, records []DelinquencyRecord) (int, error) {
	var errs []error
	opened := 0
	for _, r := range records {
		if r.Classification.State == billing.StateOnTime || r.Payment.IsPersisted() {
			continue
		}
		if err := e.billingRepo.CreatePayment(ctx, r.Payment); err != nil {
			if errors.Is(err, billing.ErrDuplicateCycle) {
				e.logger.WithField("member_id", r.Member.ID).Debug("Cycle already stored, skipping")
				continue
			}
			e.logger.WithError(err).WithField("member_id", r.Member.ID).Error("Failed to open billing cycle")
			errs = append(errs, fmt.Errorf("member %d: %w", r.Member.ID, err))
			continue
		}
		opened++
		e.logger.WithFields(logrus.Fields{
			"member_id":  r.Member.ID,
			"payment_id": r.Payment.ID,
			"due_date":   r.DueDate.Format(time.DateOnly),
		}).Info("Billing cycle opened")
	}
	return opened, errors.Join(errs...)
}

// MarkOverduePayments writes PENDING -> OVERDUE for stored payments that are past due.
func (e *BillingEngine) MarkOverduePayments(ctx context.Context, records []DelinquencyRecord) (int, error) {
	var errs []error
	marked := 0
	for _, r := range records {
		p := r.Payment
		if !r.Classification.IsDelinquent() || !p.IsPersisted() || p.Status != billing.PaymentStatusPending {
			continue
		}
		p.Status = billing.PaymentStatusOverdue
		if err := e.billingRepo.UpdatePayment(ctx, p); err != nil {
			p.Status = billing.PaymentStatusPending
			e.logger.WithError(err).WithField("payment_id", p.ID).Error("Failed to mark payment overdue")
			errs = append(errs, fmt.Errorf("payment %d: %w", p.ID, err))
			continue
		}
		marked++
	}
	e.metrics.AddOverdueMarked(marked)
	return marked, errors.Join(errs...)
}

// SuspendCriticallyOverdue suspends members overdue by at least threshold days.
// Members already suspended are skipped and not counted. A threshold <= 0 uses the configured one.
func (e *BillingEngine) SuspendCriticallyOverdue(ctx context.Context, records []DelinquencyRecord, threshold int) (int, error) {
	if threshold <= 0 {
		threshold = e.cfg.SuspensionThresholdDays
	}

	var errs []error
	suspended := 0
	for _, r := range records {
		if !r.Classification.IsDelinquent() || r.Classification.Days < threshold {
			continue
		}
		m := r.Member
		if m.IsSuspended() {
			e.logger.WithField("member_id", m.ID).Debug("Member already suspended, skipping")
			continue
		}
		if err := e.memberRepo.UpdateStatus(ctx, m.ID, member.StatusSuspended); err != nil {
			e.logger.WithError(err).WithField("member_id", m.ID).Error("Failed to suspend member")
			errs = append(errs, fmt.Errorf("member %d: %w", m.ID, err))
			continue
		}
		m.Status = member.StatusSuspended
		suspended++
		e.logger.WithFields(logrus.Fields{
			"member_id": m.ID,
			"days":      r.Classification.Days,
		}).Info("Member suspended for critical delinquency")
	}
	e.metrics.AddSuspensions(suspended)
	return suspended, errors.Join(errs...)
}

// ReactivatePaidMembers returns suspended members to active once no monthly-fee cycle is left open, the
// most recent one is confirmed and the next cycle falls due in the future. Members whose plan is missing
// or inactive stay suspended. Anything else is a no-op.
func (e *BillingEngine) ReactivatePaidMembers(ctx context.Context, snap Snapshot, now time.Time) (int, error) {
	plansByID := lo.KeyBy(snap.Plans, func(p *billing.Plan) int64 { return p.ID })
	paymentsByMember := lo.GroupBy(snap.Payments, func(p *billing.Payment) int64 { return p.MemberID })
	today := billing.DateOf(now)

	var errs []error
	reactivated := 0
	for _, m := range snap.Members {
		if !m.IsSuspended() || !m.PlanID.Valid {
			continue
		}
		logCtx := e.logger.WithField("member_id", m.ID)
		plan, ok := plansByID[m.PlanID.Int64]
		if !ok {
			logCtx.WithField("plan_id", m.PlanID.Int64).Warn("Plan not found, cannot evaluate reactivation")
			continue
		}
		if !plan.IsActive {
			logCtx.WithField("plan_id", plan.ID).Debug("Plan is inactive, member stays suspended")
			continue
		}

		payments := paymentsByMember[m.ID]
		if open := oldestOpenMonthlyFee(payments); open != nil {
			logCtx.WithField("payment_id", open.ID).Debug("Member still has an open cycle, stays suspended")
			continue
		}
		latest := mostRecentMonthlyFee(payments)
		if latest == nil || !latest.IsConfirmed() {
			logCtx.Debug("No confirmed payment for the latest cycle, member stays suspended")
			continue
		}
		due, err := billing.NextCycleDueDate(m, plan, payments, now)
		if err != nil {
			logCtx.WithError(err).Warn("Cannot compute next due date for reactivation")
			continue
		}
		if !due.After(today) {
			logCtx.WithField("due_date", due.Format(time.DateOnly)).Debug("Next due date is not in the future, member stays suspended")
			continue
		}

		if err := e.memberRepo.UpdateStatus(ctx, m.ID, member.StatusActive); err != nil {
			logCtx.WithError(err).Error("Failed to reactivate member")
			errs = append(errs, fmt.Errorf("member %d: %w", m.ID, err))
			continue
		}
		m.Status = member.StatusActive
		reactivated++
		logCtx.Info("Member reactivated after payment")
	}
	e.metrics.AddReactivations(reactivated)
	return reactivated, errors.Join(errs...)
}

func mostRecentMonthlyFee(payments []*billing.Payment) *billing.Payment {
	var latest *billing.Payment
	for _, p := range payments {
		if p.Type != billing.PaymentTypeMonthlyFee {
			continue
		}
		if latest == nil || p.DueDate.After(latest.DueDate) || (p.DueDate.Equal(latest.DueDate) && p.ID > latest.ID) {
			latest = p
		}
	}
	return latest
}
