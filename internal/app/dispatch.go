package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cooperative_billing/internal/domain/billing"
	"cooperative_billing/internal/domain/notifier"

	"github.com/sirupsen/logrus"
)

// Outcome is what happened to one record of a reminder batch.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeFailed    Outcome = "failed"
	OutcomeThrottled Outcome = "throttled" // cadence policy says it is too early
	OutcomeSkipped   Outcome = "skipped"   // nothing to remind about
	OutcomeCancelled Outcome = "cancelled" // batch stopped before this item
)

// ItemResult is the per-record result of DispatchReminders.
type ItemResult struct {
	MemberID  int64
	PaymentID int64
	EventKind notifier.EventKind
	Outcome   Outcome
	Err       error // notifier failure
	// PersistErr is set when the reminder went out but the attempt state could not be saved.
	PersistErr error
}

// BatchResult summarizes a reminder batch. Total = Sent + Failed + Skipped.
type BatchResult struct {
	Total   int
	Sent    int
	Failed  int
	Skipped int
	Items   []ItemResult
}

func (r *BatchResult) Failures() []ItemResult {
	var failures []ItemResult
	for _, item := range r.Items {
		if item.Outcome == OutcomeFailed {
			failures = append(failures, item)
		}
	}
	return failures
}

func (r *BatchResult) add(item ItemResult) {
	r.Items = append(r.Items, item)
	switch item.Outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// EventKindFor picks the reminder template. DUE_SOON uses the initial reminder.
func EventKindFor(c billing.Classification) notifier.EventKind {
	switch c.Tier() {
	case billing.TierCritical:
		return notifier.EventReminderCritical
	case billing.TierUrgent:
		return notifier.EventReminderUrgent
	default:
		return notifier.EventReminderInitial
	}
}

// DispatchReminders sends one reminder per record where the cadence policy allows it.
//
// Sends are sequential and spaced by the configured interval. A failed or timed out send is
// recorded and the batch moves on. When ctx is cancelled no new send starts; the send in flight
// finishes and is recorded, remaining items are reported as cancelled and ctx's error is returned
// together with the partial result. An unconfigured notifier fails the batch before any item.
// A cycle not yet stored is created before its reminder goes out; if it cannot be created no
// reminder is sent, so the cadence state always has a row to live on.
func (e *BillingEngine) DispatchReminders(ctx context.Context, records []DelinquencyRecord) (*BatchResult, error) {
	if e.notifier == nil || !e.notifier.IsEnabled() {
		e.logger.Error("Notifier unavailable, reminder batch aborted")
		return nil, &ConfigurationError{Err: ErrNotifierUnavailable}
	}

	result := &BatchResult{Total: len(records), Items: make([]ItemResult, 0, len(records))}
	e.logger.WithField("records", len(records)).Info("Starting reminder batch")

	for i, r := range records {
		if err := ctx.Err(); err != nil {
			e.cancelRemaining(result, records[i:])
			return result, err
		}

		item := ItemResult{MemberID: r.Member.ID, PaymentID: r.Payment.ID}
		logCtx := e.logger.WithFields(logrus.Fields{
			"member_id":  r.Member.ID,
			"payment_id": r.Payment.ID,
			"state":      r.Classification.State,
			"days":       r.Classification.Days,
		})

		if r.Classification.State == billing.StateOnTime {
			item.Outcome = OutcomeSkipped
			result.add(item)
			continue
		}

		item.EventKind = EventKindFor(r.Classification)
		if !billing.ReminderDue(e.cadence, r.Payment.ReminderAttempts, r.Payment.LastReminderAt, e.asOf(r)) {
			logCtx.WithField("attempts", r.Payment.ReminderAttempts).Debug("Reminder throttled by cadence policy")
			item.Outcome = OutcomeThrottled
			result.add(item)
			e.metrics.ObserveReminder(string(item.EventKind), string(OutcomeThrottled))
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			logCtx.WithError(err).Warn("Reminder batch stopped while pacing")
			e.cancelRemaining(result, records[i:])
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			return result, err
		}

		if !r.Payment.IsPersisted() && !e.openCycle(ctx, r, &item, logCtx) {
			result.add(item)
			e.metrics.ObserveReminder(string(item.EventKind), string(item.Outcome))
			continue
		}

		e.sendReminder(ctx, r, &item, logCtx)
		result.add(item)
		e.metrics.ObserveReminder(string(item.EventKind), string(item.Outcome))
	}

	e.logger.WithFields(logrus.Fields{
		"total":   result.Total,
		"sent":    result.Sent,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	}).Info("Reminder batch finished")
	return result, nil
}

func (e *BillingEngine) sendReminder(ctx context.Context, r DelinquencyRecord, item *ItemResult, logCtx *logrus.Entry) {
	// The send in flight is not interrupted by batch cancellation, only by its own timeout.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.NotifierTimeout)
	defer cancel()

	to := notifier.Recipient{Email: r.Member.Email, Name: r.Member.Name, MemberID: r.Member.ID}
	if err := e.callNotifier(sendCtx, item.EventKind, to, reminderVariables(r)); err != nil {
		logCtx.WithError(err).WithField("event_kind", item.EventKind).Error("Failed to send reminder")
		item.Outcome = OutcomeFailed
		item.Err = err
		return
	}
	item.Outcome = OutcomeSent
	logCtx.WithField("event_kind", item.EventKind).Info("Reminder sent")

	p := r.Payment
	if r.Classification.State == billing.StateOverdue && p.Status == billing.PaymentStatusPending {
		p.Status = billing.PaymentStatusOverdue
	}
	p.RecordReminder(e.asOf(r))

	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.NotifierTimeout)
	defer cancelPersist()
	if err := e.billingRepo.UpdatePayment(persistCtx, p); err != nil {
		logCtx.WithError(err).Error("Reminder sent but attempt state was not saved")
		item.PersistErr = err
	}
}

// openCycle stores a synthesized cycle ahead of its first reminder. It reports whether the
// reminder may go out; otherwise item carries the outcome.
func (e *BillingEngine) openCycle(ctx context.Context, r DelinquencyRecord, item *ItemResult, logCtx *logrus.Entry) bool {
	createCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.NotifierTimeout)
	defer cancel()

	err := e.billingRepo.CreatePayment(createCtx, r.Payment)
	switch {
	case err == nil:
		item.PaymentID = r.Payment.ID
		return true
	case errors.Is(err, billing.ErrDuplicateCycle):
		// Another pass stored this cycle; its own attempt state governs the next reminder.
		logCtx.Debug("Cycle already stored, reminder left to the next pass")
		item.Outcome = OutcomeSkipped
	default:
		logCtx.WithError(err).Error("Failed to open billing cycle, reminder not sent")
		item.Outcome = OutcomeFailed
		item.Err = err
	}
	return false
}

// asOf is the instant a record was classified at, so cadence and attempt timestamps agree with it.
func (e *BillingEngine) asOf(r DelinquencyRecord) time.Time {
	if r.AsOf.IsZero() {
		return e.clock.Now()
	}
	return r.AsOf
}

// callNotifier bounds the call by ctx even if the notifier ignores it.
func (e *BillingEngine) callNotifier(ctx context.Context, kind notifier.EventKind, to notifier.Recipient, vars notifier.Variables) error {
	done := make(chan error, 1)
	go func() {
		done <- e.notifier.Send(ctx, kind, to, vars)
	}()
	select {
	case err := <-done:
		if err != nil && ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrNotifierTimeout, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrNotifierTimeout, ctx.Err())
	}
}

func (e *BillingEngine) cancelRemaining(result *BatchResult, remaining []DelinquencyRecord) {
	for _, r := range remaining {
		result.add(ItemResult{MemberID: r.Member.ID, PaymentID: r.Payment.ID, Outcome: OutcomeCancelled})
	}
	e.logger.WithField("cancelled", len(remaining)).Warn("Reminder batch cancelled")
}

func reminderVariables(r DelinquencyRecord) notifier.Variables {
	daysOverdue, daysUntilDue := 0, 0
	if r.Classification.State == billing.StateOverdue {
		daysOverdue = r.Classification.Days
	} else {
		daysUntilDue = r.Classification.Days
	}
	return notifier.Variables{
		notifier.VarMemberName:      r.Member.Name,
		notifier.VarAssociateNumber: r.Member.AssociateNumber,
		notifier.VarAmount:          r.Payment.Amount.StringFixed(2),
		notifier.VarDueDate:         r.DueDate.Format(time.DateOnly),
		notifier.VarDaysOverdue:     strconv.Itoa(daysOverdue),
		notifier.VarDaysUntilDue:    strconv.Itoa(daysUntilDue),
		notifier.VarPlanName:        r.Plan.Name,
	}
}
