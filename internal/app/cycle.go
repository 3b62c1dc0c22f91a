package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CycleSummary reports one full dunning pass.
type CycleSummary struct {
	RunAt         time.Time
	Overdue       int
	DueSoon       int
	OpenedCycles  int
	MarkedOverdue int
	Suspended     int
	Reactivated   int
	Batch         *BatchResult // nil when the batch could not start
}

// RunDunningCycle is the scheduled entrypoint: load, classify, open new cycles, mark overdue,
// suspend, reactivate, then remind. Step failures are joined into the returned error; a
// ConfigurationError from the notifier only prevents the reminder step.
func (e *BillingEngine) RunDunningCycle(ctx context.Context) (*CycleSummary, error) {
	now := e.clock.Now()
	summary := &CycleSummary{RunAt: now}

	snap, err := e.LoadSnapshot(ctx)
	if err != nil {
		return summary, err
	}

	records := e.ComputeDelinquencyReport(snap, now)
	for _, r := range records {
		if r.Classification.IsDelinquent() {
			summary.Overdue++
		} else {
			summary.DueSoon++
		}
	}

	var errs []error
	if summary.OpenedCycles, err = e.OpenNewCycles(ctx, records); err != nil {
		errs = append(errs, fmt.Errorf("open cycles: %w", err))
	}
	if summary.MarkedOverdue, err = e.MarkOverduePayments(ctx, records); err != nil {
		errs = append(errs, fmt.Errorf("mark overdue: %w", err))
	}
	if summary.Suspended, err = e.SuspendCriticallyOverdue(ctx, records, e.cfg.SuspensionThresholdDays); err != nil {
		errs = append(errs, fmt.Errorf("suspend: %w", err))
	}
	if summary.Reactivated, err = e.ReactivatePaidMembers(ctx, snap, now); err != nil {
		errs = append(errs, fmt.Errorf("reactivate: %w", err))
	}
	if summary.Batch, err = e.DispatchReminders(ctx, records); err != nil {
		errs = append(errs, fmt.Errorf("dispatch reminders: %w", err))
	}
	return summary, errors.Join(errs...)
}

// String renders the summary for the administrator: counts, then every failure with its reason.
func (s *CycleSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rodada de cobrança %s\n", s.RunAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Em atraso: %d, a vencer: %d\n", s.Overdue, s.DueSoon)
	fmt.Fprintf(&b, "Novos ciclos: %d, marcados em atraso: %d, suspensos: %d, reativados: %d\n", s.OpenedCycles, s.MarkedOverdue, s.Suspended, s.Reactivated)

	if s.Batch == nil {
		b.WriteString("Lembretes: não enviados (notificador indisponível)\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Lembretes: total %d, enviados %d, falhas %d, ignorados %d\n", s.Batch.Total, s.Batch.Sent, s.Batch.Failed, s.Batch.Skipped)
	for _, f := range s.Batch.Failures() {
		fmt.Fprintf(&b, "- cooperado %d (%s): %v\n", f.MemberID, f.EventKind, f.Err)
	}
	return b.String()
}
