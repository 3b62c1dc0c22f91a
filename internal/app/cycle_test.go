package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"cooperative_billing/internal/domain/billing"
	"cooperative_billing/internal/domain/member"
	"cooperative_billing/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDunningCycle(t *testing.T) {
	f := newScenarioFixture(t, EngineConfig{})

	summary, err := f.engine.RunDunningCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testNow, summary.RunAt)
	assert.Equal(t, 3, summary.Overdue)
	assert.Equal(t, 2, summary.DueSoon)
	assert.Equal(t, 2, summary.MarkedOverdue)
	assert.Equal(t, 1, summary.Suspended)
	assert.Equal(t, 1, summary.Reactivated)
	require.NotNil(t, summary.Batch)
	assert.Equal(t, 5, summary.Batch.Sent)

	m, err := f.members.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, member.StatusSuspended, m.Status)
}

func TestRunDunningCycle_NotifierUnavailableStillRunsOtherSteps(t *testing.T) {
	f := newScenarioFixture(t, EngineConfig{})
	f.notifier.Disabled = true

	summary, err := f.engine.RunDunningCycle(context.Background())

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Nil(t, summary.Batch)
	assert.Equal(t, 1, summary.Suspended)
	assert.Equal(t, 2, summary.MarkedOverdue)
	assert.Contains(t, summary.String(), "Lembretes: não enviados")
}

func TestRunDunningCycle_SecondRunSameDayIsQuiet(t *testing.T) {
	f := newScenarioFixture(t, EngineConfig{})

	_, err := f.engine.RunDunningCycle(context.Background())
	require.NoError(t, err)
	sentBefore := len(f.notifier.Sent)

	summary, err := f.engine.RunDunningCycle(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Suspended)
	assert.Zero(t, summary.MarkedOverdue)
	assert.Zero(t, summary.Batch.Sent, "cadence holds back same-day resends")
	assert.Equal(t, sentBefore, len(f.notifier.Sent))
}

func TestRunDunningCycle_JoinsStepErrors(t *testing.T) {
	f := newScenarioFixture(t, EngineConfig{})
	f.members.UpdateErr[2] = testutil.ErrInjected

	summary, err := f.engine.RunDunningCycle(context.Background())

	require.ErrorIs(t, err, testutil.ErrInjected)
	assert.Contains(t, err.Error(), "suspend")
	assert.Zero(t, summary.Suspended)
	assert.Equal(t, 5, summary.Batch.Sent, "reminders still go out")
}

func TestCycleSummary_String(t *testing.T) {
	summary := &CycleSummary{
		RunAt:         testNow,
		Overdue:       3,
		DueSoon:       2,
		OpenedCycles:  1,
		MarkedOverdue: 2,
		Suspended:     1,
		Reactivated:   1,
		Batch: &BatchResult{
			Total: 3, Sent: 1, Failed: 1, Skipped: 1,
			Items: []ItemResult{
				{MemberID: 2, Outcome: OutcomeSent, EventKind: "reminder_critical"},
				{MemberID: 3, Outcome: OutcomeFailed, EventKind: "reminder_urgent", Err: errors.New("smtp down")},
				{MemberID: 4, Outcome: OutcomeThrottled, EventKind: "reminder_initial"},
			},
		},
	}

	expected := "Rodada de cobrança 2024-03-20 12:00\n" +
		"Em atraso: 3, a vencer: 2\n" +
		"Novos ciclos: 1, marcados em atraso: 2, suspensos: 1, reativados: 1\n" +
		"Lembretes: total 3, enviados 1, falhas 1, ignorados 1\n" +
		"- cooperado 3 (reminder_urgent): smtp down\n"
	assert.Equal(t, expected, summary.String())
}

func TestRunDunningCycle_OlderDebtKeepsMemberSuspended(t *testing.T) {
	// February is still unpaid while March was paid on 2024-03-12.
	f := newMemberFixture(t, testNow, activeMember(20, 1, billing.Date(2023, 6, 1)), 10,
		monthlyFee(2001, 20, billing.Date(2024, 2, 10), billing.PaymentStatusOverdue),
		confirmed(monthlyFee(2002, 20, billing.Date(2024, 3, 10), ""), billing.Date(2024, 3, 12)),
	)

	first, err := f.engine.RunDunningCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Suspended)
	assert.Zero(t, first.Reactivated)

	for run := 2; run <= 3; run++ {
		summary, err := f.engine.RunDunningCycle(context.Background())
		require.NoError(t, err)
		assert.Zero(t, summary.Suspended, "run %d", run)
		assert.Zero(t, summary.Reactivated, "run %d", run)
	}

	m, err := f.members.GetByID(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, member.StatusSuspended, m.Status)
}

func TestRunDunningCycle_CyclePaidAheadIsNotChased(t *testing.T) {
	// February's fee (due 2024-02-15) was paid early on 2024-01-30.
	f := newMemberFixture(t, billing.Date(2024, 2, 10), activeMember(21, 1, billing.Date(2023, 6, 1)), 15,
		confirmed(monthlyFee(2101, 21, billing.Date(2024, 2, 15), ""), billing.Date(2024, 1, 30)),
	)

	for day := 10; day <= 14; day++ {
		f.clock.Set(time.Date(2024, time.February, day, 9, 0, 0, 0, time.UTC))
		summary, err := f.engine.RunDunningCycle(context.Background())
		require.NoError(t, err)
		assert.Zero(t, summary.DueSoon+summary.Overdue, "day %d", day)
	}

	assert.Empty(t, f.notifier.Sent)
	assert.Zero(t, f.billing.Creates)
}

func TestRunDunningCycle_OpensCycleBeforeReminding(t *testing.T) {
	f := newScenarioFixture(t, EngineConfig{})

	summary, err := f.engine.RunDunningCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OpenedCycles)
	assert.Equal(t, 1, f.billing.Creates)

	// The stored cycle carries the reminder state, so the next day is throttled by cadence.
	f.clock.Set(testNow.AddDate(0, 0, 1))
	next, err := f.engine.RunDunningCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, next.OpenedCycles)
	assert.Equal(t, 1, f.billing.Creates)
	assert.NotContains(t, f.notifier.SentTo()[5:], int64(10))
}

func TestRunDunningCycle_NotifierDownStillOpensCycles(t *testing.T) {
	f := newScenarioFixture(t, EngineConfig{})
	f.notifier.Disabled = true

	summary, err := f.engine.RunDunningCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, summary.OpenedCycles)

	records := f.report(t)
	for _, r := range records {
		assert.True(t, r.Payment.IsPersisted(), "member %d", r.Member.ID)
	}
}
