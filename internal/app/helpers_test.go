package app

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"cooperative_billing/internal/domain/billing"
	"cooperative_billing/internal/domain/member"
	"cooperative_billing/internal/infra/metrics"
	"cooperative_billing/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// 2024-03-20 12:00 UTC
var testNow = time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)

type engineFixture struct {
	members  *testutil.InMemoryMemberStore
	billing  *testutil.InMemoryBillingStore
	notifier *testutil.FakeNotifier
	clock    *testutil.FixedClock
	metrics  *metrics.DunningMetrics
	hook     *test.Hook
	logger   *logrus.Entry
	engine   *BillingEngine
}

func newTestLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

func activeMember(id int64, planID int64, enrolled time.Time) *member.Member {
	return &member.Member{
		ID:              id,
		AssociateNumber: fmt.Sprintf("C-%04d", id),
		Name:            fmt.Sprintf("Member %d", id),
		Email:           fmt.Sprintf("member%d@coop.test", id),
		Status:          member.StatusActive,
		EnrolledAt:      enrolled,
		PlanID:          sql.NullInt64{Int64: planID, Valid: planID != 0},
	}
}

func monthlyFee(id, memberID int64, due time.Time, status billing.PaymentStatus) *billing.Payment {
	return &billing.Payment{
		ID:       id,
		MemberID: memberID,
		PlanID:   1,
		Type:     billing.PaymentTypeMonthlyFee,
		Amount:   decimal.RequireFromString("150.00"),
		DueDate:  due,
		Status:   status,
	}
}

func confirmed(p *billing.Payment, paidOn time.Time) *billing.Payment {
	p.Status = billing.PaymentStatusConfirmed
	p.PaymentDate = sql.NullTime{Time: paidOn, Valid: true}
	return p
}

// newScenarioFixture seeds a cooperative whose report at testNow is:
//
//	member 2  OVERDUE 39 (critical), pending payment 201
//	member 3  OVERDUE 19 (urgent),   overdue payment 301
//	member 4  OVERDUE 5  (initial),  pending payment 401
//	member 5  DUE_SOON 5,            pending payment 501
//	member 10 DUE_SOON 5,            synthesized payment (plan 3, day 25)
//
// Member 1 is ON_TIME, members 6 and 7 have broken plan data, 8 is inactive, 9 has no plan,
// 11 is suspended but paid up, 12 is suspended with an open cycle.
func newScenarioFixture(t *testing.T, cfg EngineConfig) *engineFixture {
	t.Helper()

	f := &engineFixture{
		billing:  testutil.NewInMemoryBillingStore(),
		notifier: testutil.NewFakeNotifier(),
		clock:    testutil.NewFixedClock(testNow),
	}
	f.logger, f.hook = newTestLogger()
	f.metrics = metrics.New(prometheus.NewRegistry())

	f.billing.AddPlan(&billing.Plan{ID: 1, Name: "Standard", MonthlyFee: decimal.RequireFromString("150.00"), BillingDay: 10, IsActive: true})
	f.billing.AddPlan(&billing.Plan{ID: 2, Name: "Legacy", MonthlyFee: decimal.RequireFromString("90.00"), BillingDay: 5, IsActive: false})
	f.billing.AddPlan(&billing.Plan{ID: 3, Name: "Late", MonthlyFee: decimal.RequireFromString("200.00"), BillingDay: 25, IsActive: true})

	inactive := activeMember(8, 1, billing.Date(2023, 6, 1))
	inactive.Status = member.StatusInactive
	paidUp := activeMember(11, 1, billing.Date(2023, 6, 1))
	paidUp.Status = member.StatusSuspended
	stillOwing := activeMember(12, 1, billing.Date(2023, 6, 1))
	stillOwing.Status = member.StatusSuspended

	f.members = testutil.NewInMemoryMemberStore(
		activeMember(1, 1, billing.Date(2024, 1, 5)),
		activeMember(2, 1, billing.Date(2023, 6, 1)),
		activeMember(3, 1, billing.Date(2023, 6, 1)),
		activeMember(4, 1, billing.Date(2023, 6, 1)),
		activeMember(5, 1, billing.Date(2023, 6, 1)),
		activeMember(6, 2, billing.Date(2023, 6, 1)),
		activeMember(7, 99, billing.Date(2023, 6, 1)),
		inactive,
		activeMember(9, 0, billing.Date(2023, 6, 1)),
		activeMember(10, 3, billing.Date(2024, 1, 1)),
		paidUp,
		stillOwing,
	)

	f.billing.AddPayment(confirmed(monthlyFee(200, 2, billing.Date(2024, 1, 10), ""), billing.Date(2024, 1, 9)))
	f.billing.AddPayment(monthlyFee(201, 2, billing.Date(2024, 2, 10), billing.PaymentStatusPending))
	f.billing.AddPayment(monthlyFee(301, 3, billing.Date(2024, 3, 1), billing.PaymentStatusOverdue))
	f.billing.AddPayment(monthlyFee(401, 4, billing.Date(2024, 3, 15), billing.PaymentStatusPending))
	f.billing.AddPayment(monthlyFee(501, 5, billing.Date(2024, 3, 25), billing.PaymentStatusPending))
	f.billing.AddPayment(confirmed(monthlyFee(1101, 11, billing.Date(2024, 3, 10), ""), billing.Date(2024, 3, 18)))
	f.billing.AddPayment(monthlyFee(1201, 12, billing.Date(2024, 2, 10), billing.PaymentStatusOverdue))

	f.engine = NewBillingEngine(f.members, f.billing, f.notifier, nil, f.clock, cfg, f.metrics, f.logger)
	return f
}

func (f *engineFixture) report(t *testing.T) []DelinquencyRecord {
	t.Helper()
	snap, err := f.engine.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	return f.engine.ComputeDelinquencyReport(snap, f.clock.Now())
}

func memberIDs(records []DelinquencyRecord) []int64 {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Member.ID)
	}
	return ids
}

// newMemberFixture seeds a single member on a Standard plan billed on billingDay.
func newMemberFixture(t *testing.T, now time.Time, m *member.Member, billingDay int, payments ...*billing.Payment) *engineFixture {
	t.Helper()

	f := &engineFixture{
		members:  testutil.NewInMemoryMemberStore(m),
		billing:  testutil.NewInMemoryBillingStore(),
		notifier: testutil.NewFakeNotifier(),
		clock:    testutil.NewFixedClock(now),
	}
	f.logger, f.hook = newTestLogger()
	f.metrics = metrics.New(prometheus.NewRegistry())

	f.billing.AddPlan(&billing.Plan{ID: 1, Name: "Standard", MonthlyFee: decimal.RequireFromString("150.00"), BillingDay: billingDay, IsActive: true})
	for _, p := range payments {
		f.billing.AddPayment(p)
	}
	f.engine = NewBillingEngine(f.members, f.billing, f.notifier, nil, f.clock, EngineConfig{}, f.metrics, f.logger)
	return f
}
