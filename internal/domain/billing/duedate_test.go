package billing

import (
	"database/sql"
	"testing"
	"time"

	"cooperative_billing/internal/domain/member"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmedFee(paidOn time.Time) *Payment {
	return &Payment{
		Type:        PaymentTypeMonthlyFee,
		Status:      PaymentStatusConfirmed,
		PaymentDate: sql.NullTime{Time: paidOn, Valid: true},
	}
}

func TestNextDueDate_FromEnrollment(t *testing.T) {
	tests := []struct {
		name       string
		enrolledAt time.Time
		billingDay int
		now        time.Time
		want       time.Time
	}{
		{
			name:       "enrolled before billing day uses same month",
			enrolledAt: Date(2024, time.January, 10),
			billingDay: 15,
			now:        Date(2024, time.January, 12),
			want:       Date(2024, time.January, 15),
		},
		{
			name:       "enrolled after billing day rolls to next month",
			enrolledAt: Date(2024, time.January, 20),
			billingDay: 15,
			now:        Date(2024, time.January, 21),
			want:       Date(2024, time.February, 15),
		},
		{
			name:       "enrolled on billing day and now is that day",
			enrolledAt: Date(2024, time.January, 15),
			billingDay: 15,
			now:        Date(2024, time.January, 15),
			want:       Date(2024, time.January, 15),
		},
		{
			name:       "long-standing member without history advances until not in the past",
			enrolledAt: Date(2024, time.January, 10),
			billingDay: 15,
			now:        Date(2024, time.March, 20),
			want:       Date(2024, time.April, 15),
		},
		{
			name:       "advances across a year boundary",
			enrolledAt: Date(2023, time.November, 28),
			billingDay: 1,
			now:        Date(2024, time.January, 2),
			want:       Date(2024, time.February, 1),
		},
		{
			name:       "billing day 28 in February",
			enrolledAt: Date(2024, time.February, 3),
			billingDay: 28,
			now:        Date(2024, time.February, 10),
			want:       Date(2024, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &member.Member{ID: 1, EnrolledAt: tt.enrolledAt}
			plan := &Plan{ID: 1, BillingDay: tt.billingDay}

			got, err := NextDueDate(m, plan, nil, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDueDate_FromConfirmedPayment(t *testing.T) {
	tests := []struct {
		name       string
		paidOn     time.Time
		billingDay int
		now        time.Time
		want       time.Time
	}{
		{
			name:       "month after the payment",
			paidOn:     Date(2024, time.March, 5),
			billingDay: 10,
			now:        Date(2024, time.March, 6),
			want:       Date(2024, time.April, 10),
		},
		{
			name:       "late payment pushes one more month",
			paidOn:     Date(2024, time.March, 28),
			billingDay: 5,
			now:        Date(2024, time.April, 6),
			want:       Date(2024, time.May, 5),
		},
		{
			name:       "only a single extra month is added",
			paidOn:     Date(2024, time.January, 20),
			billingDay: 15,
			now:        Date(2024, time.April, 1),
			want:       Date(2024, time.March, 15),
		},
		{
			name:       "december payment rolls into january",
			paidOn:     Date(2023, time.December, 2),
			billingDay: 12,
			now:        Date(2023, time.December, 3),
			want:       Date(2024, time.January, 12),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &member.Member{ID: 1, EnrolledAt: Date(2020, time.January, 1)}
			plan := &Plan{ID: 1, BillingDay: tt.billingDay}

			got, err := NextDueDate(m, plan, []*Payment{confirmedFee(tt.paidOn)}, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDueDate_UsesLatestConfirmedMonthlyFeeOnly(t *testing.T) {
	m := &member.Member{ID: 1, EnrolledAt: Date(2023, time.January, 1)}
	plan := &Plan{ID: 1, BillingDay: 10}
	payments := []*Payment{
		confirmedFee(Date(2024, time.February, 8)),
		confirmedFee(Date(2024, time.January, 9)),
		{ // enrollment fee paid later must not count
			Type:        PaymentTypeEnrollmentFee,
			Status:      PaymentStatusConfirmed,
			PaymentDate: sql.NullTime{Time: Date(2024, time.June, 1), Valid: true},
		},
		{ // pending fees have no payment date
			Type:   PaymentTypeMonthlyFee,
			Status: PaymentStatusPending,
		},
	}

	got, err := NextDueDate(m, plan, payments, Date(2024, time.February, 9))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.March, 10), got)
}

func TestNextDueDate_InvalidBillingDay(t *testing.T) {
	m := &member.Member{ID: 1, EnrolledAt: Date(2024, time.January, 1)}
	for _, day := range []int{0, 29, 31, -1} {
		_, err := NextDueDate(m, &Plan{ID: 7, BillingDay: day}, nil, Date(2024, time.January, 1))
		assert.ErrorIs(t, err, ErrInvalidBillingDay, "billing day %d", day)
	}
}

func TestNextDueDate_UsesCalendarDateOfNow(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	m := &member.Member{ID: 1, EnrolledAt: Date(2024, time.January, 1)}
	plan := &Plan{ID: 1, BillingDay: 15}

	// 23:30 local is already the 16th in UTC; the local date decides.
	now := time.Date(2024, time.March, 15, 23, 30, 0, 0, loc)
	got, err := NextDueDate(m, plan, nil, now)
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.March, 15), got)
}

func TestNextDueDate_PropertyDayMatchesAndNotInPast(t *testing.T) {
	now := Date(2025, time.July, 17)
	for day := MinBillingDay; day <= MaxBillingDay; day++ {
		plan := &Plan{ID: 1, BillingDay: day}
		for enrolled := Date(2022, time.December, 25); !enrolled.After(now); enrolled = enrolled.AddDate(0, 0, 11) {
			m := &member.Member{ID: 1, EnrolledAt: enrolled}
			got, err := NextDueDate(m, plan, nil, now)
			require.NoError(t, err)
			assert.Equal(t, day, got.Day())
			assert.False(t, got.Before(now), "enrolled %s day %d gave %s", enrolled.Format(time.DateOnly), day, got.Format(time.DateOnly))
		}
	}
}

func TestNextDueDate_PropertySinglePayment(t *testing.T) {
	now := Date(2025, time.July, 17)
	for day := MinBillingDay; day <= MaxBillingDay; day++ {
		plan := &Plan{ID: 1, BillingDay: day}
		for paid := Date(2025, time.January, 1); !paid.After(now); paid = paid.AddDate(0, 0, 5) {
			m := &member.Member{ID: 1, EnrolledAt: Date(2024, time.January, 1)}
			got, err := NextDueDate(m, plan, []*Payment{confirmedFee(paid)}, now)
			require.NoError(t, err)

			expected := Date(paid.Year(), paid.Month()+1, day)
			if expected.Before(now) {
				expected = Date(expected.Year(), expected.Month()+1, day)
			}
			assert.Equal(t, expected, got)
		}
	}
}

func TestNextCycleDueDate_SkipsMonthsAlreadyBilled(t *testing.T) {
	m := &member.Member{ID: 1, EnrolledAt: Date(2023, time.June, 1)}
	plan := &Plan{ID: 1, BillingDay: 15}

	// February's fee was paid ahead of time, on January 30.
	paidEarly := confirmedFee(Date(2024, time.January, 30))
	paidEarly.DueDate = Date(2024, time.February, 15)
	payments := []*Payment{paidEarly}

	naive, err := NextDueDate(m, plan, payments, Date(2024, time.February, 10))
	require.NoError(t, err)
	require.Equal(t, Date(2024, time.February, 15), naive)

	got, err := NextCycleDueDate(m, plan, payments, Date(2024, time.February, 10))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.March, 15), got)
}

func TestNextCycleDueDate_IgnoresOtherPaymentTypes(t *testing.T) {
	m := &member.Member{ID: 1, EnrolledAt: Date(2024, time.January, 10)}
	plan := &Plan{ID: 1, BillingDay: 15}
	payments := []*Payment{{
		Type:    PaymentTypeEnrollmentFee,
		Status:  PaymentStatusPending,
		DueDate: Date(2024, time.January, 15),
	}}

	got, err := NextCycleDueDate(m, plan, payments, Date(2024, time.January, 12))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.January, 15), got)
}

func TestNextCycleDueDate_InvalidBillingDay(t *testing.T) {
	m := &member.Member{ID: 1, EnrolledAt: Date(2024, time.January, 1)}
	_, err := NextCycleDueDate(m, &Plan{ID: 3, BillingDay: 30}, nil, Date(2024, time.January, 1))
	assert.ErrorIs(t, err, ErrInvalidBillingDay)
}
