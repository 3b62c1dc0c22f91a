package billing

import "time"

// DueSoonWindow is how many days ahead of the due date a cycle counts as DUE_SOON.
const DueSoonWindow = 7

// State is the delinquency classification of a due cycle. It is computed on read, never stored.
type State string

const (
	StateOnTime  State = "ON_TIME"
	StateDueSoon State = "DUE_SOON"
	StateOverdue State = "OVERDUE"
)

// Tier is the severity of an overdue cycle. It drives reminder content and suspension.
type Tier string

const (
	TierNone     Tier = ""
	TierInitial  Tier = "initial"
	TierUrgent   Tier = "urgent"
	TierCritical Tier = "critical"
)

const (
	urgentFromDays   = 15
	criticalFromDays = 30
)

// Classification is the result of comparing now against a due date.
// Days counts days overdue for OVERDUE, days until due otherwise.
type Classification struct {
	State State
	Days  int
}

// Classify compares calendar dates, so any instant on the due date itself is not overdue.
func Classify(now, dueDate time.Time) Classification {
	diff := DaysBetween(now, dueDate)
	switch {
	case diff < 0:
		return Classification{State: StateOverdue, Days: -diff}
	case diff <= DueSoonWindow:
		return Classification{State: StateDueSoon, Days: diff}
	default:
		return Classification{State: StateOnTime, Days: diff}
	}
}

// TierFor maps days overdue to a tier. Boundary values belong to the higher tier.
func TierFor(daysOverdue int) Tier {
	switch {
	case daysOverdue >= criticalFromDays:
		return TierCritical
	case daysOverdue >= urgentFromDays:
		return TierUrgent
	case daysOverdue >= 1:
		return TierInitial
	default:
		return TierNone
	}
}

// Tier is TierNone unless the classification is OVERDUE.
func (c Classification) Tier() Tier {
	if c.State != StateOverdue {
		return TierNone
	}
	return TierFor(c.Days)
}

// Severity flattens state and tier into one label: on_time, due_soon, initial, urgent or critical.
func (c Classification) Severity() string {
	switch c.State {
	case StateOnTime:
		return "on_time"
	case StateDueSoon:
		return "due_soon"
	default:
		return string(c.Tier())
	}
}

func (c Classification) IsDelinquent() bool {
	return c.State == StateOverdue
}
