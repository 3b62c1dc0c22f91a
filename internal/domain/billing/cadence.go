package billing

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CadencePolicy gates how often a reminder may be resent for the same unresolved cycle.
// It only decides frequency; the delinquency tier decides content.
type CadencePolicy interface {
	MayRemind(attemptCount, daysSinceLastAttempt int) bool
}

// DefaultCadenceThresholds: first reminder immediately, then after 3, 7 and 15 days.
var DefaultCadenceThresholds = []int{0, 3, 7, 15}

var ErrInvalidCadence = errors.New("invalid cadence thresholds")

// ThresholdCadence requires thresholds[attemptCount] days since the last attempt.
// Attempt counts past the end of the table reuse the last threshold.
type ThresholdCadence struct {
	thresholds []int
}

func NewThresholdCadence(thresholds []int) (*ThresholdCadence, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("%w: at least one threshold is required", ErrInvalidCadence)
	}
	if thresholds[0] != 0 {
		return nil, fmt.Errorf("%w: the first reminder must not be delayed (got %d)", ErrInvalidCadence, thresholds[0])
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] < thresholds[i-1] {
			return nil, fmt.Errorf("%w: thresholds must be non-decreasing (%d after %d)", ErrInvalidCadence, thresholds[i], thresholds[i-1])
		}
	}
	return &ThresholdCadence{thresholds: append([]int(nil), thresholds...)}, nil
}

// DefaultCadence returns the 0/3/7/15 day policy.
func DefaultCadence() *ThresholdCadence {
	c, _ := NewThresholdCadence(DefaultCadenceThresholds)
	return c
}

// RequiredDays is the minimum gap before attempt number attemptCount+1 may be sent.
func (c *ThresholdCadence) RequiredDays(attemptCount int) int {
	if attemptCount <= 0 {
		return c.thresholds[0]
	}
	if attemptCount >= len(c.thresholds) {
		return c.thresholds[len(c.thresholds)-1]
	}
	return c.thresholds[attemptCount]
}

func (c *ThresholdCadence) MayRemind(attemptCount, daysSinceLastAttempt int) bool {
	if attemptCount <= 0 {
		return true
	}
	return daysSinceLastAttempt >= c.RequiredDays(attemptCount)
}

// ReminderDue applies a policy to a payment's stored attempt state.
// A missing last-attempt timestamp counts as no prior attempt.
func ReminderDue(policy CadencePolicy, attempts int, lastAttempt sql.NullTime, now time.Time) bool {
	if !lastAttempt.Valid {
		return policy.MayRemind(0, 0)
	}
	return policy.MayRemind(attempts, DaysBetween(lastAttempt.Time.In(now.Location()), now))
}
