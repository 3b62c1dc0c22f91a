package testutil

import (
	"context"
	"sync"
	"time"

	"cooperative_billing/internal/domain/notifier"
)

// SentNotification records one call to FakeNotifier.Send.
type SentNotification struct {
	Kind notifier.EventKind
	To   notifier.Recipient
	Vars notifier.Variables
	At   time.Time
}

// FakeNotifier records sends. FailFor makes sends to the given member IDs fail;
// Block makes every send wait for ctx to end.
type FakeNotifier struct {
	mu       sync.Mutex
	Disabled bool
	FailFor  map[int64]error
	Block    bool
	// OnSend runs before each send returns, e.g. to cancel a batch mid-flight.
	OnSend func(n int)
	Sent   []SentNotification
}

func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{FailFor: map[int64]error{}}
}

func (f *FakeNotifier) IsEnabled() bool { return !f.Disabled }

func (f *FakeNotifier) Send(ctx context.Context, kind notifier.EventKind, to notifier.Recipient, vars notifier.Variables) error {
	if f.Block {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	err := f.FailFor[to.MemberID]
	if err == nil {
		f.Sent = append(f.Sent, SentNotification{Kind: kind, To: to, Vars: vars, At: time.Now()})
	}
	n := len(f.Sent)
	onSend := f.OnSend
	f.mu.Unlock()

	if onSend != nil {
		onSend(n)
	}
	return err
}

func (f *FakeNotifier) SentTo() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.Sent))
	for _, s := range f.Sent {
		ids = append(ids, s.To.MemberID)
	}
	return ids
}

// FixedClock is a settable billing.Clock.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
