package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cooperative_billing/internal/domain/billing"
	"cooperative_billing/internal/domain/member"
	idb "cooperative_billing/internal/infra/database"

	"github.com/samber/lo"
)

// InMemoryMemberStore implements member.Repository
type InMemoryMemberStore struct {
	mu        sync.Mutex
	members   map[int64]*member.Member
	UpdateErr map[int64]error // injected UpdateStatus failures by member ID
}

func NewInMemoryMemberStore(members ...*member.Member) *InMemoryMemberStore {
	s := &InMemoryMemberStore{members: map[int64]*member.Member{}, UpdateErr: map[int64]error{}}
	for _, m := range members {
		s.members[m.ID] = copyMember(m)
	}
	return s
}

func copyMember(m *member.Member) *member.Member {
	c := *m
	return &c
}

func (s *InMemoryMemberStore) GetByID(_ context.Context, id int64) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, idb.ErrMemberNotFound
	}
	return copyMember(m), nil
}

func (s *InMemoryMemberStore) ListAll(_ context.Context) ([]*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Map(lo.Values(s.members), func(m *member.Member, _ int) *member.Member { return copyMember(m) })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryMemberStore) UpdateStatus(_ context.Context, id int64, status member.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.UpdateErr[id]; err != nil {
		return err
	}
	m, ok := s.members[id]
	if !ok {
		return idb.ErrMemberNotFound
	}
	m.Status = status
	return nil
}

// InMemoryBillingStore implements billing.Repository
type InMemoryBillingStore struct {
	mu        sync.Mutex
	plans     map[int64]*billing.Plan
	payments  map[int64]*billing.Payment
	nextID    int64
	UpdateErr map[int64]error // injected UpdatePayment failures by payment ID
	CreateErr map[int64]error // injected CreatePayment failures by member ID
	Creates   int
	Updates   int
}

func NewInMemoryBillingStore() *InMemoryBillingStore {
	return &InMemoryBillingStore{
		plans:     map[int64]*billing.Plan{},
		payments:  map[int64]*billing.Payment{},
		nextID:    1000,
		UpdateErr: map[int64]error{},
		CreateErr: map[int64]error{},
	}
}

func copyPayment(p *billing.Payment) *billing.Payment {
	c := *p
	return &c
}

func (s *InMemoryBillingStore) AddPlan(p *billing.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.plans[p.ID] = &c
}

// AddPayment stores a payment as-is, keeping its ID.
func (s *InMemoryBillingStore) AddPayment(p *billing.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = copyPayment(p)
}

func (s *InMemoryBillingStore) GetPlanByID(_ context.Context, id int64) (*billing.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, idb.ErrPlanNotFound
	}
	c := *p
	return &c, nil
}

func (s *InMemoryBillingStore) ListPlans(_ context.Context) ([]*billing.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Map(lo.Values(s.plans), func(p *billing.Plan, _ int) *billing.Plan {
		c := *p
		return &c
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryBillingStore) GetPaymentByID(_ context.Context, id int64) (*billing.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, idb.ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

func (s *InMemoryBillingStore) ListPaymentsByMembers(_ context.Context, memberIDs []int64) ([]*billing.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedPayments(func(p *billing.Payment) bool { return lo.Contains(memberIDs, p.MemberID) }), nil
}

func (s *InMemoryBillingStore) sortedPayments(keep func(*billing.Payment) bool) []*billing.Payment {
	out := make([]*billing.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if keep(p) {
			out = append(out, copyPayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *InMemoryBillingStore) CreatePayment(_ context.Context, p *billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.CreateErr[p.MemberID]; err != nil {
		return err
	}
	for _, existing := range s.payments {
		if existing.Type == billing.PaymentTypeMonthlyFee && existing.MemberID == p.MemberID && existing.DueDate.Equal(p.DueDate) {
			return billing.ErrDuplicateCycle
		}
	}
	s.nextID++
	p.ID = s.nextID
	s.payments[p.ID] = copyPayment(p)
	s.Creates++
	return nil
}

func (s *InMemoryBillingStore) UpdatePayment(_ context.Context, p *billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.UpdateErr[p.ID]; err != nil {
		return err
	}
	if _, ok := s.payments[p.ID]; !ok {
		return idb.ErrPaymentNotFound
	}
	s.payments[p.ID] = copyPayment(p)
	s.Updates++
	return nil
}

var ErrInjected = errors.New("injected failure")
