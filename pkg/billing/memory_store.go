package billing

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local development.
// Transactions are serialized and applied to a copy of the state that replaces
// the live state only on commit.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	subscriptions map[uuid.UUID]Subscription
	invoices      map[uuid.UUID]Invoice
	coupons       map[uuid.UUID]Coupon
	uses          []CouponUse
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		subscriptions: make(map[uuid.UUID]Subscription),
		invoices:      make(map[uuid.UUID]Invoice),
		coupons:       make(map[uuid.UUID]Coupon),
	}}
}

func (s *memState) clone() *memState {
	return &memState{
		subscriptions: maps.Clone(s.subscriptions),
		invoices:      maps.Clone(s.invoices),
		coupons:       maps.Clone(s.coupons),
		uses:          slices.Clone(s.uses),
	}
}

func (s *MemoryStore) CurrentSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentSubscription(ctx, userID)
}

func (s *MemoryStore) LastPaidInvoice(ctx context.Context, subscriptionID uuid.UUID) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LastPaidInvoice(ctx, subscriptionID)
}

func (s *MemoryStore) PaidInvoices(ctx context.Context, subscriptionID uuid.UUID, since time.Time) ([]Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.PaidInvoices(ctx, subscriptionID, since)
}

func (s *MemoryStore) Invoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Invoice(ctx, id)
}

func (s *MemoryStore) CouponByCode(ctx context.Context, code string) (*Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CouponByCode(ctx, code)
}

func (s *MemoryStore) CouponUses(ctx context.Context, couponID, userID uuid.UUID) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CouponUses(ctx, couponID, userID)
}

func (s *MemoryStore) CreateInvoice(_ context.Context, inv *Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.invoices[inv.ID] = *inv
	return nil
}

func (s *MemoryStore) CreateCoupon(_ context.Context, c *Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.coupons[c.ID] = *c
	return nil
}

func (s *MemoryStore) DueSubscriptions(_ context.Context, now time.Time, limit int) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Subscription
	for _, sub := range s.state.subscriptions {
		if sub.Status != StatusExpired && sub.EndDate.Before(now) {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b Subscription) int { return a.EndDate.Compare(b.EndDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WithTx serializes transactions; fn sees its own writes and nothing is
// visible to readers until it returns nil.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := s.state.clone()
	if err := fn(ctx, &memTx{memState: staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *memState) CurrentSubscription(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	var found *Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID != userID || sub.Status == StatusExpired {
			continue
		}
		if found == nil || sub.StartDate.After(found.StartDate) {
			cp := sub
			found = &cp
		}
	}
	if found == nil {
		return nil, ErrSubscriptionNotFound
	}
	return found, nil
}

func (s *memState) LastPaidInvoice(_ context.Context, subscriptionID uuid.UUID) (*Invoice, error) {
	var found *Invoice
	for _, inv := range s.invoices {
		if inv.Status != InvoicePaid || inv.SubscriptionID == nil || *inv.SubscriptionID != subscriptionID {
			continue
		}
		if found == nil || inv.PaidAt.After(*found.PaidAt) {
			cp := inv
			found = &cp
		}
	}
	if found == nil {
		return nil, ErrInvoiceNotFound
	}
	return found, nil
}

func (s *memState) PaidInvoices(_ context.Context, subscriptionID uuid.UUID, since time.Time) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range s.invoices {
		if inv.Status != InvoicePaid || inv.SubscriptionID == nil || *inv.SubscriptionID != subscriptionID {
			continue
		}
		if inv.PaidAt.Before(since) {
			continue
		}
		out = append(out, inv)
	}
	slices.SortFunc(out, func(a, b Invoice) int { return a.PaidAt.Compare(*b.PaidAt) })
	return out, nil
}

func (s *memState) Invoice(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return &inv, nil
}

func (s *memState) CouponByCode(_ context.Context, code string) (*Coupon, error) {
	for _, c := range s.coupons {
		if strings.EqualFold(c.Code, strings.TrimSpace(code)) {
			return &c, nil
		}
	}
	return nil, ErrCouponNotFound
}

func (s *memState) CouponUses(_ context.Context, couponID, userID uuid.UUID) (global, user int, err error) {
	for _, u := range s.uses {
		if u.CouponID != couponID {
			continue
		}
		global++
		if u.UserID == userID {
			user++
		}
	}
	return global, user, nil
}

type memTx struct {
	*memState
}

func (tx *memTx) LockSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return tx.CurrentSubscription(ctx, userID)
}

func (tx *memTx) LockInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return tx.Invoice(ctx, id)
}

func (tx *memTx) ConsumeCoupon(ctx context.Context, c *Coupon, use CouponUse) error {
	global, user, _ := tx.CouponUses(ctx, c.ID, use.UserID)
	if c.MaxUses != nil && global >= *c.MaxUses {
		return ErrCouponExhausted
	}
	if c.MaxUsesPerUser != nil && user >= *c.MaxUsesPerUser {
		return ErrCouponUserLimit
	}
	tx.uses = append(tx.uses, use)
	return nil
}

func (tx *memTx) SaveSubscription(_ context.Context, sub *Subscription) error {
	stored, exists := tx.subscriptions[sub.ID]
	switch {
	case !exists && sub.Version != 0:
		return ErrSubscriptionNotFound
	case exists && stored.Version != sub.Version:
		return ErrSubscriptionConflict
	}
	sub.Version++
	tx.subscriptions[sub.ID] = *sub
	return nil
}

func (tx *memTx) UpdateInvoice(_ context.Context, inv *Invoice) error {
	if _, ok := tx.invoices[inv.ID]; !ok {
		return ErrInvoiceNotFound
	}
	tx.invoices[inv.ID] = *inv
	return nil
}
