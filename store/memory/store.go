// Package memory is an in-process store for tests and single-node
// deployments. All entities live in maps guarded by one RWMutex, which
// makes every commit trivially atomic.
package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/till"
	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/store"
)

var (
	_ store.Store        = (*Store)(nil)
	_ cart.SnapshotStore = (*Store)(nil)
)

type Store struct {
	mu sync.RWMutex

	customers map[string]*customer.Customer
	bills     map[string]*bill.Bill

	// Cart snapshots are kept as JSON, like the redis store, so a restore
	// never aliases a live cart.
	carts map[string][]byte

	closed bool
}

func New() *Store {
	return &Store{
		customers: make(map[string]*customer.Customer),
		bills:     make(map[string]*bill.Bill),
		carts:     make(map[string][]byte),
	}
}

// Customer Store implementation

func (s *Store) CreateCustomer(_ context.Context, c *customer.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID.String()]; exists {
		return till.ErrAlreadyExists
	}
	s.customers[c.ID.String()] = cloneCustomer(c)
	return nil
}

func (s *Store) GetCustomer(_ context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.customers[customerID.String()]; ok {
		return cloneCustomer(c), nil
	}
	return nil, till.ErrCustomerNotFound
}

func (s *Store) ListCustomers(_ context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(opts.Search)
	result := make([]*customer.Customer, 0)
	for _, c := range s.customers {
		if opts.Members && !c.IsMember {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(c.Phone, search) &&
			!strings.Contains(strings.ToLower(c.Email), search) {
			continue
		}
		result = append(result, cloneCustomer(c))
	}

	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// UpdateCustomer replaces profile and membership fields, including a
// top-up of MembershipHoursLeft. Points, spend and play time keep their
// stored values.
func (s *Store) UpdateCustomer(_ context.Context, c *customer.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[c.ID.String()]
	if !ok {
		return till.ErrCustomerNotFound
	}

	next := cloneCustomer(c)
	next.CreatedAt = existing.CreatedAt
	next.LoyaltyPoints = existing.LoyaltyPoints
	next.TotalSpent = existing.TotalSpent
	next.TotalPlayMinutes = existing.TotalPlayMinutes
	s.customers[c.ID.String()] = next
	return nil
}

// Bill Store implementation

func (s *Store) GetBill(_ context.Context, billID id.BillID) (*bill.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.bills[billID.String()]; ok {
		return cloneBill(b), nil
	}
	return nil, till.ErrBillNotFound
}

func (s *Store) ListBills(_ context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*bill.Bill, 0)
	for _, b := range s.bills {
		if !opts.CustomerID.IsNil() && b.CustomerID.String() != opts.CustomerID.String() {
			continue
		}
		if !opts.Since.IsZero() && b.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && !b.CreatedAt.Before(opts.Until) {
			continue
		}
		result = append(result, cloneBill(b))
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Atomic units

func (s *Store) CommitSale(_ context.Context, b *bill.Bill, d customer.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bills[b.ID.String()]; exists {
		return till.ErrAlreadyExists
	}
	c, ok := s.customers[b.CustomerID.String()]
	if !ok {
		return till.ErrCustomerNotFound
	}

	s.bills[b.ID.String()] = cloneBill(b)
	apply(c, d)
	return nil
}

func (s *Store) ReviseBill(_ context.Context, prev, next *bill.Bill, adjustments []customer.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.bills[prev.ID.String()]
	if !ok {
		return till.ErrBillNotFound
	}
	if stored.Revision != prev.Revision {
		return till.ErrBillMismatch
	}

	// Resolve every customer before touching anything.
	targets := make([]*customer.Customer, len(adjustments))
	for i, adj := range adjustments {
		c, found := s.customers[adj.CustomerID.String()]
		if !found {
			return till.ErrCustomerNotFound
		}
		targets[i] = c
	}

	s.bills[prev.ID.String()] = cloneBill(next)
	for i, adj := range adjustments {
		apply(targets[i], adj.Delta)
	}
	return nil
}

func (s *Store) DeleteBill(_ context.Context, b *bill.Bill, d customer.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.bills[b.ID.String()]
	if !ok {
		return till.ErrBillNotFound
	}
	if stored.Revision != b.Revision {
		return till.ErrBillMismatch
	}

	// A bill whose customer has gone keeps nothing to reverse.
	if c, found := s.customers[stored.CustomerID.String()]; found {
		apply(c, d)
	}
	delete(s.bills, b.ID.String())
	return nil
}

// Cart SnapshotStore implementation

func (s *Store) SaveCart(_ context.Context, c *cart.Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.TerminalID] = raw
	return nil
}

func (s *Store) LoadCart(_ context.Context, terminalID string) (*cart.Cart, error) {
	s.mu.RLock()
	raw, ok := s.carts[terminalID]
	s.mu.RUnlock()
	if !ok {
		return nil, cart.ErrNoSnapshot
	}

	var c cart.Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) DeleteCart(_ context.Context, terminalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, terminalID)
	return nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return till.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func apply(c *customer.Customer, d customer.Delta) {
	c.Apply(d)
	c.UpdatedAt = time.Now().UTC()
}

func cloneCustomer(c *customer.Customer) *customer.Customer {
	out := *c
	if c.MembershipExpiresAt != nil {
		t := *c.MembershipExpiresAt
		out.MembershipExpiresAt = &t
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func cloneBill(b *bill.Bill) *bill.Bill {
	out := *b
	out.Items = slices.Clone(b.Items)
	if b.RevisedAt != nil {
		t := *b.RevisedAt
		out.RevisedAt = &t
	}
	return &out
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
