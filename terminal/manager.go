// Package terminal keeps one cart per checkout terminal.
//
// Operations on a terminal are serialised by a per-terminal mutex, so two
// staff members on different terminals never contend and a checkout can
// never interleave with an edit of the same cart. Carts are restored from a
// cart.SnapshotStore on first use and saved after every change.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/till/cart"
)

type slot struct {
	mu   sync.Mutex
	cart *cart.Cart
}

// Manager owns the carts of all terminals.
type Manager struct {
	snapshots cart.SnapshotStore
	logger    *slog.Logger

	mu    sync.Mutex
	slots map[string]*slot

	restores singleflight.Group
}

// NewManager creates a Manager. A nil snapshot store keeps carts in memory only.
func NewManager(snapshots cart.SnapshotStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		snapshots: snapshots,
		logger:    logger,
		slots:     make(map[string]*slot),
	}
}

// Mutate applies fn to the terminal's cart and persists the result when fn
// reports a change.
func (m *Manager) Mutate(ctx context.Context, terminalID string, fn func(*cart.Cart) (cart.Event, bool)) (cart.Event, bool, error) {
	var (
		ev      cart.Event
		changed bool
	)
	err := m.With(ctx, terminalID, func(c *cart.Cart) (bool, error) {
		ev, changed = fn(c)
		return changed, nil
	})
	return ev, changed, err
}

// With runs fn while holding the terminal lock. fn returns whether it
// changed the cart; a changed cart is saved even when fn also returns an
// error.
func (m *Manager) With(ctx context.Context, terminalID string, fn func(*cart.Cart) (bool, error)) error {
	s, err := m.slot(ctx, terminalID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed, fnErr := fn(s.cart)
	if changed {
		s.cart.UpdatedAt = time.Now().UTC()
		m.save(ctx, s.cart)
	}
	return fnErr
}

// View returns a copy of the terminal's cart.
func (m *Manager) View(ctx context.Context, terminalID string) (*cart.Cart, error) {
	s, err := m.slot(ctx, terminalID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Snapshot(), nil
}

// Discard forgets the terminal's cart and its snapshot.
func (m *Manager) Discard(ctx context.Context, terminalID string) error {
	m.mu.Lock()
	delete(m.slots, terminalID)
	m.mu.Unlock()

	if m.snapshots == nil {
		return nil
	}
	return m.snapshots.DeleteCart(ctx, terminalID)
}

// Terminals lists the terminals with a loaded cart.
func (m *Manager) Terminals() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) slot(ctx context.Context, terminalID string) (*slot, error) {
	m.mu.Lock()
	s, ok := m.slots[terminalID]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	v, err, _ := m.restores.Do(terminalID, func() (any, error) {
		m.mu.Lock()
		s, ok := m.slots[terminalID]
		m.mu.Unlock()
		if ok {
			return s, nil
		}

		c, err := m.restore(ctx, terminalID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		s = &slot{cart: c}
		m.slots[terminalID] = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*slot), nil
}

func (m *Manager) restore(ctx context.Context, terminalID string) (*cart.Cart, error) {
	if m.snapshots == nil {
		return cart.New(terminalID), nil
	}

	c, err := m.snapshots.LoadCart(ctx, terminalID)
	switch {
	case errors.Is(err, cart.ErrNoSnapshot):
		return cart.New(terminalID), nil
	case err != nil:
		return nil, fmt.Errorf("terminal: restore %s: %w", terminalID, err)
	}

	c.TerminalID = terminalID
	if !c.Discount.Kind.Valid() {
		c.Discount = cart.NoDiscount()
	}
	m.logger.Debug("terminal cart restored", "terminal", terminalID, "items", len(c.Lines))
	return c, nil
}

func (m *Manager) save(ctx context.Context, c *cart.Cart) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.SaveCart(ctx, c); err != nil {
		m.logger.Warn("terminal: failed to save cart snapshot",
			"terminal", c.TerminalID,
			"error", err,
		)
	}
}
