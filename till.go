package till

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/loyalty"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/pricing"
	"github.com/xraph/till/store"
	"github.com/xraph/till/terminal"
	"github.com/xraph/till/types"
)

// Till is the point-of-sale engine for a snooker and pool club.
type Till struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	terminals  *terminal.Manager
	snapshots  cart.SnapshotStore
	earn       loyalty.EarnPolicy
	membership loyalty.MembershipPolicy
	now        func() time.Time

	// Background workers
	events   chan cart.Event
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Configuration
	notifyBuffer int
	autoMigrate  bool
}

// New creates a new Till instance.
func New(s store.Store, opts ...Option) *Till {
	t := &Till{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		earn:         loyalty.NoEarn,
		membership:   loyalty.NoDeduction,
		now:          time.Now,
		stopChan:     make(chan struct{}),
		notifyBuffer: 1024,
		autoMigrate:  true,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.events = make(chan cart.Event, t.notifyBuffer)
	t.terminals = terminal.NewManager(t.snapshots, t.logger)
	return t
}

// Option configures a Till instance.
type Option func(*Till)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Till) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Till) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithEarnPolicy sets how sales convert into loyalty points. The default
// awards nothing.
func WithEarnPolicy(p loyalty.EarnPolicy) Option {
	return func(t *Till) {
		if p != nil {
			t.earn = p
		}
	}
}

// WithMembershipPolicy sets how billed play time consumes membership
// hours. The default consumes nothing.
func WithMembershipPolicy(p loyalty.MembershipPolicy) Option {
	return func(t *Till) {
		if p != nil {
			t.membership = p
		}
	}
}

// WithSnapshotStore persists terminal carts so they survive restarts.
func WithSnapshotStore(s cart.SnapshotStore) Option {
	return func(t *Till) {
		t.snapshots = s
	}
}

// WithNotifyBuffer sets how many cart events may queue for plugins before
// new ones are dropped.
func WithNotifyBuffer(n int) Option {
	return func(t *Till) {
		if n > 0 {
			t.notifyBuffer = n
		}
	}
}

// WithAutoMigrate controls whether Start migrates the store. It is on by
// default.
func WithAutoMigrate(enabled bool) Option {
	return func(t *Till) {
		t.autoMigrate = enabled
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Till) {
		t.now = now
	}
}

// Start migrates the store, initialises plugins and starts the cart event
// worker.
func (t *Till) Start(ctx context.Context) error {
	if t.autoMigrate {
		if err := t.store.Migrate(ctx); err != nil {
			return err
		}
	}

	t.plugins.EmitInit(ctx, t)

	// The worker outlives ctx so Stop can still drain queued events.
	t.wg.Add(1)
	go t.notifyWorker(context.WithoutCancel(ctx))

	t.logger.Info("till started",
		"plugins", t.plugins.Count(),
		"notify_buffer", t.notifyBuffer,
		"snapshots", t.snapshots != nil,
	)

	return nil
}

// Stop drains queued cart events, shuts plugins down and closes the store.
func (t *Till) Stop() error {
	t.stopOnce.Do(func() { close(t.stopChan) })
	t.wg.Wait()

	var errs MultiError
	for _, err := range t.plugins.EmitShutdown(context.Background()) {
		errs.Add(err)
	}
	errs.Add(t.store.Close())
	return errs.Err()
}

// Plugins returns the plugin registry.
func (t *Till) Plugins() *plugin.Registry { return t.plugins }

// Store returns the underlying store.
func (t *Till) Store() store.Store { return t.store }

// ──────────────────────────────────────────────────
// Cart operations
// ──────────────────────────────────────────────────

// Cart returns a copy of the terminal's cart.
func (t *Till) Cart(ctx context.Context, terminalID string) (*cart.Cart, error) {
	if terminalID == "" {
		return nil, invalid("terminal", nil, "is required")
	}
	return t.terminals.View(ctx, terminalID)
}

// Totals prices the terminal's cart.
func (t *Till) Totals(ctx context.Context, terminalID string) (pricing.Totals, error) {
	c, err := t.Cart(ctx, terminalID)
	if err != nil {
		return pricing.Totals{}, err
	}
	return pricing.Compute(pricing.FromCart(c)), nil
}

// AddItem adds a product or a finished session to the terminal's cart.
// Prices and product quantities must be positive; a session's quantity is
// ignored.
func (t *Till) AddItem(ctx context.Context, terminalID string, item cart.LineItem) (cart.Event, error) {
	if err := validateItem(item); err != nil {
		return cart.Event{}, err
	}
	return t.mutate(ctx, terminalID, func(c *cart.Cart) (cart.Event, bool) {
		return c.AddItem(item)
	})
}

// RemoveItem removes every line with itemID. The returned bool is false
// when no such line existed.
func (t *Till) RemoveItem(ctx context.Context, terminalID, itemID string) (cart.Event, bool, error) {
	return t.mutateChanged(ctx, terminalID, func(c *cart.Cart) (cart.Event, bool) {
		return c.RemoveItem(itemID)
	})
}

// UpdateItemQuantity sets a product line's quantity; zero or less removes
// it. Sessions are left untouched and report false.
func (t *Till) UpdateItemQuantity(ctx context.Context, terminalID, itemID string, quantity int64) (cart.Event, bool, error) {
	return t.mutateChanged(ctx, terminalID, func(c *cart.Cart) (cart.Event, bool) {
		return c.UpdateItemQuantity(itemID, quantity)
	})
}

// ClearCart empties the terminal's cart and resets its selections.
func (t *Till) ClearCart(ctx context.Context, terminalID string) (cart.Event, error) {
	return t.mutate(ctx, terminalID, func(c *cart.Cart) (cart.Event, bool) {
		return c.Clear()
	})
}

// SetDiscount sets the discount for the terminal's sale.
func (t *Till) SetDiscount(ctx context.Context, terminalID string, amount decimal.Decimal, kind cart.DiscountKind) (cart.Event, error) {
	if !kind.Valid() {
		return cart.Event{}, invalid("discount_kind", nil, "must be percentage or fixed, got %q", kind)
	}
	if amount.IsNegative() {
		return cart.Event{}, invalid("discount", nil, "must not be negative")
	}
	return t.mutate(ctx, terminalID, func(c *cart.Cart) (cart.Event, bool) {
		return c.SetDiscount(amount, kind)
	})
}

// SetLoyaltyPointsUsed sets the points redeemed against the sale. The
// customer's balance is checked at checkout.
func (t *Till) SetLoyaltyPointsUsed(ctx context.Context, terminalID string, points int64) (cart.Event, error) {
	if points < 0 {
		return cart.Event{}, invalid("loyalty_points_used", nil, "must not be negative")
	}
	return t.mutate(ctx, terminalID, func(c *cart.Cart) (cart.Event, bool) {
		return c.SetLoyaltyPointsUsed(points)
	})
}

// SetSplitPayment sets the cash and UPI split for the sale.
func (t *Till) SetSplitPayment(ctx context.Context, terminalID string, split cart.SplitPayment) (cart.Event, error) {
	if split.Cash.IsNegative() || split.UPI.IsNegative() {
		return cart.Event{}, invalid("split", nil, "amounts must not be negative")
	}
	return t.mutate(ctx, terminalID, func(c *cart.Cart) (cart.Event, bool) {
		return c.SetSplitPayment(split)
	})
}

// SelectCustomer attaches a customer to the terminal's sale. A nil ID
// clears the selection.
func (t *Till) SelectCustomer(ctx context.Context, terminalID string, customerID id.CustomerID) (cart.Event, error) {
	if !customerID.IsNil() {
		if _, err := t.store.GetCustomer(ctx, customerID); err != nil {
			return cart.Event{}, err
		}
	}
	return t.mutate(ctx, terminalID, func(c *cart.Cart) (cart.Event, bool) {
		return c.SelectCustomer(customerID)
	})
}

// DiscardCart forgets the terminal's cart and its snapshot.
func (t *Till) DiscardCart(ctx context.Context, terminalID string) error {
	return t.terminals.Discard(ctx, terminalID)
}

func (t *Till) mutate(ctx context.Context, terminalID string, fn func(*cart.Cart) (cart.Event, bool)) (cart.Event, error) {
	ev, _, err := t.mutateChanged(ctx, terminalID, fn)
	return ev, err
}

func (t *Till) mutateChanged(ctx context.Context, terminalID string, fn func(*cart.Cart) (cart.Event, bool)) (cart.Event, bool, error) {
	if terminalID == "" {
		return cart.Event{}, false, invalid("terminal", nil, "is required")
	}
	ev, changed, err := t.terminals.Mutate(ctx, terminalID, fn)
	if err != nil {
		return cart.Event{}, false, err
	}
	if changed {
		t.notify(ev)
	}
	return ev, changed, nil
}

func validateItem(item cart.LineItem) error {
	if item.ID == "" {
		return invalid("item.id", ErrInvalidItem, "is required")
	}
	if !item.Kind.Valid() {
		return invalid("item.kind", ErrInvalidItem, "must be product or session, got %q", item.Kind)
	}
	if item.UnitPrice <= 0 {
		return invalid("item.unit_price", ErrInvalidItem, "must be positive")
	}
	if item.Kind == cart.KindProduct && item.Quantity <= 0 {
		return invalid("item.quantity", ErrInvalidItem, "must be positive")
	}
	if item.PlayMinutes < 0 {
		return invalid("item.play_minutes", ErrInvalidItem, "must not be negative")
	}
	return nil
}

// ──────────────────────────────────────────────────
// Customer Management
// ──────────────────────────────────────────────────

// CreateCustomer registers a customer. Aggregates start at zero apart from
// any prepaid membership hours.
func (t *Till) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	if c.Name == "" {
		return invalid("name", nil, "is required")
	}
	if c.ID.IsNil() {
		c.ID = id.NewCustomerID()
	}
	c.Entity = types.NewEntity()
	c.LoyaltyPoints = 0
	c.TotalSpent = 0
	c.TotalPlayMinutes = 0

	if err := t.store.CreateCustomer(ctx, c); err != nil {
		return err
	}

	t.plugins.EmitCustomerCreated(ctx, c)
	return nil
}

// GetCustomer retrieves a customer by ID.
func (t *Till) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	return t.store.GetCustomer(ctx, customerID)
}

// ListCustomers lists customers.
func (t *Till) ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	return t.store.ListCustomers(ctx, opts)
}

// UpdateCustomer updates profile and membership fields. Loyalty points,
// total spent and play time are owned by bills and are not changed.
func (t *Till) UpdateCustomer(ctx context.Context, c *customer.Customer) error {
	if c.Name == "" {
		return invalid("name", nil, "is required")
	}
	if c.MembershipHoursLeft.IsNegative() {
		return invalid("membership_hours_left", nil, "must not be negative")
	}
	c.Touch()
	return t.store.UpdateCustomer(ctx, c)
}

// ──────────────────────────────────────────────────
// Bills
// ──────────────────────────────────────────────────

// GetBill retrieves a bill by ID.
func (t *Till) GetBill(ctx context.Context, billID id.BillID) (*bill.Bill, error) {
	return t.store.GetBill(ctx, billID)
}

// ListBills lists bills, newest first.
func (t *Till) ListBills(ctx context.Context, opts bill.ListOpts) ([]*bill.Bill, error) {
	return t.store.ListBills(ctx, opts)
}
