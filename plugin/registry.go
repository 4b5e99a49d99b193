package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/till/bill"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/customer"
	"github.com/xraph/till/payment"
)

// DefaultTimeout bounds each plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                    []OnInit
	onShutdown                []OnShutdown
	onCartEvent               []OnCartEvent
	onSaleCompleted           []OnSaleCompleted
	onSaleFailed              []OnSaleFailed
	onBillRevised             []OnBillRevised
	onBillDeleted             []OnBillDeleted
	onCustomerCreated         []OnCustomerCreated
	onPaymentEvent            []OnPaymentEvent
	onBookingConfirmationSent []OnBookingConfirmationSent
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnCartEvent); ok {
		r.onCartEvent = append(r.onCartEvent, v)
	}
	if v, ok := p.(OnSaleCompleted); ok {
		r.onSaleCompleted = append(r.onSaleCompleted, v)
	}
	if v, ok := p.(OnSaleFailed); ok {
		r.onSaleFailed = append(r.onSaleFailed, v)
	}
	if v, ok := p.(OnBillRevised); ok {
		r.onBillRevised = append(r.onBillRevised, v)
	}
	if v, ok := p.(OnBillDeleted); ok {
		r.onBillDeleted = append(r.onBillDeleted, v)
	}
	if v, ok := p.(OnCustomerCreated); ok {
		r.onCustomerCreated = append(r.onCustomerCreated, v)
	}
	if v, ok := p.(OnPaymentEvent); ok {
		r.onPaymentEvent = append(r.onPaymentEvent, v)
	}
	if v, ok := p.(OnBookingConfirmationSent); ok {
		r.onBookingConfirmationSent = append(r.onBookingConfirmationSent, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnCartEvent", reflect.TypeOf((*OnCartEvent)(nil)).Elem()},
	{"OnSaleCompleted", reflect.TypeOf((*OnSaleCompleted)(nil)).Elem()},
	{"OnSaleFailed", reflect.TypeOf((*OnSaleFailed)(nil)).Elem()},
	{"OnBillRevised", reflect.TypeOf((*OnBillRevised)(nil)).Elem()},
	{"OnBillDeleted", reflect.TypeOf((*OnBillDeleted)(nil)).Elem()},
	{"OnCustomerCreated", reflect.TypeOf((*OnCustomerCreated)(nil)).Elem()},
	{"OnPaymentEvent", reflect.TypeOf((*OnPaymentEvent)(nil)).Elem()},
	{"OnBookingConfirmationSent", reflect.TypeOf((*OnBookingConfirmationSent)(nil)).Elem()},
}

// implementedInterfaces returns the hooks the plugin implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// HasCartListeners reports whether any plugin wants cart events.
func (r *Registry) HasCartListeners() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.onCartEvent) > 0
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, t any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p.Name(), func() error {
			return p.OnInit(ctx, t)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it and
// returns the failures, each prefixed with the plugin name.
func (r *Registry) EmitShutdown(ctx context.Context) []error {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	var errs []error
	for _, p := range plugins {
		if err := r.dispatch(ctx, "OnShutdown", p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
		}
	}
	return errs
}

// EmitCartEvent emits a cart mutation.
func (r *Registry) EmitCartEvent(ctx context.Context, ev cart.Event) {
	r.mu.RLock()
	plugins := r.onCartEvent
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnCartEvent", p.Name(), func() error {
			return p.OnCartEvent(ctx, ev)
		})
	}
}

// EmitSaleCompleted emits a committed sale.
func (r *Registry) EmitSaleCompleted(ctx context.Context, b *bill.Bill) {
	r.mu.RLock()
	plugins := r.onSaleCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnSaleCompleted", p.Name(), func() error {
			return p.OnSaleCompleted(ctx, b)
		})
	}
}

// EmitSaleFailed emits a rejected or failed checkout.
func (r *Registry) EmitSaleFailed(ctx context.Context, terminalID string, saleErr error) {
	r.mu.RLock()
	plugins := r.onSaleFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnSaleFailed", p.Name(), func() error {
			return p.OnSaleFailed(ctx, terminalID, saleErr)
		})
	}
}

// EmitBillRevised emits a committed revision.
func (r *Registry) EmitBillRevised(ctx context.Context, prev, next *bill.Bill) {
	r.mu.RLock()
	plugins := r.onBillRevised
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnBillRevised", p.Name(), func() error {
			return p.OnBillRevised(ctx, prev, next)
		})
	}
}

// EmitBillDeleted emits a removed bill.
func (r *Registry) EmitBillDeleted(ctx context.Context, b *bill.Bill) {
	r.mu.RLock()
	plugins := r.onBillDeleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnBillDeleted", p.Name(), func() error {
			return p.OnBillDeleted(ctx, b)
		})
	}
}

// EmitCustomerCreated emits a new customer.
func (r *Registry) EmitCustomerCreated(ctx context.Context, c *customer.Customer) {
	r.mu.RLock()
	plugins := r.onCustomerCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnCustomerCreated", p.Name(), func() error {
			return p.OnCustomerCreated(ctx, c)
		})
	}
}

// EmitPaymentEvent emits a verified gateway notification. It returns the
// joined failures of the plugins that could not handle it.
func (r *Registry) EmitPaymentEvent(ctx context.Context, ev *payment.Event) error {
	r.mu.RLock()
	plugins := r.onPaymentEvent
	r.mu.RUnlock()

	var errs []error
	for _, p := range plugins {
		if err := r.dispatch(ctx, "OnPaymentEvent", p.Name(), func() error {
			return p.OnPaymentEvent(ctx, ev)
		}); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// EmitBookingConfirmationSent emits a delivered booking confirmation.
func (r *Registry) EmitBookingConfirmationSent(ctx context.Context, bookingID, messageID string) {
	r.mu.RLock()
	plugins := r.onBookingConfirmationSent
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnBookingConfirmationSent", p.Name(), func() error {
			return p.OnBookingConfirmationSent(ctx, bookingID, messageID)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, hook, pluginName string, fn func() error) error {
	err := r.callWithTimeout(ctx, pluginName, fn)
	if err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
	return err
}

// callWithTimeout calls a function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
